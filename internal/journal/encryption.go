package journal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Encrypted entries start with one of these header lines.
const (
	encryptedHeader = "# GGPROV_ENCRYPTED_ENTRY\n"
	kmsHeader       = "# GGPROV_KMS_ENTRY\n"
)

// Sealer encrypts entries at rest.
type Sealer interface {
	Seal(ctx context.Context, content []byte) ([]byte, error)
	Open(ctx context.Context, content []byte) ([]byte, error)
}

// Cipher seals entries with AES-256-GCM under a locally configured key.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives an AES-256 key from the given key material.
func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}

	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{gcm: gcm}, nil
}

func (c *Cipher) Seal(_ context.Context, content []byte) ([]byte, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := c.gcm.Seal(nonce, nonce, content, nil)
	return frame(encryptedHeader, ciphertext), nil
}

func (c *Cipher) Open(_ context.Context, content []byte) ([]byte, error) {
	ciphertext, err := unframe(encryptedHeader, content)
	if err != nil {
		return nil, err
	}

	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt entry (wrong key?): %w", err)
	}
	return plaintext, nil
}

// IsEncrypted checks if content carries an encrypted entry header.
func IsEncrypted(content []byte) bool {
	s := string(content)
	return strings.HasPrefix(s, encryptedHeader) || strings.HasPrefix(s, kmsHeader)
}

func frame(header string, ciphertext []byte) []byte {
	return []byte(header + base64.StdEncoding.EncodeToString(ciphertext) + "\n")
}

func unframe(header string, content []byte) ([]byte, error) {
	s := string(content)
	if !strings.HasPrefix(s, header) {
		return nil, fmt.Errorf("entry was not sealed with this key type")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(s, header)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted entry: %w", err)
	}
	return ciphertext, nil
}

// seal applies s when set.
func seal(ctx context.Context, s Sealer, content []byte) ([]byte, error) {
	if s == nil {
		return content, nil
	}
	return s.Seal(ctx, content)
}

// unseal opens encrypted content with s and passes plain content through.
func unseal(ctx context.Context, s Sealer, content []byte) ([]byte, error) {
	if !IsEncrypted(content) {
		return content, nil
	}
	if s == nil {
		return nil, fmt.Errorf("journal entry is encrypted but no encryption key is configured")
	}
	return s.Open(ctx, content)
}
