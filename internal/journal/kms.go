package journal

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type kmsAPI interface {
	Encrypt(ctx context.Context, in *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// kmsContext binds ciphertexts to this use; Decrypt fails for blobs
// encrypted under another context.
var kmsContext = map[string]string{"purpose": "ggprov-journal"}

// KMSSealer encrypts entries directly under a KMS key. Entries are small
// enough for the 4 KiB Encrypt limit.
type KMSSealer struct {
	client kmsAPI
	keyID  string
}

func NewKMSSealer(client kmsAPI, keyID string) *KMSSealer {
	return &KMSSealer{client: client, keyID: keyID}
}

func (k *KMSSealer) Seal(ctx context.Context, content []byte) ([]byte, error) {
	out, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(k.keyID),
		Plaintext:         content,
		EncryptionContext: kmsContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt entry with %s: %w", k.keyID, err)
	}
	return frame(kmsHeader, out.CiphertextBlob), nil
}

func (k *KMSSealer) Open(ctx context.Context, content []byte) ([]byte, error) {
	blob, err := unframe(kmsHeader, content)
	if err != nil {
		return nil, err
	}
	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		KeyId:             aws.String(k.keyID),
		EncryptionContext: kmsContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt entry: %w", err)
	}
	return out.Plaintext, nil
}
