package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCipher_EmptyKey(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)
}

func TestCipher_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewCipher("my-journal-key")
	require.NoError(t, err)

	content := []byte(`{"requestId":"r-1","status":"SUCCESS"}`)
	sealed, err := c.Seal(ctx, content)
	require.NoError(t, err)
	assert.NotEqual(t, content, sealed)
	assert.True(t, IsEncrypted(sealed))

	opened, err := c.Open(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, content, opened)
}

func TestCipher_WrongKey(t *testing.T) {
	ctx := context.Background()
	right, err := NewCipher("right-key")
	require.NoError(t, err)
	wrong, err := NewCipher("wrong-key")
	require.NoError(t, err)

	sealed, err := right.Seal(ctx, []byte("entry"))
	require.NoError(t, err)

	_, err = wrong.Open(ctx, sealed)
	assert.Error(t, err)
}

func TestUnseal(t *testing.T) {
	ctx := context.Background()
	plain := []byte(`{"requestId":"r-1"}`)

	got, err := unseal(ctx, nil, plain)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	c, err := NewCipher("k")
	require.NoError(t, err)
	sealed, err := seal(ctx, c, plain)
	require.NoError(t, err)

	_, err = unseal(ctx, nil, sealed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no encryption key")

	got, err = unseal(ctx, c, sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte("# GGPROV_ENCRYPTED_ENTRY\nbase64data")))
	assert.True(t, IsEncrypted([]byte("# GGPROV_KMS_ENTRY\nbase64data")))
	assert.False(t, IsEncrypted([]byte(`{"requestId":"r-1"}`)))
	assert.False(t, IsEncrypted([]byte("")))
}
