package secrets

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t)
	codec := NewCodec(&key.PublicKey, key)

	for _, plaintext := range []string{"hunter2", "", "pässwörd with ümlauts", "a long password with spaces and 1234567890 symbols !@#$%"} {
		encoded, err := codec.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, encoded)

		decoded, err := codec.Decrypt(encoded)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decoded)
	}
}

func TestDecryptFailuresCollapse(t *testing.T) {
	key := testKey(t)
	codec := NewCodec(&key.PublicKey, key)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"base64 but not ciphertext", "aGVsbG8gd29ybGQ="},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decrypt(tt.input)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}

	t.Run("wrong key", func(t *testing.T) {
		other := testKey(t)
		encoded, err := NewCodec(&other.PublicKey, nil).Encrypt("secret")
		require.NoError(t, err)
		_, err = codec.Decrypt(encoded)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("no private key", func(t *testing.T) {
		encodeOnly := NewCodec(&key.PublicKey, nil)
		_, err := encodeOnly.Decrypt("anything")
		assert.ErrorIs(t, err, ErrDecrypt)
	})
}

func TestLoadPEMFiles(t *testing.T) {
	key := testKey(t)
	dir := t.TempDir()

	pubPath := filepath.Join(dir, "public.pem")
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0600))

	privPath := filepath.Join(dir, "private.pem")
	privDER := x509.MarshalPKCS1PrivateKey(key)
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER}), 0600))

	codec, err := Load(pubPath, privPath)
	require.NoError(t, err)
	assert.True(t, codec.CanEncrypt())
	assert.True(t, codec.CanDecrypt())

	encoded, err := codec.Encrypt("round trip through files")
	require.NoError(t, err)
	decoded, err := codec.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, "round trip through files", decoded)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.pem"), "")
		require.Error(t, err)
	})

	t.Run("not pem", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a pem file"), 0600))
		_, err := Load(path, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no PEM block")
	})

	t.Run("empty paths load nothing", func(t *testing.T) {
		codec, err := Load("", "")
		require.NoError(t, err)
		assert.False(t, codec.CanEncrypt())
		assert.False(t, codec.CanDecrypt())
	})
}
