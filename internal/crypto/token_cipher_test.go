package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewTokenCipher_KeyValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too short", "deadbeef"},
		{"not hex", strings.Repeat("zz", 32)},
		{"too long", testKey + "00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenCipher(tt.key)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"", "a", "EAABlongLivedMetaToken123", strings.Repeat("x", 4096)} {
		blob, err := c.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestTokenCipher_NonceFreshness(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	first, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two encryptions of the same plaintext must differ")
}

func TestTokenCipher_TamperDetection(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	blob, err := c.Encrypt("secret-token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryptionFailed, "flipping byte %d must fail authentication", i)
	}
}

func TestTokenCipher_WrongKey(t *testing.T) {
	c1, err := NewTokenCipher(testKey)
	require.NoError(t, err)
	c2, err := NewTokenCipher(strings.Repeat("ab", 32))
	require.NoError(t, err)

	blob, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestTokenCipher_MalformedBlob(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	for _, blob := range []string{"", "not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.Decrypt(blob)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}
