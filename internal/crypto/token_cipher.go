package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	keyBytes   = 32 // AES-256
	nonceBytes = 12 // standard GCM nonce
	tagBytes   = 16 // GCM auth tag
)

var (
	// ErrDecryptionFailed covers tampered blobs, truncated blobs, and wrong
	// keys alike. No partial plaintext is ever returned.
	ErrDecryptionFailed = errors.New("token decryption failed")
	// ErrInvalidKey means the configured key is absent or not 32 raw bytes.
	ErrInvalidKey = errors.New("encryption key must be 64 hex characters (32 bytes)")
)

// TokenCipher encrypts provider tokens for storage at rest using
// AES-256-GCM. The blob layout is base64(nonce || ciphertext || tag).
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a 64-hex-character key. There is no
// fallback key: a missing or malformed key is a hard configuration error.
func NewTokenCipher(hexKey string) (*TokenCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != keyBytes {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. A repeated nonce under
// the same key breaks GCM confidentiality, so the nonce is drawn from
// crypto/rand on every call and never derived from the input.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	// Seal appends ciphertext||tag to the nonce slice.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. The nonce is the first 12 bytes
// and the tag the last 16; anything in between is ciphertext.
func (c *TokenCipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < nonceBytes+tagBytes {
		return "", ErrDecryptionFailed
	}
	nonce, ciphertext := raw[:nonceBytes], raw[nonceBytes:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
