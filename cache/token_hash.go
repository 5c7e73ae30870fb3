package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken derives the cache key for a bearer token. Raw tokens never
// appear in cache keys or logs.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
