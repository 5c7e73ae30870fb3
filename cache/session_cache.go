package cache

import (
	"context"
	"time"
)

// SessionEntry is one verified bearer identity. Entries are keyed by the
// hash of the bearer token, never the token itself.
type SessionEntry struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionCache short-circuits repeated verification of the same bearer
// token. Implementations must honor the entry expiry.
type SessionCache interface {
	Get(ctx context.Context, tokenHash string) (*SessionEntry, bool)
	Set(ctx context.Context, tokenHash string, entry *SessionEntry) error
	Delete(ctx context.Context, tokenHash string) error
}
