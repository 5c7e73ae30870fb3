package domain

import "time"

// StateTTL is the absolute lifetime of an in-flight authorization attempt.
const StateTTL = 10 * time.Minute

// OAuthState binds an authorization request to its callback. The token is
// the primary key and is single-use: the orchestrator deletes the document
// after a successful callback, and a replay must fail as not-found.
type OAuthState struct {
	Token       string    `bson:"_id" json:"token"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Provider    Provider  `bson:"provider" json:"provider"`
	RedirectURI string    `bson:"redirect_uri" json:"redirect_uri"` // must match the provider redirect byte-for-byte
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the state is past its absolute expiry.
func (s *OAuthState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
