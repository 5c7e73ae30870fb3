package domain

import "time"

// Credential is the persisted secret for one (user, provider) pair. At most
// one document exists per pair; writes are idempotent upserts.
//
// Google stores a refresh token, which nominally never expires. Meta stores
// the AES-GCM ciphertext of a long-lived access token together with its
// absolute expiry (about 60 days out).
type Credential struct {
	ID                   string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID               string     `bson:"user_id" json:"user_id"`
	Provider             Provider   `bson:"provider" json:"provider"`
	ProviderUserID       string     `bson:"provider_user_id,omitempty" json:"provider_user_id,omitempty"`
	ProviderUserName     string     `bson:"provider_user_name,omitempty" json:"provider_user_name,omitempty"`
	RefreshToken         string     `bson:"refresh_token,omitempty" json:"-"`
	EncryptedAccessToken string     `bson:"encrypted_access_token,omitempty" json:"-"`
	Scopes               []string   `bson:"scopes,omitempty" json:"scopes,omitempty"`
	ExpiresAt            *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt            time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `bson:"updated_at" json:"updated_at"`
}
