package domain

import "time"

// AdAccount is one advertising account discovered for a connected user.
// Discovery runs after a successful callback and upserts the full set in a
// single batched write.
type AdAccount struct {
	ID        string    `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Provider  Provider  `bson:"provider" json:"provider"`
	AccountID string    `bson:"account_id" json:"account_id"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Currency  string    `bson:"currency,omitempty" json:"currency,omitempty"`
	Status    string    `bson:"status,omitempty" json:"status,omitempty"`
	SyncedAt  time.Time `bson:"synced_at" json:"synced_at"`
}
