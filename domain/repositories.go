package domain

import "context"

// OAuthStateRepository persists in-flight authorization attempts keyed by
// the state token. Expired documents are swept by a store-level TTL index,
// never by application code.
type OAuthStateRepository interface {
	SaveState(ctx context.Context, state *OAuthState) error
	// GetState returns ErrStateNotFound when no document exists for token.
	GetState(ctx context.Context, token string) (*OAuthState, error)
	DeleteState(ctx context.Context, token string) error
}

// CredentialRepository persists provider credentials, one document per
// (user, provider) pair.
type CredentialRepository interface {
	// UpsertCredential creates or replaces the credential for
	// (cred.UserID, cred.Provider), preserving CreatedAt on update.
	UpsertCredential(ctx context.Context, cred *Credential) error
	// GetCredential returns ErrCredentialNotFound when the pair is not connected.
	GetCredential(ctx context.Context, userID string, provider Provider) (*Credential, error)
	DeleteCredential(ctx context.Context, userID string, provider Provider) error
}

// RateLimitRepository stores per (user, action) request logs.
type RateLimitRepository interface {
	// GetWindow returns an empty window (nil Requests) when none exists yet.
	GetWindow(ctx context.Context, key string) (*RateLimitWindow, error)
	// PutWindow replaces the stored request log for key.
	PutWindow(ctx context.Context, window *RateLimitWindow) error
}

// AdAccountRepository stores discovered ad accounts.
type AdAccountRepository interface {
	// ReplaceForUser upserts the given accounts for (userID, provider) in
	// batched writes. Implementations must chunk below the store's
	// per-commit mutation ceiling.
	ReplaceForUser(ctx context.Context, userID string, provider Provider, accounts []AdAccount) error
	ListForUser(ctx context.Context, userID string, provider Provider) ([]AdAccount, error)
}

// LeadRepository stores captured marketing leads.
type LeadRepository interface {
	// SaveLead inserts the lead; saving an email that already exists is not
	// an error.
	SaveLead(ctx context.Context, lead *Lead) error
}
