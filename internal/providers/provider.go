package providers

import (
	"context"
	"time"

	"github.com/adsight-labs/adsight-core/domain"
)

// Grant is the validated outcome of a completed exchange chain. Exactly one
// of RefreshToken (Google) or AccessToken (Meta, long-lived) is populated.
// Untyped provider JSON never travels past the adapter boundary.
type Grant struct {
	Provider         domain.Provider
	Status           domain.FlowStatus
	RefreshToken     string
	AccessToken      string
	ExpiresAt        *time.Time
	Scopes           []string
	ProviderUserID   string
	ProviderUserName string
}

// Adapter is one external ad platform's OAuth flow. Implementations hold
// their own client credentials and are constructed per request from explicit
// configuration; there is no process-wide cached client.
type Adapter interface {
	// Name returns the provider this adapter serves.
	Name() domain.Provider

	// AuthCodeURL builds the URL the user is redirected to, carrying the
	// CSRF state and the exact redirect URI registered for this attempt.
	AuthCodeURL(state, redirectURI string) string

	// Exchange runs the full provider-specific exchange chain for an
	// authorization code: a single hop for Google, code -> short-lived ->
	// long-lived for Meta.
	Exchange(ctx context.Context, code, redirectURI string) (*Grant, error)

	// Revoke invalidates the credential at the provider where supported.
	// Failures are logged and swallowed; local deletion must proceed
	// regardless of the remote outcome.
	Revoke(ctx context.Context, cred *domain.Credential)
}

// Credentials are one provider's OAuth client id and secret, supplied from
// configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
}
