package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/domain"
	serrors "github.com/adsight-labs/adsight-core/errors"
	"github.com/adsight-labs/adsight-core/internal/metrics"
	"github.com/adsight-labs/adsight-core/internal/providers"
	"github.com/adsight-labs/adsight-core/internal/ratelimit"
)

// IdentityVerifier resolves a bearer token to a user identifier.
type IdentityVerifier interface {
	Verify(ctx context.Context, bearer string) (string, error)
}

// AccountDiscoverer syncs the provider's ad accounts after a successful
// connect. Failures are logged, never surfaced to the callback response.
type AccountDiscoverer interface {
	Sync(ctx context.Context, cred *domain.Credential) error
}

// TokenSealer encrypts provider tokens before they are persisted.
type TokenSealer interface {
	Encrypt(plaintext string) (string, error)
}

// InitiateRequest carries everything the initiate step needs to resolve
// identity and the callback redirect.
type InitiateRequest struct {
	Bearer   string
	Provider domain.Provider
	// Origin resolution order: explicit body field, then the Origin
	// header, then Referer.
	OriginHint   string
	OriginHeader string
	Referer      string
}

// CallbackRequest is the provider's redirect back to us.
type CallbackRequest struct {
	Provider      domain.Provider
	Code          string
	State         string
	ProviderError string
}

// ConnectService orchestrates the OAuth connection lifecycle: initiate,
// callback, revoke. It is constructed per process from explicit
// configuration and holds no mutable state of its own; everything
// cross-request lives in the document store.
type ConnectService struct {
	verifier     IdentityVerifier
	limiter      *ratelimit.Limiter
	states       *StateService
	credentials  domain.CredentialRepository
	adapters     map[domain.Provider]providers.Adapter
	cipher       TokenSealer
	discoverers  map[domain.Provider]AccountDiscoverer
	callbackPath string
}

// ConnectServiceParams collects the orchestrator's dependencies.
type ConnectServiceParams struct {
	Verifier     IdentityVerifier
	Limiter      *ratelimit.Limiter
	States       *StateService
	Credentials  domain.CredentialRepository
	Adapters     map[domain.Provider]providers.Adapter
	Cipher       TokenSealer
	Discoverers  map[domain.Provider]AccountDiscoverer
	CallbackPath string
}

func NewConnectService(p ConnectServiceParams) *ConnectService {
	callbackPath := p.CallbackPath
	if callbackPath == "" {
		callbackPath = "/api/oauth/%s/callback"
	}
	return &ConnectService{
		verifier:     p.Verifier,
		limiter:      p.Limiter,
		states:       p.States,
		credentials:  p.Credentials,
		adapters:     p.Adapters,
		cipher:       p.Cipher,
		discoverers:  p.Discoverers,
		callbackPath: callbackPath,
	}
}

// Initiate verifies the caller, applies the initiation rate limit, binds a
// fresh state to the resolved redirect URI, and returns the provider's
// authorization URL.
func (s *ConnectService) Initiate(ctx context.Context, req InitiateRequest) (string, error) {
	adapter, ok := s.adapters[req.Provider]
	if !ok {
		return "", serrors.NewProviderError("provider is not configured")
	}

	userID, err := s.verifier.Verify(ctx, req.Bearer)
	if err != nil {
		return "", serrors.NewUnauthorized("invalid or missing identity token")
	}

	action := fmt.Sprintf("%s_oauth_initiate", req.Provider)
	if !s.limiter.Allow(ctx, userID, action, ratelimit.InitiateConfig) {
		metrics.RateLimitedTotal.Inc()
		return "", serrors.NewRateLimited("too many connection attempts, try again later")
	}

	origin := resolveOrigin(req.OriginHint, req.OriginHeader, req.Referer)
	if origin == "" {
		return "", serrors.NewMissingOrigin()
	}
	redirectURI := origin + fmt.Sprintf(s.callbackPath, req.Provider)

	state, err := s.states.Create(ctx, userID, req.Provider, redirectURI)
	if err != nil {
		log.Error().Err(err).Str("provider", req.Provider.String()).Msg("Failed to create oauth state")
		return "", serrors.NewProviderError("could not start the authorization flow")
	}

	metrics.InitiationsTotal.WithLabelValues(req.Provider.String()).Inc()
	return adapter.AuthCodeURL(state, redirectURI), nil
}

// Callback completes the flow: validate, consume the state, run the
// exchange chain, persist the credential, and delete the state.
//
// The state is deleted only once the exchange has produced a grant. An
// exchange failure (for example a transient network error reaching the
// provider) leaves the state in place so the same callback can be retried
// within the expiry window; everything after a successful exchange cleans
// the state up even on failure, so a dead single-use token never blocks a
// fresh attempt.
func (s *ConnectService) Callback(ctx context.Context, req CallbackRequest) (string, error) {
	provider := req.Provider.String()

	if req.ProviderError != "" {
		// Never echo provider error text; an opaque marker is enough for
		// the UI and keeps provider details out of redirect URLs.
		log.Warn().Str("provider", provider).Str("provider_error", req.ProviderError).
			Msg("Provider reported an authorization error")
		metrics.CallbacksTotal.WithLabelValues(provider, "denied").Inc()
		return "", serrors.NewProviderError("authorization was not granted")
	}

	if err := ValidateStateToken(req.State); err != nil {
		metrics.CallbacksTotal.WithLabelValues(provider, "invalid").Inc()
		return "", err
	}
	if err := ValidateAuthCode(req.Code); err != nil {
		metrics.CallbacksTotal.WithLabelValues(provider, "invalid").Inc()
		return "", err
	}

	state, err := s.states.Consume(ctx, req.State, req.Provider)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(provider, "state_rejected").Inc()
		return "", err
	}

	adapter, ok := s.adapters[req.Provider]
	if !ok {
		return "", serrors.NewProviderError("provider is not configured")
	}

	grant, err := adapter.Exchange(ctx, req.Code, state.RedirectURI)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(provider, "exchange_failed").Inc()
		return "", s.classifyExchangeError(err)
	}

	// From here on the state must not survive: the code it guarded is
	// spent at the provider.
	defer s.states.Delete(ctx, req.State)

	cred := &domain.Credential{
		UserID:           state.UserID,
		Provider:         req.Provider,
		ProviderUserID:   grant.ProviderUserID,
		ProviderUserName: grant.ProviderUserName,
		Scopes:           grant.Scopes,
		ExpiresAt:        grant.ExpiresAt,
	}

	switch req.Provider {
	case domain.ProviderGoogle:
		// Stored as received. Encrypting it too is an open follow-up; see
		// DESIGN.md.
		cred.RefreshToken = grant.RefreshToken
	case domain.ProviderMeta:
		blob, err := s.cipher.Encrypt(grant.AccessToken)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encrypt Meta access token")
			metrics.CallbacksTotal.WithLabelValues(provider, "internal_error").Inc()
			return "", serrors.NewConfigError("could not protect the credential")
		}
		cred.EncryptedAccessToken = blob
	}

	if err := s.credentials.UpsertCredential(ctx, cred); err != nil {
		log.Error().Err(err).Str("user_id", state.UserID).Msg("Failed to persist credential")
		metrics.CallbacksTotal.WithLabelValues(provider, "internal_error").Inc()
		return "", serrors.NewProviderError("could not store the credential")
	}

	metrics.CallbacksTotal.WithLabelValues(provider, "success").Inc()
	log.Info().Str("user_id", state.UserID).Str("provider", provider).Msg("Provider connected")

	s.startDiscovery(req.Provider, cred)

	return state.UserID, nil
}

// Revoke disconnects the provider: best-effort remote revocation, then an
// unconditional local delete.
func (s *ConnectService) Revoke(ctx context.Context, bearer string, provider domain.Provider) error {
	userID, err := s.verifier.Verify(ctx, bearer)
	if err != nil {
		return serrors.NewUnauthorized("invalid or missing identity token")
	}

	cred, err := s.credentials.GetCredential(ctx, userID, provider)
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound):
		// Nothing stored; disconnect is a no-op success.
		return nil
	case err != nil:
		return fmt.Errorf("loading credential for revoke: %w", err)
	}

	if adapter, ok := s.adapters[provider]; ok {
		adapter.Revoke(ctx, cred)
	}

	if err := s.credentials.DeleteCredential(ctx, userID, provider); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	metrics.RevokesTotal.WithLabelValues(provider.String()).Inc()
	log.Info().Str("user_id", userID).Str("provider", provider.String()).Msg("Provider disconnected")
	return nil
}

func (s *ConnectService) classifyExchangeError(err error) error {
	switch {
	case errors.Is(err, providers.ErrNoRefreshToken):
		return serrors.NewNoRefreshToken()
	case errors.Is(err, providers.ErrTokenExpired):
		return serrors.NewTokenExpired()
	default:
		log.Error().Err(err).Msg("Token exchange failed")
		return serrors.NewProviderError("token exchange failed")
	}
}

// startDiscovery kicks off account discovery in the background with its own
// deadline, detached from the callback request.
func (s *ConnectService) startDiscovery(provider domain.Provider, cred *domain.Credential) {
	discoverer, ok := s.discoverers[provider]
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := discoverer.Sync(ctx, cred); err != nil {
			log.Warn().Err(err).Str("provider", provider.String()).Msg("Ad account discovery failed")
		}
	}()
}

// resolveOrigin picks the first usable origin and strips a single trailing
// slash so the redirect URI matches the registered one byte-for-byte.
func resolveOrigin(hint, originHeader, referer string) string {
	for _, candidate := range []string{hint, originHeader, referer} {
		if candidate == "" {
			continue
		}
		return strings.TrimSuffix(candidate, "/")
	}
	return ""
}
