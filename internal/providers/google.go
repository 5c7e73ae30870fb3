package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"

	"github.com/adsight-labs/adsight-core/domain"
)

// GoogleEndpoint and GoogleRevokeEndpoint are variables so tests can point
// the adapter at an httptest server.
var (
	GoogleEndpoint       = googleOAuth2.Endpoint
	GoogleRevokeEndpoint = "https://oauth2.googleapis.com/revoke"
)

// GoogleAdsScopes is the scope set requested for Google Ads reporting.
var GoogleAdsScopes = []string{
	"https://www.googleapis.com/auth/adwords",
	"https://www.googleapis.com/auth/userinfo.email",
}

// GoogleAdapter implements the two-step Google flow:
// unauthenticated -> authorizing -> authenticated.
type GoogleAdapter struct {
	creds      Credentials
	httpClient *http.Client
}

func NewGoogleAdapter(creds Credentials) *GoogleAdapter {
	return &GoogleAdapter{creds: creds, httpClient: http.DefaultClient}
}

func (g *GoogleAdapter) Name() domain.Provider { return domain.ProviderGoogle }

func (g *GoogleAdapter) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.creds.ClientID,
		ClientSecret: g.creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       GoogleAdsScopes,
		Endpoint:     GoogleEndpoint,
	}
}

// AuthCodeURL requests offline access and forces the consent screen.
// Without prompt=consent a returning user gets no refresh token and the
// callback has nothing to store.
func (g *GoogleAdapter) AuthCodeURL(state, redirectURI string) string {
	return g.config(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange performs the single code-for-token hop. A payload without a
// refresh token fails with ErrNoRefreshToken; storing nothing silently would
// leave the user looking connected with no usable credential.
func (g *GoogleAdapter) Exchange(ctx context.Context, code, redirectURI string) (*Grant, error) {
	if g.creds.ClientID == "" || g.creds.ClientSecret == "" {
		return nil, ErrMisconfigured
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	if token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	scopes := GoogleAdsScopes
	if granted, ok := token.Extra("scope").(string); ok && granted != "" {
		scopes = strings.Fields(granted)
	}

	return &Grant{
		Provider:     domain.ProviderGoogle,
		Status:       domain.FlowAuthenticated,
		RefreshToken: token.RefreshToken,
		Scopes:       scopes,
	}, nil
}

// Revoke tells Google to invalidate the refresh token. Best effort: a
// remote failure must not block the user's disconnect, so errors are logged
// and dropped.
func (g *GoogleAdapter) Revoke(ctx context.Context, cred *domain.Credential) {
	if cred.RefreshToken == "" {
		return
	}

	form := url.Values{"token": {cred.RefreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GoogleRevokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Warn().Err(err).Msg("Building Google revoke request failed")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Google token revocation failed, proceeding with local delete")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Google token revocation returned non-200, proceeding with local delete")
	}
}

var _ Adapter = (*GoogleAdapter)(nil)
