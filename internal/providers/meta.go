package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	facebookOAuth2 "golang.org/x/oauth2/facebook"

	"github.com/adsight-labs/adsight-core/domain"
)

// Graph API endpoints, variables so tests can redirect them.
var (
	MetaAuthURL          = facebookOAuth2.Endpoint.AuthURL
	MetaTokenEndpoint    = "https://graph.facebook.com/v19.0/oauth/access_token"
	MetaIdentityEndpoint = "https://graph.facebook.com/v19.0/me"
)

// MetaAdsScopes is the fixed scope set for Meta Ads reporting. Meta always
// returns a fresh code, so no forced re-consent is needed.
var MetaAdsScopes = []string{"ads_read", "ads_management", "business_management"}

// defaultMetaTokenLifetime applies when the extend response omits
// expires_in. Long-lived Meta tokens last about 60 days.
const defaultMetaTokenLifetime = 5184000 * time.Second

// MetaAdapter implements the three-step Meta flow:
// unauthenticated -> authorizing -> short_lived -> authenticated.
type MetaAdapter struct {
	creds      Credentials
	httpClient *http.Client
	now        func() time.Time
}

func NewMetaAdapter(creds Credentials) *MetaAdapter {
	return &MetaAdapter{creds: creds, httpClient: http.DefaultClient, now: time.Now}
}

func (m *MetaAdapter) Name() domain.Provider { return domain.ProviderMeta }

func (m *MetaAdapter) AuthCodeURL(state, redirectURI string) string {
	conf := &oauth2.Config{
		ClientID:    m.creds.ClientID,
		RedirectURL: redirectURI,
		Scopes:      MetaAdsScopes,
		Endpoint:    oauth2.Endpoint{AuthURL: MetaAuthURL},
	}
	return conf.AuthCodeURL(state)
}

// metaTokenResponse is the Graph API token payload, either hop.
type metaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Exchange runs both hops: code -> short-lived token, then
// grant_type=fb_exchange_token -> long-lived token. Identity enrichment is
// best effort and never fails the exchange.
func (m *MetaAdapter) Exchange(ctx context.Context, code, redirectURI string) (*Grant, error) {
	if m.creds.ClientID == "" || m.creds.ClientSecret == "" {
		return nil, ErrMisconfigured
	}

	shortLived, err := m.tokenRequest(ctx, url.Values{
		"client_id":     {m.creds.ClientID},
		"client_secret": {m.creds.ClientSecret},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	})
	if err != nil {
		return nil, Classify(fmt.Errorf("exchanging code: %w", err))
	}

	longLived, err := m.tokenRequest(ctx, url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {m.creds.ClientID},
		"client_secret":     {m.creds.ClientSecret},
		"fb_exchange_token": {shortLived.AccessToken},
	})
	if err != nil {
		return nil, Classify(fmt.Errorf("extending token: %w", err))
	}

	lifetime := defaultMetaTokenLifetime
	if longLived.ExpiresIn > 0 {
		lifetime = time.Duration(longLived.ExpiresIn) * time.Second
	}
	expiresAt := m.now().Add(lifetime)

	grant := &Grant{
		Provider:    domain.ProviderMeta,
		Status:      domain.FlowAuthenticated,
		AccessToken: longLived.AccessToken,
		ExpiresAt:   &expiresAt,
		Scopes:      MetaAdsScopes,
	}

	if id, name, err := m.fetchIdentity(ctx, longLived.AccessToken); err != nil {
		log.Warn().Err(err).Msg("Meta identity fetch failed, storing credential without identity metadata")
	} else {
		grant.ProviderUserID = id
		grant.ProviderUserName = name
	}

	return grant, nil
}

func (m *MetaAdapter) tokenRequest(ctx context.Context, params url.Values) (*metaTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, MetaTokenEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload metaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if payload.Error != nil {
		return nil, &APIError{
			ProviderName: "meta",
			Code:         payload.Error.Code,
			Type:         payload.Error.Type,
			Message:      payload.Error.Message,
		}
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token (status %d)", resp.StatusCode)
	}
	return &payload, nil
}

func (m *MetaAdapter) fetchIdentity(ctx context.Context, accessToken string) (id, name string, err error) {
	params := url.Values{"fields": {"id,name"}, "access_token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, MetaIdentityEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", "", err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("identity fetch returned status %d", resp.StatusCode)
	}

	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", "", err
	}
	return me.ID, me.Name, nil
}

// Revoke is local-only for Meta. Long-lived tokens are left to expire
// naturally; there is no remote revocation call.
func (m *MetaAdapter) Revoke(_ context.Context, cred *domain.Credential) {
	log.Debug().Str("user_id", cred.UserID).Msg("Meta revoke is local-only, token left to natural expiry")
}

var _ Adapter = (*MetaAdapter)(nil)
