package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/domain"
	"github.com/adsight-labs/adsight-core/internal/crypto"
	"github.com/adsight-labs/adsight-core/internal/metrics"
	"github.com/adsight-labs/adsight-core/internal/providers"
)

// GraphEndpoint is a variable so tests can point the client at an httptest
// server.
var GraphEndpoint = "https://graph.facebook.com/v19.0"

// Client reads advertising data from the Graph API with a user's stored
// long-lived token. The token is decrypted per call and never retained on
// the struct.
type Client struct {
	credentials domain.CredentialRepository
	accounts    domain.AdAccountRepository
	cipher      *crypto.TokenCipher
	httpClient  *http.Client
	now         func() time.Time
}

func NewClient(credentials domain.CredentialRepository, accounts domain.AdAccountRepository, cipher *crypto.TokenCipher) *Client {
	return &Client{
		credentials: credentials,
		accounts:    accounts,
		cipher:      cipher,
		httpClient:  http.DefaultClient,
		now:         time.Now,
	}
}

// graphError is the Graph API error envelope shared by all endpoints.
type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type adAccountsResponse struct {
	graphError
	Data []struct {
		ID            string `json:"id"`
		AccountID     string `json:"account_id"`
		Name          string `json:"name"`
		Currency      string `json:"currency"`
		AccountStatus int    `json:"account_status"`
	} `json:"data"`
}

// Campaign is one campaign row from the Graph API.
type Campaign struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Objective string `json:"objective"`
}

type campaignsResponse struct {
	graphError
	Data []Campaign `json:"data"`
}

// Insights is one aggregated metrics row for an ad account or campaign.
type Insights struct {
	Impressions string `json:"impressions"`
	Clicks      string `json:"clicks"`
	Spend       string `json:"spend"`
	DateStart   string `json:"date_start"`
	DateStop    string `json:"date_stop"`
}

type insightsResponse struct {
	graphError
	Data []Insights `json:"data"`
}

// Sync discovers the user's ad accounts and replaces the stored set. It
// implements the orchestrator's AccountDiscoverer.
func (c *Client) Sync(ctx context.Context, cred *domain.Credential) error {
	token, err := c.token(cred)
	if err != nil {
		return err
	}

	var payload adAccountsResponse
	params := url.Values{"fields": {"account_id,name,currency,account_status"}}
	if err := c.get(ctx, "/me/adaccounts", token, params, &payload); err != nil {
		return fmt.Errorf("listing ad accounts: %w", err)
	}

	syncedAt := c.now().UTC()
	accounts := make([]domain.AdAccount, 0, len(payload.Data))
	for _, raw := range payload.Data {
		accounts = append(accounts, domain.AdAccount{
			UserID:    cred.UserID,
			Provider:  domain.ProviderMeta,
			AccountID: raw.AccountID,
			Name:      raw.Name,
			Currency:  raw.Currency,
			Status:    accountStatusName(raw.AccountStatus),
			SyncedAt:  syncedAt,
		})
	}

	if err := c.accounts.ReplaceForUser(ctx, cred.UserID, domain.ProviderMeta, accounts); err != nil {
		return fmt.Errorf("storing discovered accounts: %w", err)
	}

	metrics.AccountsSyncedTotal.WithLabelValues(domain.ProviderMeta.String()).Add(float64(len(accounts)))
	log.Info().Str("user_id", cred.UserID).Int("accounts", len(accounts)).Msg("Meta ad accounts synced")
	return nil
}

// ListCampaigns returns the campaigns under one ad account.
func (c *Client) ListCampaigns(ctx context.Context, userID, accountID string) ([]Campaign, error) {
	token, err := c.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var payload campaignsResponse
	params := url.Values{"fields": {"id,name,status,objective"}}
	if err := c.get(ctx, fmt.Sprintf("/act_%s/campaigns", accountID), token, params, &payload); err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	return payload.Data, nil
}

// AccountInsights returns aggregated metrics for one ad account over the
// given preset range (for example "last_30d").
func (c *Client) AccountInsights(ctx context.Context, userID, accountID, datePreset string) ([]Insights, error) {
	token, err := c.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var payload insightsResponse
	params := url.Values{
		"fields":      {"impressions,clicks,spend"},
		"date_preset": {datePreset},
	}
	if err := c.get(ctx, fmt.Sprintf("/act_%s/insights", accountID), token, params, &payload); err != nil {
		return nil, fmt.Errorf("fetching insights: %w", err)
	}
	return payload.Data, nil
}

// userToken loads and decrypts the stored token for userID.
func (c *Client) userToken(ctx context.Context, userID string) (string, error) {
	cred, err := c.credentials.GetCredential(ctx, userID, domain.ProviderMeta)
	if err != nil {
		return "", err
	}
	return c.token(cred)
}

func (c *Client) token(cred *domain.Credential) (string, error) {
	if cred.ExpiresAt != nil && cred.ExpiresAt.Before(c.now()) {
		return "", providers.ErrTokenExpired
	}
	token, err := c.cipher.Decrypt(cred.EncryptedAccessToken)
	if err != nil {
		return "", fmt.Errorf("decrypting stored token: %w", err)
	}
	return token, nil
}

// get issues a Graph API request and decodes into out, which must embed
// graphError. Graph signals failures through the error envelope, often with
// HTTP 400, so the envelope is checked regardless of status.
func (c *Client) get(ctx context.Context, path, token string, params url.Values, out interface{ apiError() *providers.APIError }) error {
	params.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GraphEndpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	if apiErr := out.apiError(); apiErr != nil {
		return providers.Classify(apiErr)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph request to %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (e graphError) apiError() *providers.APIError {
	if e.Error == nil {
		return nil
	}
	return &providers.APIError{
		ProviderName: domain.ProviderMeta.String(),
		Code:         e.Error.Code,
		Type:         e.Error.Type,
		Message:      e.Error.Message,
	}
}

func accountStatusName(status int) string {
	switch status {
	case 1:
		return "ACTIVE"
	case 2:
		return "DISABLED"
	case 3:
		return "UNSETTLED"
	case 101:
		return "CLOSED"
	default:
		return fmt.Sprintf("STATUS_%d", status)
	}
}
