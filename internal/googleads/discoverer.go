package googleads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/adsight-labs/adsight-core/domain"
	"github.com/adsight-labs/adsight-core/internal/metrics"
	"github.com/adsight-labs/adsight-core/internal/providers"
)

// APIEndpoint is a variable so tests can point the client at an httptest
// server.
var APIEndpoint = "https://googleads.googleapis.com/v18"

const (
	// maxDetailFetches caps how many customers get a per-account detail
	// query during one sync. Agencies can see thousands of accounts; the
	// rest sync with ids only.
	maxDetailFetches = 20

	// detailConcurrency bounds parallel detail queries against the API.
	detailConcurrency = 5
)

// Config carries the Google Ads API access parameters.
type Config struct {
	Credentials    providers.Credentials
	DeveloperToken string
}

// Discoverer lists the ad accounts reachable with a user's refresh token and
// stores them. It implements the orchestrator's AccountDiscoverer.
type Discoverer struct {
	cfg        Config
	accounts   domain.AdAccountRepository
	baseClient *http.Client
	now        func() time.Time
}

func NewDiscoverer(cfg Config, accounts domain.AdAccountRepository) *Discoverer {
	return &Discoverer{
		cfg:        cfg,
		accounts:   accounts,
		baseClient: http.DefaultClient,
		now:        time.Now,
	}
}

type listAccessibleCustomersResponse struct {
	ResourceNames []string `json:"resourceNames"`
}

type searchResponse struct {
	Results []struct {
		Customer struct {
			DescriptiveName string `json:"descriptiveName"`
			CurrencyCode    string `json:"currencyCode"`
			Status          string `json:"status"`
		} `json:"customer"`
	} `json:"results"`
}

// Sync discovers the accessible customers, enriches the first few with
// name, currency and status, and replaces the stored account set for the
// user in one batched write.
func (d *Discoverer) Sync(ctx context.Context, cred *domain.Credential) error {
	if cred.RefreshToken == "" {
		return fmt.Errorf("credential for user %s has no refresh token", cred.UserID)
	}

	client := d.authClient(ctx, cred.RefreshToken)

	customerIDs, err := d.listAccessibleCustomers(ctx, client)
	if err != nil {
		return fmt.Errorf("listing accessible customers: %w", err)
	}

	syncedAt := d.now().UTC()
	accounts := make([]domain.AdAccount, len(customerIDs))
	for i, id := range customerIDs {
		accounts[i] = domain.AdAccount{
			UserID:    cred.UserID,
			Provider:  domain.ProviderGoogle,
			AccountID: id,
			SyncedAt:  syncedAt,
		}
	}

	d.enrich(ctx, client, accounts)

	if err := d.accounts.ReplaceForUser(ctx, cred.UserID, domain.ProviderGoogle, accounts); err != nil {
		return fmt.Errorf("storing discovered accounts: %w", err)
	}

	metrics.AccountsSyncedTotal.WithLabelValues(domain.ProviderGoogle.String()).Add(float64(len(accounts)))
	log.Info().Str("user_id", cred.UserID).Int("accounts", len(accounts)).Msg("Google Ads accounts synced")
	return nil
}

// authClient wraps the base transport with a refresh-token source so every
// API call carries a fresh access token.
func (d *Discoverer) authClient(ctx context.Context, refreshToken string) *http.Client {
	cfg := &oauth2.Config{
		ClientID:     d.cfg.Credentials.ClientID,
		ClientSecret: d.cfg.Credentials.ClientSecret,
		Endpoint:     providers.GoogleEndpoint,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.baseClient)
	return cfg.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

func (d *Discoverer) listAccessibleCustomers(ctx context.Context, client *http.Client) ([]string, error) {
	url := APIEndpoint + "/customers:listAccessibleCustomers"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("developer-token", d.cfg.DeveloperToken)

	resp, err := client.Do(req)
	if err != nil {
		// A dead refresh token surfaces here, when the transport tries to
		// mint an access token.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, providers.ErrTokenExpired
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, providers.ErrTokenExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.APIError{
			ProviderName: domain.ProviderGoogle.String(),
			Code:         resp.StatusCode,
			Message:      "listAccessibleCustomers failed",
		}
	}

	var body listAccessibleCustomersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding customer list: %w", err)
	}

	ids := make([]string, 0, len(body.ResourceNames))
	for _, name := range body.ResourceNames {
		// resource names arrive as "customers/1234567890"
		ids = append(ids, strings.TrimPrefix(name, "customers/"))
	}
	return ids, nil
}

// enrich fills in name, currency and status for the first accounts via
// bounded-concurrency detail queries. Failures degrade to id-only entries.
func (d *Discoverer) enrich(ctx context.Context, client *http.Client, accounts []domain.AdAccount) {
	limit := len(accounts)
	if limit > maxDetailFetches {
		limit = maxDetailFetches
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)

	for i := 0; i < limit; i++ {
		g.Go(func() error {
			detail, err := d.fetchCustomerDetail(gctx, client, accounts[i].AccountID)
			if err != nil {
				log.Debug().Err(err).Str("customer_id", accounts[i].AccountID).
					Msg("Customer detail fetch failed, keeping id-only entry")
				return nil
			}
			mu.Lock()
			accounts[i].Name = detail.Name
			accounts[i].Currency = detail.Currency
			accounts[i].Status = detail.Status
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

type customerDetail struct {
	Name     string
	Currency string
	Status   string
}

func (d *Discoverer) fetchCustomerDetail(ctx context.Context, client *http.Client, customerID string) (*customerDetail, error) {
	query := "SELECT customer.descriptive_name, customer.currency_code, customer.status FROM customer"
	payload := fmt.Sprintf(`{"query": %q}`, query)
	url := fmt.Sprintf("%s/customers/%s/googleAds:search", APIEndpoint, customerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("developer-token", d.cfg.DeveloperToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.APIError{
			ProviderName: domain.ProviderGoogle.String(),
			Code:         resp.StatusCode,
			Message:      "customer search failed",
		}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, fmt.Errorf("customer %s returned no rows", customerID)
	}

	c := body.Results[0].Customer
	return &customerDetail{Name: c.DescriptiveName, Currency: c.CurrencyCode, Status: c.Status}, nil
}
