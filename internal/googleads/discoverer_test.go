package googleads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/adsight-labs/adsight-core/domain"
	"github.com/adsight-labs/adsight-core/internal/providers"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts []domain.AdAccount
	replaces int
}

func (r *memAccountRepo) ReplaceForUser(_ context.Context, _ string, _ domain.Provider, accounts []domain.AdAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	r.accounts = append([]domain.AdAccount(nil), accounts...)
	return nil
}

func (r *memAccountRepo) ListForUser(_ context.Context, _ string, _ domain.Provider) ([]domain.AdAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AdAccount(nil), r.accounts...), nil
}

// adsAPIServer fakes the token endpoint, the customer listing, and the
// per-customer search in one httptest server.
type adsAPIServer struct {
	customerIDs []string
	listStatus  int
	tokenStatus int
	tokenBody   string
	mu          sync.Mutex
	searchedIDs []string
}

func (s *adsAPIServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			if s.tokenStatus != 0 && s.tokenStatus != http.StatusOK {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(s.tokenStatus)
				fmt.Fprint(w, s.tokenBody)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"fresh-access-token","token_type":"Bearer","expires_in":3600}`)

		case strings.HasSuffix(r.URL.Path, "customers:listAccessibleCustomers"):
			if s.listStatus != 0 && s.listStatus != http.StatusOK {
				w.WriteHeader(s.listStatus)
				return
			}
			names := make([]string, len(s.customerIDs))
			for i, id := range s.customerIDs {
				names[i] = fmt.Sprintf("%q", "customers/"+id)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"resourceNames":[%s]}`, strings.Join(names, ","))

		case strings.HasSuffix(r.URL.Path, "googleAds:search"):
			parts := strings.Split(r.URL.Path, "/")
			customerID := parts[len(parts)-2]
			s.mu.Lock()
			s.searchedIDs = append(s.searchedIDs, customerID)
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"results":[{"customer":{"descriptiveName":"Account %s","currencyCode":"USD","status":"ENABLED"}}]}`, customerID)

		default:
			http.NotFound(w, r)
		}
	}
}

func testDiscoverer(t *testing.T, api *adsAPIServer) (*Discoverer, *memAccountRepo) {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	origAPI := APIEndpoint
	origEndpoint := providers.GoogleEndpoint
	APIEndpoint = srv.URL
	providers.GoogleEndpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}
	t.Cleanup(func() {
		APIEndpoint = origAPI
		providers.GoogleEndpoint = origEndpoint
	})

	repo := &memAccountRepo{}
	d := NewDiscoverer(Config{
		Credentials:    providers.Credentials{ClientID: "client-id", ClientSecret: "client-secret"},
		DeveloperToken: "dev-token",
	}, repo)
	return d, repo
}

func testCredential() *domain.Credential {
	return &domain.Credential{
		UserID:       "user-1",
		Provider:     domain.ProviderGoogle,
		RefreshToken: "1//refresh-token",
	}
}

func TestSync_StoresDiscoveredAccounts(t *testing.T) {
	api := &adsAPIServer{customerIDs: []string{"1111111111", "2222222222"}}
	d, repo := testDiscoverer(t, api)

	require.NoError(t, d.Sync(context.Background(), testCredential()))

	accounts, err := repo.ListForUser(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byID := map[string]domain.AdAccount{}
	for _, a := range accounts {
		byID[a.AccountID] = a
		assert.Equal(t, "user-1", a.UserID)
		assert.Equal(t, domain.ProviderGoogle, a.Provider)
		assert.False(t, a.SyncedAt.IsZero())
	}
	assert.Equal(t, "Account 1111111111", byID["1111111111"].Name)
	assert.Equal(t, "USD", byID["1111111111"].Currency)
	assert.Equal(t, "ENABLED", byID["1111111111"].Status)
}

func TestSync_CapsDetailFetches(t *testing.T) {
	ids := make([]string, 30)
	for i := range ids {
		ids[i] = fmt.Sprintf("10000000%02d", i)
	}
	api := &adsAPIServer{customerIDs: ids}
	d, repo := testDiscoverer(t, api)

	require.NoError(t, d.Sync(context.Background(), testCredential()))

	accounts, err := repo.ListForUser(context.Background(), "user-1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Len(t, accounts, 30, "every discovered account is stored")

	api.mu.Lock()
	searched := len(api.searchedIDs)
	api.mu.Unlock()
	assert.Equal(t, maxDetailFetches, searched, "detail queries stop at the cap")

	enriched := 0
	for _, a := range accounts {
		if a.Name != "" {
			enriched++
		}
	}
	assert.Equal(t, maxDetailFetches, enriched)
}

func TestSync_DeadRefreshToken(t *testing.T) {
	api := &adsAPIServer{
		tokenStatus: http.StatusBadRequest,
		tokenBody:   `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`,
	}
	d, repo := testDiscoverer(t, api)

	err := d.Sync(context.Background(), testCredential())
	assert.ErrorIs(t, err, providers.ErrTokenExpired)
	assert.Equal(t, 0, repo.replaces, "nothing is written when listing fails")
}

func TestSync_UnauthorizedResponse(t *testing.T) {
	api := &adsAPIServer{listStatus: http.StatusUnauthorized}
	d, _ := testDiscoverer(t, api)

	err := d.Sync(context.Background(), testCredential())
	assert.ErrorIs(t, err, providers.ErrTokenExpired)
}

func TestSync_MissingRefreshToken(t *testing.T) {
	api := &adsAPIServer{}
	d, _ := testDiscoverer(t, api)

	err := d.Sync(context.Background(), &domain.Credential{UserID: "user-1", Provider: domain.ProviderGoogle})
	assert.Error(t, err)
}
