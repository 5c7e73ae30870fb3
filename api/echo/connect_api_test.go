package echo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsight-labs/adsight-core/domain"
	serrors "github.com/adsight-labs/adsight-core/errors"
	"github.com/adsight-labs/adsight-core/internal/crypto"
	"github.com/adsight-labs/adsight-core/internal/providers"
	"github.com/adsight-labs/adsight-core/internal/ratelimit"
	"github.com/adsight-labs/adsight-core/services"
)

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type stubVerifier struct{ userID string }

func (s *stubVerifier) Verify(_ context.Context, bearer string) (string, error) {
	if bearer == "" {
		return "", errors.New("missing bearer")
	}
	return s.userID, nil
}

type mapStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.OAuthState
}

func (r *mapStateRepo) SaveState(_ context.Context, s *domain.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s.Token] = s
	return nil
}

func (r *mapStateRepo) GetState(_ context.Context, token string) (*domain.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[token]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *mapStateRepo) DeleteState(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, token)
	return nil
}

type mapCredRepo struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
}

func (r *mapCredRepo) UpsertCredential(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cred
	r.creds[cred.UserID+"/"+cred.Provider.String()] = &cp
	return nil
}

func (r *mapCredRepo) GetCredential(_ context.Context, userID string, provider domain.Provider) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[userID+"/"+provider.String()]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	cp := *cred
	return &cp, nil
}

func (r *mapCredRepo) DeleteCredential(_ context.Context, userID string, provider domain.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, userID+"/"+provider.String())
	return nil
}

type mapWindowRepo struct {
	mu      sync.Mutex
	windows map[string]*domain.RateLimitWindow
}

func (r *mapWindowRepo) GetWindow(_ context.Context, key string) (*domain.RateLimitWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key]
	if !ok {
		return nil, nil
	}
	cp := *w
	cp.Requests = append([]int64(nil), w.Requests...)
	return &cp, nil
}

func (r *mapWindowRepo) PutWindow(_ context.Context, w *domain.RateLimitWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	cp.Requests = append([]int64(nil), w.Requests...)
	r.windows[w.Key] = &cp
	return nil
}

type mapLeadRepo struct {
	mu    sync.Mutex
	leads []*domain.Lead
	err   error
}

func (r *mapLeadRepo) SaveLead(_ context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.leads = append(r.leads, lead)
	return nil
}

type stubAdapter struct {
	grant       *providers.Grant
	exchangeErr error
}

func (a *stubAdapter) Name() domain.Provider { return domain.ProviderGoogle }

func (a *stubAdapter) AuthCodeURL(state, redirectURI string) string {
	return fmt.Sprintf("https://accounts.example.com/o/oauth2/auth?state=%s&redirect_uri=%s&access_type=offline&prompt=consent", state, redirectURI)
}

func (a *stubAdapter) Exchange(_ context.Context, _, _ string) (*providers.Grant, error) {
	if a.exchangeErr != nil {
		return nil, a.exchangeErr
	}
	return a.grant, nil
}

func (a *stubAdapter) Revoke(_ context.Context, _ *domain.Credential) {}

type apiFixture struct {
	e      *echo.Echo
	states *mapStateRepo
	creds  *mapCredRepo
	leads  *mapLeadRepo
	google *stubAdapter
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cipher, err := crypto.NewTokenCipher(testEncryptionKey)
	require.NoError(t, err)

	states := &mapStateRepo{states: make(map[string]*domain.OAuthState)}
	creds := &mapCredRepo{creds: make(map[string]*domain.Credential)}
	leads := &mapLeadRepo{}
	google := &stubAdapter{grant: &providers.Grant{
		Provider:     domain.ProviderGoogle,
		Status:       domain.FlowAuthenticated,
		RefreshToken: "1//refresh",
	}}

	connect := services.NewConnectService(services.ConnectServiceParams{
		Verifier:    &stubVerifier{userID: "u1"},
		Limiter:     ratelimit.NewLimiter(&mapWindowRepo{windows: make(map[string]*domain.RateLimitWindow)}),
		States:      services.NewStateService(states),
		Credentials: creds,
		Adapters:    map[domain.Provider]providers.Adapter{domain.ProviderGoogle: google},
		Cipher:      cipher,
	})

	e := echo.New()
	NewConnectAPI(connect, leads, "https://app.example.com/").RegisterRoutes(e)

	return &apiFixture{e: e, states: states, creds: creds, leads: leads, google: google}
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) initiate(t *testing.T) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/oauth/google/initiate", nil)
	req.Header.Set("Authorization", "Bearer identity-token")
	req.Header.Set("Origin", "https://app.example.com")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success bool   `json:"success"`
		AuthURL string `json:"authUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	return body.AuthURL
}

// stateToken digs the issued state out of the store.
func (f *apiFixture) stateToken(t *testing.T) string {
	t.Helper()

	f.states.mu.Lock()
	defer f.states.mu.Unlock()
	require.Len(t, f.states.states, 1)
	for token := range f.states.states {
		return token
	}
	return ""
}

func TestInitiateEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	authURL := f.initiate(t)
	assert.Contains(t, authURL, "state="+f.stateToken(t))
	assert.Contains(t, authURL, "redirect_uri=https://app.example.com/api/oauth/google/callback")
}

func TestInitiateEndpoint_MissingBearer(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/oauth/google/initiate", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body serrors.FlowError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, serrors.Unauthorized, body.Code)
}

func TestInitiateEndpoint_UnknownProvider(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/oauth/tiktok/initiate", nil)
	req.Header.Set("Authorization", "Bearer identity-token")
	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitiateEndpoint_RateLimited(t *testing.T) {
	f := newAPIFixture(t)

	for i := 0; i < ratelimit.InitiateConfig.MaxRequests; i++ {
		f.initiate(t)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/oauth/google/initiate", nil)
	req.Header.Set("Authorization", "Bearer identity-token")
	req.Header.Set("Origin", "https://app.example.com")
	rec := f.do(req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCallbackRedirect_Success(t *testing.T) {
	f := newAPIFixture(t)
	f.initiate(t)
	token := f.stateToken(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/oauth/google/callback?code=4/0AVHEtk-authorization-code&state="+token, nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com?oauth=success&uid=u1", rec.Header().Get("Location"))

	cred, err := f.creds.GetCredential(context.Background(), "u1", domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "1//refresh", cred.RefreshToken)
}

func TestCallbackRedirect_FailureIsOpaque(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/oauth/google/callback?error=access_denied_with_secret_detail", nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Equal(t, "https://app.example.com?error=oauth_failed", location)
	assert.NotContains(t, location, "access_denied", "provider error text must not leak into the redirect")
}

func TestCallbackJSON_Success(t *testing.T) {
	f := newAPIFixture(t)
	f.initiate(t)
	token := f.stateToken(t)

	payload := fmt.Sprintf(`{"code":"4/0AVHEtk-authorization-code","state":%q}`, token)
	req := httptest.NewRequest(http.MethodPost, "/api/oauth/google/callback", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success bool   `json:"success"`
		UserID  string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "u1", body.UserID)
}

func TestCallbackJSON_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		prep       func(f *apiFixture)
		payload    string
		wantStatus int
		wantCode   string
	}{
		{
			"malformed state",
			func(*apiFixture) {},
			`{"code":"4/0AVHEtk-authorization-code","state":"short"}`,
			http.StatusBadRequest,
			serrors.InvalidState,
		},
		{
			"unknown state",
			func(*apiFixture) {},
			`{"code":"4/0AVHEtk-authorization-code","state":"abcdef0123456789abcdef"}`,
			http.StatusBadRequest,
			serrors.StateNotFound,
		},
		{
			"expired grant",
			func(f *apiFixture) { f.google.exchangeErr = providers.ErrTokenExpired },
			"", // filled in below with a real state
			http.StatusUnauthorized,
			serrors.TokenExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			tt.prep(f)

			payload := tt.payload
			if payload == "" {
				f.initiate(t)
				payload = fmt.Sprintf(`{"code":"4/0AVHEtk-authorization-code","state":%q}`, f.stateToken(t))
			}

			req := httptest.NewRequest(http.MethodPost, "/api/oauth/google/callback", strings.NewReader(payload))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := f.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var body serrors.FlowError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestRevokeEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.initiate(t)
	token := f.stateToken(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/oauth/google/callback?code=4/0AVHEtk-authorization-code&state="+token, nil)
	require.Equal(t, http.StatusFound, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/oauth/google/revoke", nil)
	req.Header.Set("Authorization", "Bearer identity-token")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := f.creds.GetCredential(context.Background(), "u1", domain.ProviderGoogle)
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestLeadEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/leads",
		strings.NewReader(`{"email":"Jane.Doe@Example.com","source":"landing"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.leads.leads, 1)
	assert.Equal(t, "jane.doe@example.com", f.leads.leads[0].Email)
	assert.Equal(t, "landing", f.leads.leads[0].Source)
}

func TestLeadEndpoint_InvalidEmail(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/leads",
		strings.NewReader(`{"email":"not-an-email"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.leads.leads)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
