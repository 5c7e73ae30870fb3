package echo

import (
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/domain"
	serrors "github.com/adsight-labs/adsight-core/errors"
	"github.com/adsight-labs/adsight-core/services"
)

// ConnectAPI exposes the OAuth connection flow over HTTP.
type ConnectAPI struct {
	connect    *services.ConnectService
	leads      domain.LeadRepository
	appBaseURL string
}

func NewConnectAPI(connect *services.ConnectService, leads domain.LeadRepository, appBaseURL string) *ConnectAPI {
	return &ConnectAPI{
		connect:    connect,
		leads:      leads,
		appBaseURL: strings.TrimSuffix(appBaseURL, "/"),
	}
}

// RegisterRoutes registers the connection flow routes.
func (ca *ConnectAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/oauth/:provider/initiate", ca.InitiateHandler)
	e.GET("/api/oauth/:provider/callback", ca.CallbackRedirectHandler)
	e.POST("/api/oauth/:provider/callback", ca.CallbackJSONHandler)
	e.POST("/api/oauth/:provider/revoke", ca.RevokeHandler)

	e.POST("/api/leads", ca.LeadHandler)
	e.GET("/healthz", ca.HealthHandler)
}

type initiateRequest struct {
	Origin string `json:"origin"`
}

// InitiateHandler starts a provider connection and returns the URL the
// frontend should send the user to.
func (ca *ConnectAPI) InitiateHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_provider"})
	}

	var body initiateRequest
	// An empty body is fine; the origin can come from headers.
	if err := c.Bind(&body); err != nil {
		body = initiateRequest{}
	}

	authURL, err := ca.connect.Initiate(c.Request().Context(), services.InitiateRequest{
		Bearer:       bearerToken(c),
		Provider:     provider,
		OriginHint:   body.Origin,
		OriginHeader: c.Request().Header.Get("Origin"),
		Referer:      c.Request().Header.Get("Referer"),
	})
	if err != nil {
		return flowErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "authUrl": authURL})
}

// CallbackRedirectHandler is the browser-facing callback: the provider
// redirects the user here, and we land them back on the application with a
// coarse success or failure flag. No token material and no provider error
// text ever appears in the redirect URL.
func (ca *ConnectAPI) CallbackRedirectHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.Redirect(http.StatusFound, ca.appBaseURL+"?error=oauth_failed")
	}

	userID, err := ca.connect.Callback(c.Request().Context(), services.CallbackRequest{
		Provider:      provider,
		Code:          c.QueryParam("code"),
		State:         c.QueryParam("state"),
		ProviderError: c.QueryParam("error"),
	})
	if err != nil {
		code, _ := serrors.CodeOf(err)
		log.Warn().Str("provider", provider.String()).Str("code", code).Msg("OAuth callback failed")
		return c.Redirect(http.StatusFound, ca.appBaseURL+"?error=oauth_failed")
	}

	return c.Redirect(http.StatusFound, ca.appBaseURL+"?oauth=success&uid="+url.QueryEscape(userID))
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
	Error string `json:"error"`
}

// CallbackJSONHandler is the JSON variant of the callback for frontends that
// complete the flow with a fetch instead of a full-page redirect.
func (ca *ConnectAPI) CallbackJSONHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_provider"})
	}

	var body callbackRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request"})
	}

	userID, err := ca.connect.Callback(c.Request().Context(), services.CallbackRequest{
		Provider:      provider,
		Code:          body.Code,
		State:         body.State,
		ProviderError: body.Error,
	})
	if err != nil {
		return flowErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "userId": userID})
}

// RevokeHandler disconnects a provider for the authenticated user.
func (ca *ConnectAPI) RevokeHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_provider"})
	}

	if err := ca.connect.Revoke(c.Request().Context(), bearerToken(c), provider); err != nil {
		return flowErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

type leadRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

// LeadHandler captures a marketing email address. Duplicate submissions
// succeed so the form never errors on a repeat visitor.
func (ca *ConnectAPI) LeadHandler(c echo.Context) error {
	var body leadRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request"})
	}

	addr, err := mail.ParseAddress(body.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_email"})
	}

	lead := &domain.Lead{
		Email:     strings.ToLower(addr.Address),
		Source:    body.Source,
		CreatedAt: time.Now().UTC(),
	}
	if err := ca.leads.SaveLead(c.Request().Context(), lead); err != nil {
		log.Error().Err(err).Msg("Failed to save lead")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (ca *ConnectAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// bearerToken extracts the bearer credential from the Authorization header,
// empty when absent or malformed.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// flowErrorResponse maps a flow error onto its HTTP status. Configuration
// and cryptographic failures surface as generic 500s with no internal
// detail.
func flowErrorResponse(c echo.Context, err error) error {
	code, ok := serrors.CodeOf(err)
	if !ok {
		log.Error().Err(err).Msg("Unclassified error in connection flow")
		return c.JSON(http.StatusInternalServerError, serrors.NewProviderError("internal error"))
	}

	switch code {
	case serrors.Unauthorized, serrors.TokenExpired:
		return c.JSON(http.StatusUnauthorized, err)
	case serrors.RateLimited:
		return c.JSON(http.StatusTooManyRequests, err)
	case serrors.InvalidState, serrors.StateNotFound, serrors.StateExpired,
		serrors.StateProviderMismatch, serrors.InvalidCode,
		serrors.NoRefreshToken, serrors.MissingOrigin:
		return c.JSON(http.StatusBadRequest, err)
	case serrors.ConfigError, serrors.DecryptionError:
		log.Error().Str("code", code).Msg("Internal failure in connection flow")
		return c.JSON(http.StatusInternalServerError, &serrors.FlowError{Code: code})
	default:
		return c.JSON(http.StatusBadGateway, err)
	}
}
