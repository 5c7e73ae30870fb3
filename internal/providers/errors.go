package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken means Google's token payload omitted refresh_token.
	// Typical cause: a returning user authorized without a forced consent
	// prompt, so Google considered the grant already satisfied.
	ErrNoRefreshToken = errors.New("provider did not return a refresh token")

	// ErrTokenExpired is the classified form of a provider's explicit
	// invalid/expired-token error. Callers surface it as TOKEN_EXPIRED so
	// the UI can prompt a reconnect instead of a generic retry.
	ErrTokenExpired = errors.New("provider token is invalid or expired")

	ErrMisconfigured = errors.New("provider client credentials are not configured")
)

// APIError is a provider error payload decoded at the adapter boundary.
type APIError struct {
	ProviderName string
	Code         int
	Type         string
	Message      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d (%s): %s", e.ProviderName, e.Code, e.Type, e.Message)
}

// metaTokenErrorCode is Graph API's well-known code for an invalid or
// expired access token.
const metaTokenErrorCode = 190

// Classify maps a raw adapter error onto the sentinel taxonomy, folding
// provider-specific token-expiry signals into ErrTokenExpired.
func Classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == metaTokenErrorCode {
		return fmt.Errorf("%w: %s", ErrTokenExpired, apiErr.Message)
	}
	return err
}
