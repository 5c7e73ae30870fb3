package errors

import "fmt"

// FlowError is the structured error surfaced by the OAuth connection flow.
// Code is stable and machine-readable so the consuming UI can branch on it
// (notably TOKEN_EXPIRED triggers a distinct reconnect prompt).
type FlowError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes for the connection flow.
const (
	Unauthorized          = "UNAUTHORIZED"
	RateLimited           = "RATE_LIMITED"
	InvalidState          = "INVALID_STATE"
	StateNotFound         = "STATE_NOT_FOUND"
	StateExpired          = "STATE_EXPIRED"
	StateProviderMismatch = "STATE_PROVIDER_MISMATCH"
	InvalidCode           = "INVALID_CODE"
	NoRefreshToken        = "NO_REFRESH_TOKEN"
	ProviderError         = "PROVIDER_ERROR"
	TokenExpired          = "TOKEN_EXPIRED"
	ConfigError           = "CONFIG_ERROR"
	DecryptionError       = "DECRYPTION_ERROR"
	MissingOrigin         = "MISSING_ORIGIN"
)

func NewUnauthorized(description string) *FlowError {
	return &FlowError{Code: Unauthorized, Description: description}
}

func NewRateLimited(description string) *FlowError {
	return &FlowError{Code: RateLimited, Description: description}
}

func NewInvalidState(description string) *FlowError {
	return &FlowError{Code: InvalidState, Description: description}
}

func NewStateNotFound() *FlowError {
	return &FlowError{Code: StateNotFound, Description: "state token not found or already used"}
}

func NewStateExpired() *FlowError {
	return &FlowError{Code: StateExpired, Description: "state token has expired"}
}

func NewStateProviderMismatch() *FlowError {
	return &FlowError{Code: StateProviderMismatch, Description: "state token was issued for a different provider"}
}

func NewInvalidCode(description string) *FlowError {
	return &FlowError{Code: InvalidCode, Description: description}
}

func NewNoRefreshToken() *FlowError {
	return &FlowError{Code: NoRefreshToken, Description: "provider did not return a refresh token"}
}

func NewProviderError(description string) *FlowError {
	return &FlowError{Code: ProviderError, Description: description}
}

func NewTokenExpired() *FlowError {
	return &FlowError{Code: TokenExpired, Description: "provider token is invalid or expired, reconnect required"}
}

func NewConfigError(description string) *FlowError {
	return &FlowError{Code: ConfigError, Description: description}
}

func NewDecryptionError() *FlowError {
	return &FlowError{Code: DecryptionError, Description: "stored token could not be decrypted"}
}

func NewMissingOrigin() *FlowError {
	return &FlowError{Code: MissingOrigin, Description: "no origin could be resolved for the callback redirect"}
}

// CodeOf returns the FlowError code of err, with ok reporting whether err
// actually carries one.
func CodeOf(err error) (string, bool) {
	fe, ok := err.(*FlowError)
	if !ok {
		return "", false
	}
	return fe.Code, true
}
