package services

import (
	"regexp"

	serrors "github.com/adsight-labs/adsight-core/errors"
)

// stateTokenPattern constrains state tokens to a lowercase alphanumeric
// alphabet of bounded length. Malformed tokens are rejected before any
// store lookup, closing a cheap enumeration vector.
var stateTokenPattern = regexp.MustCompile(`^[a-z0-9]{8,128}$`)

const (
	minCodeLength = 10
	maxCodeLength = 4096
)

// ValidateStateToken checks the token format only; existence and expiry are
// the store's concern.
func ValidateStateToken(token string) error {
	if !stateTokenPattern.MatchString(token) {
		return serrors.NewInvalidState("state token has an invalid format")
	}
	return nil
}

// ValidateAuthCode bounds the authorization code before any I/O. Provider
// codes are opaque but never tiny and never unbounded.
func ValidateAuthCode(code string) error {
	if len(code) <= minCodeLength || len(code) > maxCodeLength {
		return serrors.NewInvalidCode("authorization code has an invalid length")
	}
	return nil
}
