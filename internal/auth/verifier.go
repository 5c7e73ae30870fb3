package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/cache"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired bearer token")
)

// Verifier turns an end-user bearer token into a user identifier. Tokens
// are HS256 JWTs issued by the identity provider; this service only
// consumes them. Verified identities are cached by token hash so repeated
// requests skip signature checks.
type Verifier struct {
	secret   []byte
	sessions cache.SessionCache
}

func NewVerifier(secret string, sessions cache.SessionCache) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("identity token secret is not configured")
	}
	return &Verifier{secret: []byte(secret), sessions: sessions}, nil
}

// Verify returns the user id carried in the token's subject claim.
func (v *Verifier) Verify(ctx context.Context, bearer string) (string, error) {
	if bearer == "" {
		return "", ErrMissingToken
	}

	tokenHash := cache.HashToken(bearer)
	if v.sessions != nil {
		if entry, ok := v.sessions.Get(ctx, tokenHash); ok {
			return entry.UserID, nil
		}
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(bearer, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	if v.sessions != nil {
		expiresAt := time.Now().Add(5 * time.Minute)
		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expiresAt) {
			expiresAt = claims.ExpiresAt.Time
		}
		entry := &cache.SessionEntry{UserID: claims.Subject, ExpiresAt: expiresAt}
		if err := v.sessions.Set(ctx, tokenHash, entry); err != nil {
			log.Warn().Err(err).Msg("Session cache write failed")
		}
	}

	return claims.Subject, nil
}
