package services

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/domain"
	serrors "github.com/adsight-labs/adsight-core/errors"
)

// StateService issues and consumes the CSRF state tokens binding an
// authorization request to its callback.
type StateService struct {
	repo domain.OAuthStateRepository
	now  func() time.Time
}

func NewStateService(repo domain.OAuthStateRepository) *StateService {
	return &StateService{repo: repo, now: time.Now}
}

// Create persists a new single-use state with the fixed 10-minute TTL and
// returns its token.
func (s *StateService) Create(ctx context.Context, userID string, provider domain.Provider, redirectURI string) (string, error) {
	token, err := generateStateToken()
	if err != nil {
		return "", fmt.Errorf("generating state token: %w", err)
	}

	now := s.now().UTC()
	state := &domain.OAuthState{
		Token:       token,
		UserID:      userID,
		Provider:    provider,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.StateTTL),
	}
	if err := s.repo.SaveState(ctx, state); err != nil {
		return "", err
	}

	log.Debug().Str("user_id", userID).Str("provider", provider.String()).Msg("OAuth state created")
	return token, nil
}

// Consume validates the token format, then looks it up and checks expiry
// and provider binding. The record is returned intact: the orchestrator
// deletes it once the exchange has something to show for it, which is what
// enforces single use.
func (s *StateService) Consume(ctx context.Context, token string, expected domain.Provider) (*domain.OAuthState, error) {
	if err := ValidateStateToken(token); err != nil {
		return nil, err
	}

	state, err := s.repo.GetState(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			return nil, serrors.NewStateNotFound()
		}
		return nil, err
	}

	if state.Expired(s.now()) {
		return nil, serrors.NewStateExpired()
	}
	if state.Provider != expected {
		return nil, serrors.NewStateProviderMismatch()
	}

	return state, nil
}

// Delete removes a consumed state. Failures are logged but not fatal: a
// leftover state dies by TTL anyway.
func (s *StateService) Delete(ctx context.Context, token string) {
	if err := s.repo.DeleteState(ctx, token); err != nil {
		log.Warn().Err(err).Msg("Failed to delete consumed oauth state")
	}
}

// generateStateToken concatenates several independently random base-36
// segments. The result is lowercase alphanumeric and comfortably past the
// 20-character guessing-resistance floor.
func generateStateToken() (string, error) {
	segments := make([]string, 3)
	for i := range segments {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		segments[i] = strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 36)
	}
	return strings.Join(segments, ""), nil
}
