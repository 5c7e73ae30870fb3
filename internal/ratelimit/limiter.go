package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/domain"
)

// Config bounds one action's request rate.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultConfig applies when a caller does not override limits.
var DefaultConfig = Config{MaxRequests: 10, Window: time.Minute}

// InitiateConfig is the tighter limit on OAuth initiation endpoints.
var InitiateConfig = Config{MaxRequests: 5, Window: time.Minute}

// Limiter is a sliding-window rate limiter over a persisted request log,
// keyed by (user, action).
//
// The check is a plain read-modify-write: two concurrent requests can both
// read a stale count and both be admitted. That is a known race, accepted
// because this is an abuse deterrent rather than a hard quota.
type Limiter struct {
	repo domain.RateLimitRepository
	now  func() time.Time
}

func NewLimiter(repo domain.RateLimitRepository) *Limiter {
	return &Limiter{repo: repo, now: time.Now}
}

// Allow reports whether the request is admitted. Rejected attempts are not
// recorded, so they do not count against future windows. Store failures
// admit the request rather than lock out legitimate users.
func (l *Limiter) Allow(ctx context.Context, userID, action string, cfg Config) bool {
	if cfg.MaxRequests <= 0 {
		cfg = DefaultConfig
	}

	key := domain.RateLimitKey(userID, action)
	window, err := l.repo.GetWindow(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limit read failed, admitting request")
		return true
	}
	if window == nil {
		window = &domain.RateLimitWindow{Key: key}
	}

	now := l.now()
	windowStart := now.Add(-cfg.Window).UnixMilli()

	recent := window.Requests[:0]
	for _, ts := range window.Requests {
		if ts > windowStart {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= cfg.MaxRequests {
		log.Warn().
			Str("user_id", userID).
			Str("action", action).
			Int("count", len(recent)).
			Int("max", cfg.MaxRequests).
			Msg("Rate limit exceeded")
		return false
	}

	window.Requests = append(recent, now.UnixMilli())
	window.LastReset = now
	if err := l.repo.PutWindow(ctx, window); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limit write failed, admitting request")
	}
	return true
}
