package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/adsight-labs/adsight-core/cache"
)

// SessionCache implements cache.SessionCache on Redis so verified bearer
// identities are shared across instances.
type SessionCache struct {
	client *redis.Client
	prefix string
}

func NewSessionCache(client *redis.Client, prefix string) *SessionCache {
	return &SessionCache{client: client, prefix: prefix}
}

func (s *SessionCache) redisKey(tokenHash string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, tokenHash)
}

func (s *SessionCache) Get(ctx context.Context, tokenHash string) (*cache.SessionEntry, bool) {
	raw, err := s.client.Get(ctx, s.redisKey(tokenHash)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Redis session cache read failed")
		}
		return nil, false
	}

	var entry cache.SessionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Warn().Err(err).Msg("Corrupt session cache entry, dropping")
		_ = s.Delete(ctx, tokenHash)
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return &entry, true
}

func (s *SessionCache) Set(ctx context.Context, tokenHash string, entry *cache.SessionEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal session entry: %w", err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.redisKey(tokenHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session entry in Redis: %w", err)
	}
	return nil
}

func (s *SessionCache) Delete(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.redisKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete session entry from Redis: %w", err)
	}
	return nil
}

var _ cache.SessionCache = (*SessionCache)(nil)
