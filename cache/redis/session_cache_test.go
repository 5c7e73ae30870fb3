package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsight-labs/adsight-core/cache"
)

func setupSessionCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionCache(client, "adsight"), mr
}

func TestSessionCache_SetGetDelete(t *testing.T) {
	sc, _ := setupSessionCache(t)
	ctx := context.Background()

	hash := cache.HashToken("bearer-token-value")
	entry := &cache.SessionEntry{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, sc.Set(ctx, hash, entry))

	got, ok := sc.Get(ctx, hash)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, sc.Delete(ctx, hash))
	_, ok = sc.Get(ctx, hash)
	assert.False(t, ok)
}

func TestSessionCache_MissingKey(t *testing.T) {
	sc, _ := setupSessionCache(t)

	_, ok := sc.Get(context.Background(), cache.HashToken("never-stored"))
	assert.False(t, ok)
}

func TestSessionCache_Expiry(t *testing.T) {
	sc, mr := setupSessionCache(t)
	ctx := context.Background()

	hash := cache.HashToken("short-lived")
	entry := &cache.SessionEntry{UserID: "u1", ExpiresAt: time.Now().Add(2 * time.Second)}
	require.NoError(t, sc.Set(ctx, hash, entry))

	mr.FastForward(5 * time.Second)

	_, ok := sc.Get(ctx, hash)
	assert.False(t, ok, "entry must be gone after the TTL elapses")
}

func TestSessionCache_AlreadyExpiredEntryNotStored(t *testing.T) {
	sc, _ := setupSessionCache(t)
	ctx := context.Background()

	hash := cache.HashToken("expired")
	entry := &cache.SessionEntry{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, sc.Set(ctx, hash, entry))

	_, ok := sc.Get(ctx, hash)
	assert.False(t, ok)
}
