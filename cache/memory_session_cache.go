package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemorySessionCache implements SessionCache with ttlcache.
type MemorySessionCache struct {
	cache *ttlcache.Cache[string, *SessionEntry]
}

// NewMemorySessionCache creates an in-memory session cache with automatic
// cleanup.
func NewMemorySessionCache(defaultTTL time.Duration) *MemorySessionCache {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *SessionEntry](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *SessionEntry](),
	)
	go c.Start()

	return &MemorySessionCache{cache: c}
}

func (m *MemorySessionCache) Get(_ context.Context, tokenHash string) (*SessionEntry, bool) {
	item := m.cache.Get(tokenHash)
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	if time.Now().After(entry.ExpiresAt) {
		m.cache.Delete(tokenHash)
		return nil, false
	}
	return entry, true
}

func (m *MemorySessionCache) Set(_ context.Context, tokenHash string, entry *SessionEntry) error {
	m.cache.Set(tokenHash, entry, time.Until(entry.ExpiresAt))
	return nil
}

func (m *MemorySessionCache) Delete(_ context.Context, tokenHash string) error {
	m.cache.Delete(tokenHash)
	return nil
}

// Stop terminates the background cleanup goroutine.
func (m *MemorySessionCache) Stop() {
	m.cache.Stop()
}

var _ SessionCache = (*MemorySessionCache)(nil)
