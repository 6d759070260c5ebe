package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "registry:v1:"

// Cache is a Redis-backed read-through cache for resolved registrations.
// Only hits are cached: a missing registration must stay re-checkable, since
// the remote store is eventually consistent and the user may enroll at any
// time. All cache failures degrade to a chain lookup. A nil *Cache is a
// valid no-op cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a resolution cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns a cached registration for the identity hash, if present.
func (c *Cache) Get(ctx context.Context, identityHash string) (Registration, bool) {
	if c == nil {
		return Registration{}, false
	}
	addr, err := c.client.Get(ctx, cachePrefix+identityHash).Result()
	if err != nil || addr == "" {
		return Registration{}, false
	}
	return Registration{IdentityHash: identityHash, WalletAddress: addr}, true
}

// Put stores a resolved registration. Best effort.
func (c *Cache) Put(ctx context.Context, reg Registration) {
	if c == nil {
		return
	}
	c.client.Set(ctx, cachePrefix+reg.IdentityHash, reg.WalletAddress, c.ttl)
}
