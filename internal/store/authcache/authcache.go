// Package authcache provides a Redis cache-aside layer in front of
// Repository.LookupAuthorization, grounded on the teacher gateway's
// internal/storage/redis_storage.go (go-redis/v8 client + prefix
// convention). The teacher used Redis to map stations to gateway pods for
// cross-pod routing; that use conflicts with this system's single-process
// Non-goal, so the dependency is repurposed here as a read-through cache
// for the read-mostly AuthorizationRecord table instead of being dropped.
package authcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ocpp-central/central-system/internal/domain"
)

const keyPrefix = "auth:"

// Cache wraps a redis.Client with the id_tag -> AuthorizationRecord cache-aside pattern.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a Cache against addr with the given entry TTL.
func New(addr, password string, db int, ttl time.Duration) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

// Ping verifies connectivity at startup.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached record for idTag, or (nil, false) on a cache miss
// (redis.Nil is treated as a miss, not an error, matching the teacher's
// GetConnection contract).
func (c *Cache) Get(ctx context.Context, idTag string) (*domain.AuthorizationRecord, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+idTag).Bytes()
	if err != nil {
		return nil, false
	}
	var rec domain.AuthorizationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Set populates the cache entry for idTag.
func (c *Cache) Set(ctx context.Context, rec *domain.AuthorizationRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+rec.IDTag, raw, c.ttl).Err()
}

// Invalidate removes idTag from the cache; used by admin paths that mutate
// the authorization table directly (denylisting an id_tag, for example)
// so the change is visible without waiting out the TTL.
func (c *Cache) Invalidate(ctx context.Context, idTag string) error {
	return c.client.Del(ctx, keyPrefix+idTag).Err()
}

// Close releases the underlying client.
func (c *Cache) Close() error { return c.client.Close() }
