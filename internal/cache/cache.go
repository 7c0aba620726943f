// Package cache provides the shared Redis-backed key-value store with TTLs,
// tag-based invalidation, and TTL-bounded mutual-exclusion locks.
//
// Every operation degrades gracefully when Redis is unreachable: reads
// behave as misses, writes become no-ops, and lock acquisition fails closed.
// Callers must treat the cache as advisory, never as the sole source of
// truth.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with a key prefix and default TTL. Construct
// one per process and pass it by reference; it is safe for concurrent use.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// Options tune a single Set call.
type Options struct {
	// TTL overrides the cache default for this entry.
	TTL time.Duration

	// Tags register the entry in each tag's member set so it can be
	// invalidated transitively via DeleteByTag without knowing its key.
	Tags []string
}

func New(client redis.UniversalClient, prefix string, defaultTTL time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    defaultTTL,
		logger: logger,
	}
}

func (c *Cache) key(k string) string    { return c.prefix + ":" + k }
func (c *Cache) tagKey(t string) string { return c.prefix + ":tag:" + t }

// Get loads and deserializes the entry into dest, which must be a pointer.
// It returns false on a miss, on malformed content, and on backing-store
// failure; none of these are errors for the caller.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", "key", key, "err", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry malformed, treating as miss", "key", key, "err", err)
		return false
	}
	return true
}

// Set serializes value and stores it under key with the given options.
// When tags are present, the computed cache key is added to each tag's
// member set and the tag set's TTL is refreshed to match the entry's.
func (c *Cache) Set(ctx context.Context, key string, value any, opts Options) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache set: marshal failed", "key", key, "err", err)
		return
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.ttl
	}

	cacheKey := c.key(key)
	if err := c.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "err", err)
		return
	}

	for _, tag := range opts.Tags {
		tk := c.tagKey(tag)
		if err := c.client.SAdd(ctx, tk, cacheKey).Err(); err != nil {
			c.logger.Warn("cache set: tag add failed", "tag", tag, "err", err)
			continue
		}
		// Keep the tag set alive at least as long as its newest member.
		if err := c.client.Expire(ctx, tk, ttl).Err(); err != nil {
			c.logger.Warn("cache set: tag expire failed", "tag", tag, "err", err)
		}
	}
}

// Delete removes a single entry. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn("cache delete failed", "key", key, "err", err)
	}
}

// DeleteByTag removes every entry registered under tag plus the tag set
// itself. The multi-delete is not transactional; entries are idempotently
// removable so a concurrent reader at worst sees a partially-purged tag.
func (c *Cache) DeleteByTag(ctx context.Context, tag string) {
	tk := c.tagKey(tag)

	members, err := c.client.SMembers(ctx, tk).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache delete-by-tag: members read failed", "tag", tag, "err", err)
		}
		return
	}

	keys := append(members, tk)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache delete-by-tag failed", "tag", tag, "err", err)
	}
}

// Members returns the cache keys currently registered under tag, stripped
// of the cache prefix. Used by best-effort bulk operations (token
// revocation) that need to visit each member before purging the tag.
func (c *Cache) Members(ctx context.Context, tag string) []string {
	members, err := c.client.SMembers(ctx, c.tagKey(tag)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache members read failed", "tag", tag, "err", err)
		}
		return nil
	}

	out := make([]string, 0, len(members))
	for _, m := range members {
		if len(m) > len(c.prefix)+1 {
			out = append(out, m[len(c.prefix)+1:])
		}
	}
	return out
}

// Clear bulk-deletes entries by key-prefix pattern ("" clears the whole
// namespace). Administrative flushing only; KEYS is O(n) over the keyspace
// and must stay off hot paths.
func (c *Cache) Clear(ctx context.Context, pattern string) {
	search := c.prefix + ":*"
	if pattern != "" {
		search = c.key(pattern)
	}

	keys, err := c.client.Keys(ctx, search).Result()
	if err != nil {
		c.logger.Warn("cache clear: keys scan failed", "pattern", pattern, "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache clear failed", "pattern", pattern, "err", err)
	}
}
