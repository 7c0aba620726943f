package cache

import (
	"context"
	"time"

	"github.com/freenoai/authd/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

// unlockScript releases a lock only if the stored value still matches the
// holder's nonce. Returns 1 on release, 0 when the lock expired or was
// taken over by another holder in the meantime. Without the nonce check a
// delayed release after TTL expiry would delete the next holder's lock.
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Unlocker releases a held lock. Calling it after the lock's TTL has
// elapsed is safe: the release is a no-op once ownership is lost.
type Unlocker func(ctx context.Context)

// AcquireLock attempts to create the lock atomically (SET NX EX). It
// returns true iff this call created the lock, along with an Unlocker bound
// to this holder. The lock auto-expires after ttl to prevent deadlock if
// the holder crashes; a holder must finish its critical section within ttl.
//
// On backing-store failure acquisition fails closed (returns false), so a
// caller must never rely on the lock as its sole correctness mechanism.
func (c *Cache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (Unlocker, bool) {
	lockKey := "lock:" + c.key(key)

	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		c.logger.Warn("lock acquire: nonce generation failed", "key", key, "err", err)
		return nil, false
	}

	ok, err := c.client.SetNX(ctx, lockKey, nonce, ttl).Result()
	if err != nil {
		c.logger.Warn("lock acquire failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	unlock := func(ctx context.Context) {
		released, err := unlockScript.Run(ctx, c.client, []string{lockKey}, nonce).Int()
		if err != nil {
			c.logger.Warn("lock release failed", "key", key, "err", err)
			return
		}
		if released == 0 {
			c.logger.Warn("lock already expired or taken over before release", "key", key)
		}
	}
	return unlock, true
}
