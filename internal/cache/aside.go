package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetOrLoad is an explicit cache-aside helper: return the cached value for
// key if present, otherwise call loader, store its result under key with the
// given TTL and return it. Cache failures degrade to the loader; they are
// logged but never surfaced, a cold or broken cache must not break reads.
func GetOrLoad[T any](ctx context.Context, rdb *redis.Client, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if rdb != nil {
		raw, err := rdb.Get(ctx, key).Result()
		if err == nil {
			var cached T
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return cached, nil
			}
			// Unreadable cache entry; fall through to the loader and overwrite it.
			log.Printf("WARN: discarding unreadable cache entry for key %s", key)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: cache read failed for key %s: %v", key, err)
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return zero, err
	}

	if rdb != nil {
		raw, jsonErr := json.Marshal(value)
		if jsonErr != nil {
			return value, nil
		}
		if setErr := rdb.Set(ctx, key, raw, ttl).Err(); setErr != nil {
			log.Printf("WARN: cache write failed for key %s: %v", key, setErr)
		}
	}

	return value, nil
}

// Invalidate removes a cached entry. Best-effort: failures are logged only.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("WARN: cache invalidation failed for keys %v: %v", keys, err)
	}
}

// Key builds a namespaced cache key.
func Key(parts ...interface{}) string {
	key := "cache"
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}
