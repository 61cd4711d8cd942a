package utils

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/villageone/api/config"
)

// Cache key prefixes. Every post mutation invalidates both.
const (
	CachePostListPrefix   = "cache:posts:list:"
	CachePostDetailPrefix = "cache:post:detail:"
)

// CacheTTL is the configured lifetime of cached responses.
func CacheTTL() time.Duration {
	secs := config.Get().CacheTTLSeconds
	if secs <= 0 {
		return time.Hour
	}
	return time.Duration(secs) * time.Second
}

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(ctx context.Context, key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Logger.Debug("cache miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return b, true
}

// CacheSetJSON marshals v and stores it under key.
func CacheSetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = CacheTTL()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(ctx context.Context, prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Logger.Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}

// InvalidatePost drops the cached detail of one post and every cached list page.
func InvalidatePost(ctx context.Context, postID string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	delCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_ = rc.Del(delCtx, CachePostDetailPrefix+postID).Err()
	cancel()
	InvalidateByPrefix(ctx, CachePostListPrefix)
}
