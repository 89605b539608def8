package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisLimiter implements the same sliding-window contract as MemoryLimiter
// but over a shared Redis sorted set, for horizontally-scaled deployments
// that need one limiter state across instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter wraps an existing client. keyPrefix namespaces the sorted
// sets this limiter creates (e.g. "allocator:ratelimit:").
func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: keyPrefix}
}

// Check implements Limiter using ZADD/ZREMRANGEBYSCORE/ZCARD: each request
// is a sorted-set member scored by its own timestamp, expired members are
// trimmed before counting, and the key TTLs out once the window has no
// entries.
func (l *RedisLimiter) Check(key string, limit int, window time.Duration) Result {
	ctx := context.Background()
	redisKey := l.prefix + key

	now := time.Now()
	cutoff := now.Add(-window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	card := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("rate limiter redis pipeline failed, failing open")
		return Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: now.Add(window)}
	}

	count, _ := card.Result()
	resetAt := now.Add(window)
	if members, err := oldest.Result(); err == nil && len(members) > 0 {
		oldestTime := time.Unix(0, int64(members[0].Score))
		resetAt = oldestTime.Add(window)
	}

	if int(count) >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	member := redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()}
	addPipe := l.client.TxPipeline()
	addPipe.ZAdd(ctx, redisKey, member)
	addPipe.Expire(ctx, redisKey, window*2)
	if _, err := addPipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("rate limiter redis write failed, failing open")
		return Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}
	}

	return Result{Allowed: true, Limit: limit, Remaining: limit - int(count) - 1, ResetAt: resetAt}
}
