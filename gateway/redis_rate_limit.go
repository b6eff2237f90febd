// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"axonflow/gateway/shared/logger"
)

// RedisLimiter enforces per-account request limits with a sliding window
// over a Redis sorted set, shared across gateway instances. Redis failures
// fail open: an unreachable limiter store must not take down admission.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	log    *logger.Logger
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLimiter{
		client: client,
		window: rateLimitWindow,
		log:    logger.New("rate-limiter"),
	}, nil
}

// Allow records the request in the account's sliding window and denies once
// the window holds more than limit entries. The current request is added
// before counting, so the first denial lands exactly on request limit+1.
func (l *RedisLimiter) Allow(ctx context.Context, accountID string, limit int) error {
	key := fmt.Sprintf("ratelimit:%s", accountID)
	now := time.Now()
	windowStart := now.Add(-l.window)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, 2*l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn(accountID, "", "rate limit check failed, allowing request", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	if count := countCmd.Val(); count > int64(limit) {
		return &RateLimitError{
			Count:      count,
			Limit:      limit,
			RetryAfter: l.window,
		}
	}
	return nil
}

// Close releases the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
