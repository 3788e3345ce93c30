package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces sliding windows with redis sorted sets, so limits
// hold across gateway instances.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLimiter{client: client, log: log}
}

// Check trims entries outside the window, records this hit and counts what
// is left, all in one transaction.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}
	if limit <= 0 {
		return &Result{ResetAt: time.Now().Add(window)}, nil
	}

	now := time.Now()
	zkey := "ratelimit:" + key
	oldest := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var count *redis.IntCmd
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "-inf", "("+oldest)
	pipe.ZAdd(ctx, zkey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	count = pipe.ZCard(ctx, zkey)
	pipe.Expire(ctx, zkey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	used := int(count.Val())
	res := &Result{
		Allowed:   used <= limit,
		Remaining: max(limit-used, 0),
		ResetAt:   now,
	}
	if !res.Allowed {
		return res, ErrLimitExceeded
	}
	return res, nil
}
