package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Record is the stored outcome of one processed delivery.
type Record struct {
	Status   string `json:"status"`
	Response []byte `json:"response,omitempty"`
}

// Store persists delivery records and processing locks.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

// RedisStore writes records as JSON values with a TTL, so stale entries
// expire without a cleanup pass.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "dedupe:"+key+":lock", 1, lockTTL).Result()
	if err != nil {
		s.fail("acquire dedupe lock", key, err)
		return false, err
	}
	return ok, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, "dedupe:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.fail("fetch dedupe record", key, err)
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.fail("decode dedupe record", key, err)
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, "dedupe:"+key, raw, ttl).Err(); err != nil {
		s.fail("store dedupe record", key, err)
		return err
	}
	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, "dedupe:"+key+":lock").Err(); err != nil {
		s.fail("release dedupe lock", key, err)
		return err
	}
	return nil
}

func (s *RedisStore) fail(action, key string, err error) {
	s.log.Error("failed to "+action, slog.String("key", key), slog.Any("error", err))
}
