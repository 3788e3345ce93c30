package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatchCount = 100

// RedisStore persists scoped key/value pairs in Redis.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore initializes a Redis-backed Store implementation.
func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

// Get returns the stored value or ErrNotFound when absent.
func (s *RedisStore) Get(ctx context.Context, scope Scope, ownerID int64, key string) (string, error) {
	value, err := s.client.Get(ctx, storageKey(scope, ownerID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}

		s.log.Error("failed to get value", "scope", string(scope), "owner_id", ownerID, "key", key, "error", err)
		return "", err
	}

	return value, nil
}

// Set saves the value without expiry; variables live until deleted.
func (s *RedisStore) Set(ctx context.Context, scope Scope, ownerID int64, key, value string) error {
	if err := s.client.Set(ctx, storageKey(scope, ownerID, key), value, 0).Err(); err != nil {
		s.log.Error("failed to set value", "scope", string(scope), "owner_id", ownerID, "key", key, "error", err)
		return err
	}

	return nil
}

// Delete removes one key from the scope.
func (s *RedisStore) Delete(ctx context.Context, scope Scope, ownerID int64, key string) error {
	if err := s.client.Del(ctx, storageKey(scope, ownerID, key)).Err(); err != nil {
		s.log.Error("failed to delete value", "scope", string(scope), "owner_id", ownerID, "key", key, "error", err)
		return err
	}

	return nil
}

// DeleteAll removes every key in the scope by scanning the scope prefix.
func (s *RedisStore) DeleteAll(ctx context.Context, scope Scope, ownerID int64) error {
	pattern := scopePrefix(scope, ownerID) + "*"

	var cursor uint64
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, scanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan scope keys", "scope", string(scope), "owner_id", ownerID, "error", err)
			return err
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.log.Error("failed to delete scope keys", "scope", string(scope), "owner_id", ownerID, "error", err)
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

// Keys lists the key names present in the scope.
func (s *RedisStore) Keys(ctx context.Context, scope Scope, ownerID int64) ([]string, error) {
	prefix := scopePrefix(scope, ownerID)

	var (
		cursor uint64
		names  []string
	)
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan scope keys", "scope", string(scope), "owner_id", ownerID, "error", err)
			return nil, err
		}

		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, prefix))
		}

		cursor = nextCursor
		if cursor == 0 {
			return names, nil
		}
	}
}

func storageKey(scope Scope, ownerID int64, key string) string {
	return scopePrefix(scope, ownerID) + key
}

func scopePrefix(scope Scope, ownerID int64) string {
	if scope == ScopeBot {
		return "kv:bot:"
	}

	return fmt.Sprintf("kv:user:%d:", ownerID)
}
