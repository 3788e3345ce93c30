package continuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingKeyPattern = "continuation:%d"

// RedisTable persists continuations in Redis so that pending conversational
// state survives a process restart.
type RedisTable struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisTable initializes a Redis-backed Table. A zero ttl means slots
// never expire on their own.
func NewRedisTable(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisTable {
	if log == nil {
		log = slog.Default()
	}

	return &RedisTable{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

var _ Table = (*RedisTable)(nil)

// Set records the continuation, replacing any existing one for the user.
func (t *RedisTable) Set(ctx context.Context, userID int64, command string, pendingCtx map[string]string) error {
	p := &Pending{
		UserID:    userID,
		Command:   command,
		Context:   pendingCtx,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.log.Error("failed to encode continuation", "user_id", userID, "error", err)
		return err
	}

	if err := t.client.Set(ctx, pendingKey(userID), data, t.ttl).Err(); err != nil {
		t.log.Error("failed to save continuation", "user_id", userID, "error", err)
		return err
	}

	return nil
}

// Take atomically removes and returns the continuation using GETDEL.
func (t *RedisTable) Take(ctx context.Context, userID int64) (*Pending, error) {
	data, err := t.client.GetDel(ctx, pendingKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoPending
		}

		t.log.Error("failed to take continuation", "user_id", userID, "error", err)
		return nil, err
	}

	return decodePending(userID, []byte(data), t.log)
}

// Peek returns the continuation without consuming it.
func (t *RedisTable) Peek(ctx context.Context, userID int64) (*Pending, error) {
	data, err := t.client.Get(ctx, pendingKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoPending
		}

		t.log.Error("failed to peek continuation", "user_id", userID, "error", err)
		return nil, err
	}

	return decodePending(userID, []byte(data), t.log)
}

// Clear drops the continuation if present.
func (t *RedisTable) Clear(ctx context.Context, userID int64) error {
	if err := t.client.Del(ctx, pendingKey(userID)).Err(); err != nil {
		t.log.Error("failed to clear continuation", "user_id", userID, "error", err)
		return err
	}

	return nil
}

func decodePending(userID int64, data []byte, log *slog.Logger) (*Pending, error) {
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error("failed to decode continuation", "user_id", userID, "error", err)
		return nil, err
	}

	return &p, nil
}

func pendingKey(userID int64) string {
	return fmt.Sprintf(pendingKeyPattern, userID)
}
