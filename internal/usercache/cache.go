// Package usercache keeps recently seen user profiles in redis so the auth
// middleware does not hit postgres on every delivery.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/relaygate/relay-bot/internal/domain"
)

// Cache is safe to use when nil; all operations become no-ops.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) ready() bool {
	return c != nil && c.client != nil
}

// Get returns the cached profile, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	if !c.ready() {
		return nil, nil
	}

	raw, err := c.client.Get(ctx, profileKey(telegramID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	user := new(domain.User)
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return user, nil
}

// Set caches the profile for ttl.
func (c *Cache) Set(ctx context.Context, telegramID int64, user *domain.User, ttl time.Duration) error {
	if !c.ready() || user == nil {
		return nil
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user for cache: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(telegramID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache user: %w", err)
	}
	return nil
}

// Invalidate drops the cached profile.
func (c *Cache) Invalidate(ctx context.Context, telegramID int64) error {
	if !c.ready() {
		return nil
	}
	if err := c.client.Del(ctx, profileKey(telegramID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached user: %w", err)
	}
	return nil
}

func profileKey(telegramID int64) string {
	return "user:profile:" + strconv.FormatInt(telegramID, 10)
}
