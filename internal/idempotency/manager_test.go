package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relay-bot/internal/command"
)

func newTestManager(t *testing.T) Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewManager(NewRedisStore(client, nil), nil)
}

func TestManager_ExecutesOncePerKey(t *testing.T) {
	manager := newTestManager(t)
	key := DeliveryKey(1001, 42)

	calls := 0
	op := func(context.Context) (*command.Response, error) {
		calls++
		return command.NewMessage(7, "done"), nil
	}

	first, err := manager.Execute(context.Background(), key, time.Minute, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "done", first.Response.Text)

	second, err := manager.Execute(context.Background(), key, time.Minute, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "done", second.Response.Text)
	assert.Equal(t, int64(7), second.Response.ChatID)

	assert.Equal(t, 1, calls)
}

func TestManager_DistinctKeysRunIndependently(t *testing.T) {
	manager := newTestManager(t)

	calls := 0
	op := func(context.Context) (*command.Response, error) {
		calls++
		return nil, nil
	}

	_, err := manager.Execute(context.Background(), DeliveryKey(1, 42), time.Minute, op)
	require.NoError(t, err)
	_, err = manager.Execute(context.Background(), DeliveryKey(2, 42), time.Minute, op)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestManager_OperationErrorIsNotCached(t *testing.T) {
	manager := newTestManager(t)
	key := DeliveryKey(5, 42)

	_, err := manager.Execute(context.Background(), key, time.Minute, func(context.Context) (*command.Response, error) {
		return nil, errors.New("handler blew up")
	})
	require.Error(t, err)

	result, err := manager.Execute(context.Background(), key, time.Minute, func(context.Context) (*command.Response, error) {
		return command.NewMessage(7, "recovered"), nil
	})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, "recovered", result.Response.Text)
}

func TestDeliveryKey_Deterministic(t *testing.T) {
	assert.Equal(t, DeliveryKey(1, 42), DeliveryKey(1, 42))
	assert.NotEqual(t, DeliveryKey(1, 42), DeliveryKey(2, 42))
	assert.NotEqual(t, DeliveryKey(1, 42), DeliveryKey(1, 43))
}
