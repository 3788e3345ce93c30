package continuation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tables(t *testing.T) map[string]Table {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return map[string]Table{
		"memory": NewMemoryTable(),
		"redis":  NewRedisTable(client, log, 0),
	}
}

func TestTable_SetReplaces(t *testing.T) {
	for name, table := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, table.Set(ctx, 42, "code", nil))
			require.NoError(t, table.Set(ctx, 42, "password", map[string]string{"login_id": "abc"}))

			p, err := table.Take(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, "password", p.Command)
			assert.Equal(t, "abc", p.Context["login_id"])
			assert.False(t, p.CreatedAt.IsZero())

			_, err = table.Take(ctx, 42)
			assert.ErrorIs(t, err, ErrNoPending)
		})
	}
}

func TestTable_TakeConsumesExactlyOnce(t *testing.T) {
	for name, table := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, table.Set(ctx, 7, "code", nil))

			const racers = 8

			var wg sync.WaitGroup
			results := make(chan error, racers)

			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := table.Take(ctx, 7)
					results <- err
				}()
			}

			wg.Wait()
			close(results)

			var won, lost int
			for err := range results {
				switch {
				case err == nil:
					won++
				case assert.ErrorIs(t, err, ErrNoPending):
					lost++
				}
			}

			assert.Equal(t, 1, won)
			assert.Equal(t, racers-1, lost)
		})
	}
}

func TestTable_PeekDoesNotConsume(t *testing.T) {
	for name, table := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, table.Set(ctx, 9, "save", nil))

			p, err := table.Peek(ctx, 9)
			require.NoError(t, err)
			assert.Equal(t, "save", p.Command)

			p, err = table.Take(ctx, 9)
			require.NoError(t, err)
			assert.Equal(t, "save", p.Command)
		})
	}
}

func TestTable_Clear(t *testing.T) {
	for name, table := range tables(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, table.Set(ctx, 5, "code", nil))
			require.NoError(t, table.Clear(ctx, 5))

			_, err := table.Take(ctx, 5)
			assert.ErrorIs(t, err, ErrNoPending)

			// clearing an empty slot is fine
			require.NoError(t, table.Clear(ctx, 5))
		})
	}
}

func TestMemoryTable_Sweep(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()

	require.NoError(t, table.Set(ctx, 1, "code", nil))
	require.NoError(t, table.Set(ctx, 2, "save", nil))

	// nothing is old enough yet
	assert.Equal(t, 0, table.Sweep(time.Minute))

	// age the first slot directly through the shard
	s := table.shardFor(1)
	s.mu.Lock()
	s.pending[1].CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	s.mu.Unlock()

	assert.Equal(t, 1, table.Sweep(time.Hour))

	_, err := table.Peek(ctx, 1)
	assert.ErrorIs(t, err, ErrNoPending)
	_, err = table.Peek(ctx, 2)
	assert.NoError(t, err)
}
