// Package idempotency deduplicates webhook deliveries. The chat platform
// redelivers an update when the webhook answers slowly, so each update is
// processed once and the rendered response is replayed for duplicates.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/relaygate/relay-bot/internal/command"
)

// ErrInProgress indicates the same delivery is currently being processed.
var ErrInProgress = errors.New("delivery with this key is already in progress")

const (
	lockTTL   = 5 * time.Minute
	retryWait = 100 * time.Millisecond
)

// Operation produces the response for a delivery.
type Operation func(ctx context.Context) (*command.Response, error)

// Result is the outcome of an idempotent execution.
type Result struct {
	Response  *command.Response
	FromCache bool
}

// Manager executes an operation at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	return &manager{store: store, log: log}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}
		if locked {
			return m.run(ctx, key, ttl, fn)
		}

		result, retry, err := m.replay(ctx, key)
		if err != nil || !retry {
			return result, err
		}

		// Lock holder has not written its record yet; wait and re-check.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryWait):
		}
	}
}

// run executes fn under the lock and persists the completed record.
func (m *manager) run(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer m.store.ReleaseLock(ctx, key) //nolint:errcheck

	response, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	var encoded []byte
	if response != nil {
		if encoded, err = json.Marshal(response); err != nil {
			return nil, err
		}
	}

	rec := &Record{Status: StatusCompleted, Response: encoded}
	if err := m.store.Set(ctx, key, rec, ttl); err != nil {
		return nil, err
	}
	return &Result{Response: response}, nil
}

// replay resolves a duplicate delivery from the stored record. retry is true
// when no record exists yet and the caller should poll again.
func (m *manager) replay(ctx context.Context, key string) (result *Result, retry bool, err error) {
	rec, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, true, nil
	}

	switch rec.Status {
	case StatusCompleted:
		var response *command.Response
		if len(rec.Response) > 0 {
			response = &command.Response{}
			if err := json.Unmarshal(rec.Response, response); err != nil {
				return nil, false, err
			}
		}
		return &Result{Response: response, FromCache: true}, false, nil
	case StatusProcessing:
		return nil, false, ErrInProgress
	default:
		return nil, true, nil
	}
}
