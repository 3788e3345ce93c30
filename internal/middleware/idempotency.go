package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/idempotency"
)

const dedupeTTL = 24 * time.Hour

// Idempotency processes each delivery at most once. A redelivered update
// gets the originally rendered response replayed; a delivery arriving while
// the first copy is still being processed is dropped.
func Idempotency(manager idempotency.Manager, log *slog.Logger) Middleware {
	if manager == nil {
		return func(next Handler) Handler { return next }
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, d *Delivery) (*command.Response, error) {
			if d.UpdateID == 0 {
				return next(ctx, d)
			}

			key := idempotency.DeliveryKey(d.UpdateID, d.Request.User.ID)

			result, err := manager.Execute(ctx, key, dedupeTTL, func(execCtx context.Context) (*command.Response, error) {
				return next(execCtx, d)
			})
			if err != nil {
				if errors.Is(err, idempotency.ErrInProgress) {
					log.Info("duplicate delivery dropped",
						slog.Int("update_id", d.UpdateID),
						slog.Int64("user_id", d.Request.User.ID),
					)
					return nil, nil
				}
				return nil, err
			}

			if result.FromCache {
				log.Info("redelivered update answered from cache",
					slog.Int("update_id", d.UpdateID),
					slog.Int64("user_id", d.Request.User.ID),
				)
			}

			return result.Response, nil
		}
	}
}
