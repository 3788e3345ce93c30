package middleware

import (
	"context"
	"log/slog"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/user"
)

// Auth ensures every sender has a user record and keeps their activity
// timestamp fresh. Persistence failures do not block the delivery; the
// handlers that need the record deal with its absence themselves.
func Auth(users *user.Service, log *slog.Logger) Middleware {
	if users == nil {
		return func(next Handler) Handler { return next }
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, d *Delivery) (*command.Response, error) {
			if _, err := users.GetOrCreate(ctx, &d.Request.User); err != nil {
				log.Error("failed to ensure user record",
					slog.Int64("user_id", d.Request.User.ID),
					slog.Any("error", err),
				)
			} else if err := users.UpdateLastActive(ctx, d.Request.User.ID); err != nil {
				log.Warn("failed to update user activity",
					slog.Int64("user_id", d.Request.User.ID),
					slog.Any("error", err),
				)
			}

			return next(ctx, d)
		}
	}
}
