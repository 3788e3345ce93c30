package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/ratelimit"
)

// RateLimit enforces the per-user limit on every delivery and, for commands
// with a dedicated rule, an additional per-command limit. Limiter failures
// fail open: a broken Redis must not silence the bot.
func RateLimit(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, d *Delivery) (*command.Response, error) {
			if limiter == nil || rules == nil || !rules.Enabled() {
				return next(ctx, d)
			}

			userID := d.Request.User.ID
			if rules.IsWhitelisted(userID) {
				return next(ctx, d)
			}

			if resp := checkRule(ctx, limiter, log, d, perUserKey(userID), rules.GetPerUserLimit); resp != nil {
				return resp, nil
			}

			if name := commandToken(d.Request.Text); name != "" {
				limitFn := func() (int, time.Duration, error) {
					return rules.GetCommandLimit(name)
				}
				if resp := checkRule(ctx, limiter, log, d, commandKey(userID, name), limitFn); resp != nil {
					return resp, nil
				}
			}

			return next(ctx, d)
		}
	}
}

func checkRule(ctx context.Context, limiter ratelimit.Limiter, log *slog.Logger, d *Delivery, key string, limitFn func() (int, time.Duration, error)) *command.Response {
	limit, window, err := limitFn()
	if err != nil {
		if !errors.Is(err, ratelimit.ErrNoRule) {
			log.Error("failed to load rate limit rule", slog.String("key", key), slog.Any("error", err))
		}
		return nil
	}

	result, err := limiter.Check(ctx, key, limit, window)
	if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
		log.Error("rate limiter check failed", slog.String("key", key), slog.Any("error", err))
		return nil
	}

	if result != nil && !result.Allowed {
		wait := time.Until(result.ResetAt).Round(time.Second)
		if wait < time.Second {
			wait = time.Second
		}

		return command.NewMessage(
			d.Request.Chat.ID,
			fmt.Sprintf("You are sending commands too fast. Try again in %s.", wait),
		)
	}

	return nil
}

// commandToken extracts the command name from the message text, without the
// leading slash. Non-command text yields an empty string.
func commandToken(text string) string {
	if !strings.HasPrefix(text, command.Prefix) {
		return ""
	}

	token := strings.TrimPrefix(text, command.Prefix)
	if i := strings.IndexFunc(token, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }); i >= 0 {
		token = token[:i]
	}

	return token
}

func perUserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func commandKey(userID int64, name string) string {
	return fmt.Sprintf("user:%d:%s", userID, name)
}
