// Package health aggregates readiness probes for the gateway's dependencies.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
	telebot "gopkg.in/telebot.v3"
)

// CheckFunc probes one dependency. A nil error means ready.
type CheckFunc func(ctx context.Context) error

// Checker runs a named set of probes and reports per-component status.
type Checker struct {
	log    *slog.Logger
	probes map[string]CheckFunc
}

func NewChecker(log *slog.Logger) *Checker {
	return &Checker{
		log:    log,
		probes: make(map[string]CheckFunc),
	}
}

// AddCheck registers a probe under name. Empty names and nil funcs are ignored.
func (c *Checker) AddCheck(name string, probe CheckFunc) {
	if name == "" || probe == nil {
		return
	}
	c.probes[name] = probe
}

// Check runs every probe and maps component name to "OK" or the error text.
// Probes run in name order so log output is stable.
func (c *Checker) Check(ctx context.Context) map[string]string {
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make(map[string]string, len(names))
	for _, name := range names {
		err := c.probes[name](ctx)
		if err == nil {
			statuses[name] = "OK"
			continue
		}

		statuses[name] = err.Error()
		if c.log != nil {
			c.log.Error("readiness probe failed",
				slog.String("component", name),
				slog.Any("error", err))
		}
	}
	return statuses
}

// PingDB probes the postgres instance holding users and stored sessions.
func PingDB(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return sql.ErrConnDone
		}
		return db.PingContext(ctx)
	}
}

// Pinger is the slice of redis.Client needed for the redis probe.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// PingRedis probes the redis instance backing continuations, dedupe records
// and the key/value store.
func PingRedis(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if p == nil {
			return redis.ErrClosed
		}
		return p.Ping(ctx).Err()
	}
}

// BotReady reports whether the chat platform transport finished its
// handshake; telebot fills Me once the token is accepted.
func BotReady(bot *telebot.Bot) CheckFunc {
	return func(context.Context) error {
		if bot == nil || bot.Me == nil {
			return errors.New("bot transport is not initialized or disconnected")
		}
		return nil
	}
}
