package ratelimit

import (
	"errors"
	"time"

	"github.com/relaygate/relay-bot/pkg/config"
)

// ErrNoRule indicates that no dedicated rate limit exists for a command.
var ErrNoRule = errors.New("no rate limit rule for command")

// Rules resolves configured limits. Commands that open connections to the
// external messaging network (login, send) carry their own tighter limits
// on top of the per-user one.
type Rules struct {
	enabled   bool
	whitelist map[int64]struct{}
	perUser   config.RateLimitRule
	commands  map[string]config.RateLimitRule
}

func NewRules(cfg config.RateLimitConfig) *Rules {
	wl := make(map[int64]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		wl[id] = struct{}{}
	}

	return &Rules{
		enabled:   cfg.Enabled,
		whitelist: wl,
		perUser:   cfg.PerUser,
		commands: map[string]config.RateLimitRule{
			"login": cfg.Commands.Login,
			"send":  cfg.Commands.Send,
		},
	}
}

func (r *Rules) Enabled() bool {
	return r.enabled
}

// IsWhitelisted reports whether userID bypasses rate limits entirely.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// GetCommandLimit returns the limit and window for command, or ErrNoRule
// when only the per-user limit applies.
func (r *Rules) GetCommandLimit(command string) (int, time.Duration, error) {
	rule, ok := r.commands[command]
	if !ok {
		return 0, 0, ErrNoRule
	}
	return parseRule(rule)
}

func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.perUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
