// Package handlers implements the background maintenance task processors.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/relaygate/relay-bot/internal/jobs"
	"github.com/relaygate/relay-bot/internal/login"
	"github.com/relaygate/relay-bot/internal/session"
)

// LoginSweepHandler expires login attempts that were started but never
// finished, releasing their network connections.
type LoginSweepHandler struct {
	machine *login.Machine
	log     *slog.Logger
}

func NewLoginSweepHandler(machine *login.Machine, log *slog.Logger) *LoginSweepHandler {
	return &LoginSweepHandler{machine: machine, log: log}
}

func (h *LoginSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.LoginSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "login sweep: failed to decode payload",
				slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		}
		return err
	}

	expired := h.machine.CleanupExpired(payload.MaxAge)
	if h.log != nil && expired > 0 {
		h.log.InfoContext(ctx, "login sweep: expired stale attempts", slog.Int("count", expired))
	}

	return nil
}

// SessionAuditHandler recounts active stored sessions so the gauge stays
// honest after restarts and manual database edits.
type SessionAuditHandler struct {
	accounts *session.Manager
	log      *slog.Logger
}

func NewSessionAuditHandler(accounts *session.Manager, log *slog.Logger) *SessionAuditHandler {
	return &SessionAuditHandler{accounts: accounts, log: log}
}

func (h *SessionAuditHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	count, err := h.accounts.CountActive(ctx)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "session audit failed", slog.String("error", err.Error()))
		}
		return err
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "session audit complete", slog.Int64("active_sessions", count))
	}

	return nil
}
