package handlers

import (
	"context"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/login"
)

// NewCancelHandler builds /cancel: it drops the user's pending continuation
// and any in-flight login attempt.
func NewCancelHandler(pending continuation.Table, machine *login.Machine, m *i18n.Manager) command.Handler {
	return func(ctx context.Context, req *command.Request) (*command.Response, error) {
		t := translator(m, req)

		cancelled := machine.Cancel(req.User.ID)

		if _, err := pending.Peek(ctx, req.User.ID); err == nil {
			cancelled = true
		}
		if err := pending.Clear(ctx, req.User.ID); err != nil {
			return nil, err
		}

		if !cancelled {
			return command.NewMessage(req.Chat.ID, text(t, "cancel.nothing", "Nothing to cancel.")), nil
		}
		return command.NewMessage(req.Chat.ID, text(t, "cancel.ok", "Cancelled.")), nil
	}
}
