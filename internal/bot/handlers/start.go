package handlers

import (
	"context"
	"fmt"

	"github.com/relaygate/relay-bot/internal/bot/keyboard"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/i18n"
)

// NewStartHandler greets the user and shows the command shortcut menu.
func NewStartHandler(kb *keyboard.Builder, m *i18n.Manager) command.Handler {
	return func(ctx context.Context, req *command.Request) (*command.Response, error) {
		t := translator(m, req)

		name := req.User.FirstName
		if name == "" {
			name = req.User.Username
		}

		greeting := fmt.Sprintf(
			text(t, "start.welcome", "Hello, %s! I relay messages through your connected accounts. Pick a command below or type /help."),
			name,
		)

		resp := command.NewMessage(req.Chat.ID, greeting)
		resp.Keyboard = kb.MainMenu(t)
		return resp, nil
	}
}
