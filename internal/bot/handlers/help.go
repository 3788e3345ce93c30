package handlers

import (
	"context"
	"strings"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/i18n"
)

// NewHelpHandler lists every registered command.
func NewHelpHandler(registry *command.Registry, m *i18n.Manager) command.Handler {
	return func(ctx context.Context, req *command.Request) (*command.Response, error) {
		t := translator(m, req)

		var sb strings.Builder
		sb.WriteString(text(t, "help.header", "Available commands:"))
		for _, name := range registry.Names() {
			sb.WriteString("\n")
			sb.WriteString(command.Prefix + name)

			if desc := text(t, "help."+name, ""); desc != "" {
				sb.WriteString(" - " + desc)
			}
		}

		return command.NewMessage(req.Chat.ID, sb.String()), nil
	}
}
