// Package keyboard builds the inline keyboards attached to bot replies and
// converts them to the chat platform's markup.
package keyboard

import (
	"log/slog"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/session"
)

// Callback actions understood by the command surface.
const (
	ActionSendVia   = "acct_send"
	ActionLogout    = "acct_logout"
	ActionCancel    = "cancel"
	ActionNotesPage = "notes"
)

// Builder creates inline keyboards for bot replies.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}

	return &Builder{log: log}
}

// MainMenu builds the command shortcut menu shown by /start.
func (b *Builder) MainMenu(t i18n.Translator) command.Keyboard {
	return command.Keyboard{
		{
			{Text: translated(t, "menu.save", "Save a note"), Data: "/save"},
			{Text: translated(t, "menu.show", "Show a note"), Data: "/show"},
		},
		{
			{Text: translated(t, "menu.login", "Connect account"), Data: "/login"},
			{Text: translated(t, "menu.accounts", "My accounts"), Data: "/accounts"},
		},
		{
			{Text: translated(t, "menu.help", "Help"), Data: "/help"},
		},
	}
}

// CancelButton builds a single cancel button for multi-step flows.
func (b *Builder) CancelButton(t i18n.Translator) command.Keyboard {
	return command.Keyboard{
		{
			{Text: translated(t, "menu.cancel", "Cancel"), Data: ActionCancel},
		},
	}
}

// AccountButtons builds one row per connected account with send and logout
// actions carrying the account's phone in the callback payload.
func (b *Builder) AccountButtons(t i18n.Translator, accounts []session.AccountSummary) command.Keyboard {
	kb := make(command.Keyboard, 0, len(accounts))
	for _, account := range accounts {
		sendData, err := EncodeCallback(ActionSendVia, account.Phone)
		if err != nil {
			b.log.Warn("skipping account button", slog.String("phone", account.Phone), slog.Any("error", err))
			continue
		}

		logoutData, err := EncodeCallback(ActionLogout, account.Phone)
		if err != nil {
			b.log.Warn("skipping account button", slog.String("phone", account.Phone), slog.Any("error", err))
			continue
		}

		kb = append(kb, []command.Button{
			{Text: translated(t, "accounts.send_via", "Send via") + " " + account.Phone, Data: sendData},
			{Text: translated(t, "accounts.logout", "Logout") + " " + account.Phone, Data: logoutData},
		})
	}

	return kb
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := t.T(key)
	if text == "" || text == key {
		return fallback
	}

	return text
}
