// Package handlers implements the bot's command surface on top of the
// dispatch engine: key/value notes, the account login flow and account
// management.
package handlers

import (
	"strings"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/i18n"
)

var markdownReplacer = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"`", "\\`",
)

// EscapeMarkdown neutralizes markup characters in user-supplied content so it
// can be embedded into rich-format replies without injection.
func EscapeMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}

// translator resolves the request's language against the catalog. A nil
// manager yields key-echoing lookups, which the text helper turns into the
// built-in fallback strings.
func translator(m *i18n.Manager, req *command.Request) i18n.Translator {
	return m.Translator(req.User.Lang)
}

func text(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	value := t.T(key)
	if value == "" || value == key {
		return fallback
	}

	return value
}
