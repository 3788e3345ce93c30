package bot

import (
	"github.com/relaygate/relay-bot/internal/bot/handlers"
	"github.com/relaygate/relay-bot/internal/bot/keyboard"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/kvstore"
	"github.com/relaygate/relay-bot/internal/login"
	"github.com/relaygate/relay-bot/internal/session"
)

// Command names and aliases recognized by the bot.
const (
	CommandStart    = "start"
	CommandHelp     = "help"
	CommandSave     = "save"
	CommandShow     = "show"
	CommandShowAll  = "showall"
	CommandDelete   = "del"
	CommandLogin    = "login"
	CommandCode     = "code"
	CommandPassword = "password"
	CommandAccounts = "accounts"
	CommandSend     = "send"
	CommandLogout   = "logout"
	CommandCancel   = "cancel"
)

// buildRegistry wires every command handler into a fresh registry and returns
// the account handlers, which the callback path also needs.
func buildRegistry(
	notes kvstore.Store,
	machine *login.Machine,
	accounts *session.Manager,
	pending continuation.Table,
	kb *keyboard.Builder,
	m *i18n.Manager,
) (*command.Registry, *handlers.AccountHandlers) {
	registry := command.NewRegistry()

	registry.Register(handlers.NewStartHandler(kb, m), CommandStart)
	registry.Register(handlers.NewHelpHandler(registry, m), CommandHelp)

	kv := handlers.NewKVHandlers(notes, pending, kb, m)
	registry.Register(kv.Save, CommandSave)
	registry.Register(kv.ShowAll, CommandShowAll)
	registry.Register(kv.Show, CommandShow)
	registry.Register(kv.Delete, CommandDelete)

	loginHandlers := handlers.NewLoginHandlers(machine, pending, kb, m)
	registry.Register(loginHandlers.Start, CommandLogin)
	registry.Register(loginHandlers.Code, CommandCode)
	registry.Register(loginHandlers.Password, CommandPassword)

	accountHandlers := handlers.NewAccountHandlers(accounts, pending, kb, m)
	registry.Register(accountHandlers.List, CommandAccounts)
	registry.Register(accountHandlers.Send, CommandSend)
	registry.Register(accountHandlers.Logout, CommandLogout)

	registry.Register(handlers.NewCancelHandler(pending, machine, m), CommandCancel)

	return registry, accountHandlers
}
