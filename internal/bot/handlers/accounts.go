package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/bot/keyboard"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/session"
)

const phoneMeta = "phone"

// AccountHandlers exposes the logged-in account operations: listing,
// relaying a message through an account, and logging an account out.
type AccountHandlers struct {
	accounts *session.Manager
	pending  continuation.Table
	kb       *keyboard.Builder
	i18n     *i18n.Manager
}

// NewAccountHandlers constructs the account command handlers.
func NewAccountHandlers(accounts *session.Manager, pending continuation.Table, kb *keyboard.Builder, m *i18n.Manager) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, pending: pending, kb: kb, i18n: m}
}

// List renders /accounts: every active account with send/logout buttons.
func (h *AccountHandlers) List(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	accounts, err := h.accounts.ListAccounts(ctx, req.User.ID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return command.NewMessage(req.Chat.ID, text(t, "accounts.empty", "No accounts are logged in. Use /login <phone> to add one.")), nil
	}

	var b strings.Builder
	b.WriteString(text(t, "accounts.header", "Logged-in accounts:"))
	for _, account := range accounts {
		name := account.DisplayName
		if account.Username != "" {
			name = fmt.Sprintf("%s (@%s)", name, account.Username)
		}
		b.WriteString(fmt.Sprintf("\n%s %s", EscapeMarkdown(account.Phone), EscapeMarkdown(name)))
	}

	resp := command.NewMessage(req.Chat.ID, b.String())
	resp.Format = command.FormatMarkdown
	resp.Keyboard = h.kb.AccountButtons(t, accounts)
	return resp, nil
}

// Send relays a message through one of the user's accounts:
// /send <phone> | <target> | <message>. When the phone arrives via a
// callback continuation the payload shrinks to <target> | <message>.
func (h *AccountHandlers) Send(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	if isCommand(strings.TrimSpace(req.Payload)) {
		_ = h.pending.Clear(ctx, req.User.ID)
		return command.NewMessage(req.Chat.ID, text(t, "send.aborted", "Send cancelled.")), nil
	}

	phone, target, message, err := h.parseSend(req, t)
	if err != nil {
		if req.Meta[phoneMeta] != "" {
			h.expectPhone(ctx, req, req.Meta[phoneMeta])
		}
		return nil, err
	}

	if err := h.accounts.SendVia(ctx, req.User.ID, phone, target, message); err != nil {
		if errors.Is(err, session.ErrAccountNotFound) {
			return nil, apperr.NewNotFoundError(text(t, "send.account", "Account"))
		}
		return nil, err
	}

	return command.NewMessage(req.Chat.ID, fmt.Sprintf(
		text(t, "send.ok", "Message sent to %s via %s."), target, phone,
	)), nil
}

// Logout ends the sessions of one account: /logout <phone>.
func (h *AccountHandlers) Logout(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	phone := strings.TrimSpace(req.Payload)
	if phone == "" {
		phone = req.Meta[phoneMeta]
	}
	if phone == "" {
		return nil, apperr.NewUserInputError(text(t, "logout.usage", "Usage: /logout <phone>"))
	}

	if err := h.accounts.LogoutEverywhere(ctx, req.User.ID, phone); err != nil {
		if errors.Is(err, session.ErrAccountNotFound) {
			return nil, apperr.NewNotFoundError(text(t, "logout.account", "Account"))
		}
		return nil, err
	}

	return command.NewMessage(req.Chat.ID, fmt.Sprintf(
		text(t, "logout.ok", "Logged %s out everywhere."), phone,
	)), nil
}

// ExpectSend primes the continuation for a callback-initiated send: the next
// message carries the target and text for the chosen account.
func (h *AccountHandlers) ExpectSend(ctx context.Context, req *command.Request, phone string) (*command.Response, error) {
	t := translator(h.i18n, req)

	h.expectPhone(ctx, req, phone)

	resp := command.NewMessage(req.Chat.ID, fmt.Sprintf(
		text(t, "send.prompt", "Sending via %s. Reply with: <target> | <message>"), phone,
	))
	resp.Keyboard = h.kb.CancelButton(t)
	return resp, nil
}

func (h *AccountHandlers) expectPhone(ctx context.Context, req *command.Request, phone string) {
	_ = h.pending.Set(ctx, req.User.ID, "send", map[string]string{
		phoneMeta: phone,
		"chat_id": strconv.FormatInt(req.Chat.ID, 10),
	})
}

func (h *AccountHandlers) parseSend(req *command.Request, t i18n.Translator) (phone, target, message string, err error) {
	parts := strings.Split(req.Payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if phone = req.Meta[phoneMeta]; phone != "" {
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return "", "", "", apperr.NewUserInputError(text(t, "send.prompt_usage", "Reply with: <target> | <message>"))
		}
		return phone, parts[0], strings.Join(parts[1:], " | "), nil
	}

	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", apperr.NewUserInputError(text(t, "send.usage", "Usage: /send <phone> | <target> | <message>"))
	}
	return parts[0], parts[1], strings.Join(parts[2:], " | "), nil
}
