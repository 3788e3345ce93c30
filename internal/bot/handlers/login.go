package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/bot/keyboard"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/login"
)

const loginIDMeta = "login_id"

// LoginHandlers implements the multi-step account login flow. After /login
// the next plain message is routed to the code step via a continuation; /code
// and /password also work as explicit commands.
type LoginHandlers struct {
	machine *login.Machine
	pending continuation.Table
	kb      *keyboard.Builder
	i18n    *i18n.Manager
}

// NewLoginHandlers constructs the login flow handlers.
func NewLoginHandlers(machine *login.Machine, pending continuation.Table, kb *keyboard.Builder, m *i18n.Manager) *LoginHandlers {
	return &LoginHandlers{machine: machine, pending: pending, kb: kb, i18n: m}
}

// Start begins a login: /login <phone>.
func (h *LoginHandlers) Start(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	phone := strings.TrimSpace(req.Payload)
	loginID, err := h.machine.Start(ctx, req.User.ID, phone)
	if err != nil {
		return nil, err
	}

	h.expectNext(ctx, req, "code", loginID)

	resp := command.NewMessage(req.Chat.ID, fmt.Sprintf(
		text(t, "login.code_sent", "A verification code was sent to %s. Send it as your next message or with /code <code>."),
		phone,
	))
	resp.Keyboard = h.kb.CancelButton(t)
	return resp, nil
}

// Code verifies the received code: continuation input or /code <code>.
func (h *LoginHandlers) Code(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	code := strings.TrimSpace(req.Payload)
	if code == "" {
		return nil, apperr.NewUserInputError(text(t, "login.code_usage", "Usage: /code <verification code>"))
	}
	if isCommand(code) {
		return h.abortFlow(ctx, req, t)
	}

	loginID, ok := h.loginID(req)
	if !ok {
		return nil, apperr.NewNotFoundError(text(t, "login.attempt", "Login attempt"))
	}

	outcome, err := h.machine.VerifyCode(ctx, req.User.ID, loginID, code)
	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case login.OutcomeSuccess:
		return h.success(req, t, outcome), nil

	case login.OutcomeNeedPassword:
		h.expectNext(ctx, req, "password", loginID)

		resp := command.NewMessage(req.Chat.ID, outcome.Reason)
		resp.Keyboard = h.kb.CancelButton(t)
		return resp, nil

	default:
		if !outcome.Terminal {
			h.expectNext(ctx, req, "code", loginID)
		}
		return command.NewMessage(req.Chat.ID, outcome.Reason), nil
	}
}

// Password verifies the two-factor password: continuation input or
// /password <password>.
func (h *LoginHandlers) Password(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	password := req.Payload
	if strings.TrimSpace(password) == "" {
		return nil, apperr.NewUserInputError(text(t, "login.password_usage", "Usage: /password <password>"))
	}
	if isCommand(strings.TrimSpace(password)) {
		return h.abortFlow(ctx, req, t)
	}

	loginID, ok := h.loginID(req)
	if !ok {
		return nil, apperr.NewNotFoundError(text(t, "login.attempt", "Login attempt"))
	}

	outcome, err := h.machine.VerifyPassword(ctx, req.User.ID, loginID, password)
	if err != nil {
		return nil, err
	}

	if outcome.Status == login.OutcomeSuccess {
		return h.success(req, t, outcome), nil
	}

	if !outcome.Terminal {
		h.expectNext(ctx, req, "password", loginID)
	}
	return command.NewMessage(req.Chat.ID, outcome.Reason), nil
}

// loginID prefers the id carried by the continuation and falls back to the
// user's single in-flight attempt.
func (h *LoginHandlers) loginID(req *command.Request) (string, bool) {
	if id := req.Meta[loginIDMeta]; id != "" {
		return id, true
	}

	id, _, ok := h.machine.ActiveLogin(req.User.ID)
	return id, ok
}

// expectNext routes the user's next message to the given login step.
// Continuation failures are not fatal: the explicit command still works.
func (h *LoginHandlers) expectNext(ctx context.Context, req *command.Request, step, loginID string) {
	_ = h.pending.Set(ctx, req.User.ID, step, map[string]string{
		loginIDMeta: loginID,
		"chat_id":   strconv.FormatInt(req.Chat.ID, 10),
	})
}

func (h *LoginHandlers) success(req *command.Request, t i18n.Translator, outcome *login.Outcome) *command.Response {
	name := outcome.Profile.DisplayName()
	if name == "" {
		name = outcome.Profile.Phone
	}

	return command.NewMessage(req.Chat.ID, fmt.Sprintf(
		text(t, "login.success", "Logged in as %s. The account is now available in /accounts."),
		name,
	))
}

// abortFlow handles a command typed while a login step was expected: the
// attempt is cancelled instead of feeding the command text to the verifier.
func (h *LoginHandlers) abortFlow(ctx context.Context, req *command.Request, t i18n.Translator) (*command.Response, error) {
	h.machine.Cancel(req.User.ID)
	_ = h.pending.Clear(ctx, req.User.ID)

	return command.NewMessage(req.Chat.ID, text(t, "login.aborted", "Login cancelled.")), nil
}

func isCommand(s string) bool {
	return strings.HasPrefix(s, command.Prefix)
}
