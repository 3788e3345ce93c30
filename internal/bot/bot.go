// Package bot binds the chat platform transport to the dispatch engine: it
// converts telebot updates into command requests, runs them through the
// middleware pipeline and renders the responses.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/bot/handlers"
	"github.com/relaygate/relay-bot/internal/bot/keyboard"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/dispatch"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/idempotency"
	"github.com/relaygate/relay-bot/internal/kvstore"
	"github.com/relaygate/relay-bot/internal/login"
	"github.com/relaygate/relay-bot/internal/middleware"
	"github.com/relaygate/relay-bot/internal/ratelimit"
	"github.com/relaygate/relay-bot/internal/session"
	"github.com/relaygate/relay-bot/internal/user"
	"github.com/relaygate/relay-bot/pkg/config"
	"github.com/relaygate/relay-bot/pkg/logger"
)

// Deps bundles the services the bot surface is built on.
type Deps struct {
	Users       *user.Service
	Notes       kvstore.Store
	Login       *login.Machine
	Accounts    *session.Manager
	Pending     continuation.Table
	Idempotency idempotency.Manager
	Limiter     ratelimit.Limiter
	Rules       *ratelimit.Rules
	ErrHandler  *apperr.Handler
	I18n        *i18n.Manager
}

// Bot wraps telebot.Bot with the dispatch pipeline.
type Bot struct {
	telebot  *telebot.Bot
	log      *slog.Logger
	pipeline middleware.Handler
	accounts *handlers.AccountHandlers
	pending  continuation.Table
	machine  *login.Machine
	i18n     *i18n.Manager
}

// New builds the bot according to the application settings. In webhook mode
// telebot listens on cfg.Bot.ListenAddr and registers cfg.Bot.PublicURL with
// the platform; otherwise it long-polls.
func New(cfg config.Config, log *slog.Logger, deps Deps) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Bot.ListenAddr,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Bot.PublicURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(log)
	registry, accountHandlers := buildRegistry(deps.Notes, deps.Login, deps.Accounts, deps.Pending, kb, deps.I18n)
	dispatcher := dispatch.New(registry, deps.Pending, deps.ErrHandler, log)

	dispatchStep := func(ctx context.Context, d *middleware.Delivery) (*command.Response, error) {
		return dispatcher.Dispatch(ctx, d.Request), nil
	}

	pipeline := middleware.Chain(dispatchStep,
		middleware.DeliveryLogging(log),
		middleware.RateLimit(deps.Limiter, deps.Rules, log),
		middleware.Idempotency(deps.Idempotency, log),
		middleware.Auth(deps.Users, log),
	)

	b := &Bot{
		telebot:  tb,
		log:      log,
		pipeline: pipeline,
		accounts: accountHandlers,
		pending:  deps.Pending,
		machine:  deps.Login,
		i18n:     deps.I18n,
	}

	tb.Handle(telebot.OnText, b.onText)
	tb.Handle(telebot.OnCallback, b.onCallback)

	return b, nil
}

// Start runs the bot event loop. Blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) onText(c telebot.Context) error {
	if c.Sender() == nil || c.Message() == nil {
		return nil
	}

	ctx := logger.WithCorrelationID(context.Background())

	resp, err := b.pipeline(ctx, &middleware.Delivery{
		UpdateID: c.Update().ID,
		Request:  requestFrom(c, c.Text()),
	})
	if err != nil {
		b.log.Error("delivery pipeline failed", slog.Any("error", err))
		return nil
	}

	return b.deliver(c, resp)
}

// onCallback translates inline button presses into commands. Menu buttons
// carry a command as their payload; account buttons carry an encoded action.
func (b *Bot) onCallback(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	defer func() {
		if err := c.Respond(); err != nil {
			b.log.Debug("failed to answer callback", slog.Any("error", err))
		}
	}()

	ctx := logger.WithCorrelationID(context.Background())
	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")

	if strings.HasPrefix(data, command.Prefix) {
		return b.dispatchText(ctx, c, data)
	}

	action, payload, err := keyboard.DecodeCallback(data)
	if err != nil {
		b.log.Warn("undecodable callback", slog.String("data", data), slog.Any("error", err))
		return nil
	}

	switch action {
	case keyboard.ActionCancel:
		return b.dispatchText(ctx, c, command.Prefix+CommandCancel)

	case keyboard.ActionLogout:
		return b.dispatchText(ctx, c, fmt.Sprintf("%s%s %s", command.Prefix, CommandLogout, payload))

	case keyboard.ActionSendVia:
		resp, err := b.accounts.ExpectSend(ctx, requestFrom(c, ""), payload)
		if err != nil {
			b.log.Error("failed to arm send flow", slog.Any("error", err))
			return nil
		}
		return b.deliver(c, resp)

	case keyboard.ActionNotesPage:
		// Flip the listing in place instead of posting a new message.
		return b.dispatchEdit(ctx, c, fmt.Sprintf("%s%s %s", command.Prefix, CommandShowAll, payload))

	default:
		b.log.Warn("unknown callback action", slog.String("action", action))
		return nil
	}
}

// dispatchText runs callback-originated commands through the same pipeline as
// typed ones. A pending continuation is cleared first so the button press is
// treated as the command it names, not as flow input.
func (b *Bot) dispatchText(ctx context.Context, c telebot.Context, text string) error {
	if err := b.pending.Clear(ctx, c.Sender().ID); err != nil {
		b.log.Error("failed to clear continuation", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}

	resp, err := b.pipeline(ctx, &middleware.Delivery{
		UpdateID: c.Update().ID,
		Request:  requestFrom(c, text),
	})
	if err != nil {
		b.log.Error("delivery pipeline failed", slog.Any("error", err))
		return nil
	}

	return b.deliver(c, resp)
}

// dispatchEdit runs text through the pipeline like dispatchText, but renders
// a plain message response as an edit of the tapped message.
func (b *Bot) dispatchEdit(ctx context.Context, c telebot.Context, text string) error {
	resp, err := b.pipeline(ctx, &middleware.Delivery{
		UpdateID: c.Update().ID,
		Request:  requestFrom(c, text),
	})
	if err != nil {
		b.log.Error("delivery pipeline failed", slog.Any("error", err))
		return nil
	}

	if resp != nil && resp.Kind == command.ResponseSend {
		resp.Kind = command.ResponseEdit
	}
	return b.deliver(c, resp)
}

func (b *Bot) deliver(c telebot.Context, resp *command.Response) error {
	if resp == nil {
		return nil
	}

	var opts []interface{}
	if markup := keyboard.ToMarkup(resp.Keyboard); markup != nil {
		opts = append(opts, markup)
	}
	if resp.Format == command.FormatMarkdown {
		opts = append(opts, telebot.ModeMarkdown)
	}

	switch resp.Kind {
	case command.ResponseEdit:
		return c.Edit(resp.Text, opts...)

	case command.ResponseMedia:
		photo := &telebot.Photo{File: telebot.FromURL(resp.MediaRef), Caption: resp.Caption}
		return c.Send(photo, opts...)

	default:
		return c.Send(resp.Text, opts...)
	}
}

func requestFrom(c telebot.Context, text string) *command.Request {
	sender := c.Sender()

	req := &command.Request{
		User: command.User{
			ID:        sender.ID,
			FirstName: sender.FirstName,
			LastName:  sender.LastName,
			Username:  sender.Username,
			Lang:      sender.LanguageCode,
		},
		Text: text,
		// until routed, the payload is the whole text
		Payload: text,
	}

	if chat := c.Chat(); chat != nil {
		req.Chat = command.Chat{ID: chat.ID}
	}

	return req
}
