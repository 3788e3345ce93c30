// Package dispatch routes inbound messages to command handlers, giving
// pending continuations priority over prefix matching.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/pkg/metrics"
)

// chatIDContextKey is the continuation context slot holding the chat to reply to.
const chatIDContextKey = "chat_id"

// Dispatcher maps one inbound message to one handler invocation. It is the
// single point converting handler failures into user-visible responses; a
// dispatch never raises.
type Dispatcher struct {
	registry   *command.Registry
	pending    continuation.Table
	errHandler *apperr.Handler
	log        *slog.Logger

	// Fallback renders the response for unmatched input. When nil a plain
	// listing of registered commands is used.
	Fallback func(req *command.Request, names []string) *command.Response
}

// New builds a Dispatcher over the given registry and continuation table.
func New(registry *command.Registry, pending continuation.Table, errHandler *apperr.Handler, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		registry:   registry,
		pending:    pending,
		errHandler: errHandler,
		log:        log,
	}
}

// Dispatch resolves and runs the handler for the request. Continuations are
// consumed before any prefix matching, and exactly once even under concurrent
// deliveries from the same user.
func (d *Dispatcher) Dispatch(ctx context.Context, req *command.Request) (resp *command.Response) {
	start := time.Now()
	route := "fallback"
	status := "ok"

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic recovered in handler",
				slog.String("route", route),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			status = "panic"
			resp = d.failureResponse(ctx, req, apperr.NewInternalError(fmt.Errorf("panic: %v", r)))
		}

		metrics.RecordDispatch(route, status, time.Since(start))
	}()

	pending, err := d.pending.Take(ctx, req.User.ID)
	if err != nil && !errors.Is(err, continuation.ErrNoPending) {
		// a broken continuation store must not break command dispatch
		d.log.Error("failed to take continuation", slog.Int64("user_id", req.User.ID), slog.Any("error", err))
	}

	if pending != nil {
		route = pending.Command
		metrics.RecordContinuation("consumed")
		return d.runContinuation(ctx, req, pending, &status)
	}

	if name, payload, ok := d.registry.Match(req.Text); ok {
		route = name
		handler, found := d.registry.Resolve(name)
		if !found {
			// Match only returns registered names; this is a registry bug
			d.log.Error("matched command has no handler", slog.String("command", name))
			return d.fallback(req)
		}

		invokeReq := *req
		invokeReq.Payload = payload
		return d.invoke(ctx, handler, &invokeReq, &status)
	}

	return d.fallback(req)
}

func (d *Dispatcher) runContinuation(ctx context.Context, req *command.Request, pending *continuation.Pending, status *string) *command.Response {
	handler, found := d.registry.Resolve(pending.Command)
	if !found {
		d.log.Warn("continuation points at unknown command",
			slog.Int64("user_id", req.User.ID),
			slog.String("command", pending.Command),
		)
		*status = "error"
		return d.failureResponse(ctx, req, apperr.NewNotFoundError("Command"))
	}

	invokeReq := *req
	invokeReq.Payload = req.Text
	invokeReq.Meta = pending.Context

	if raw, ok := pending.Context[chatIDContextKey]; ok {
		if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			invokeReq.Chat = command.Chat{ID: chatID}
		}
	}

	return d.invoke(ctx, handler, &invokeReq, status)
}

func (d *Dispatcher) invoke(ctx context.Context, handler command.Handler, req *command.Request, status *string) *command.Response {
	resp, err := handler(ctx, req)
	if err != nil {
		*status = "error"
		return d.failureResponse(ctx, req, err)
	}

	if resp == nil {
		// a handler may legitimately have nothing to say
		return nil
	}

	if resp.ChatID == 0 {
		resp.ChatID = req.Chat.ID
	}

	return resp
}

func (d *Dispatcher) failureResponse(ctx context.Context, req *command.Request, err error) *command.Response {
	userMsg := "Something went wrong. Please try again later."
	if d.errHandler != nil {
		if msg, _ := d.errHandler.Handle(ctx, err); msg != "" {
			userMsg = msg
		}
	} else {
		d.log.Error("handler failed", slog.Any("error", err))
	}

	return command.NewMessage(req.Chat.ID, userMsg)
}

func (d *Dispatcher) fallback(req *command.Request) *command.Response {
	names := d.registry.Names()

	if d.Fallback != nil {
		return d.Fallback(req, names)
	}

	listed := make([]string, len(names))
	for i, name := range names {
		listed[i] = command.Prefix + name
	}

	text := "Unknown command. Available commands:\n" + strings.Join(listed, "\n")
	return command.NewMessage(req.Chat.ID, text)
}
