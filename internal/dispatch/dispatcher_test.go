package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDispatcher(registry *command.Registry, pending continuation.Table) *Dispatcher {
	log := testLogger()
	return New(registry, pending, apperr.NewHandler(log, false), log)
}

func request(userID, chatID int64, text string) *command.Request {
	return &command.Request{
		User: command.User{ID: userID},
		Chat: command.Chat{ID: chatID},
		Text: text,
	}
}

func TestDispatch_PrefixRouting(t *testing.T) {
	registry := command.NewRegistry()

	var gotPayload string
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		gotPayload = req.Payload
		return command.NewMessage(req.Chat.ID, "saved"), nil
	}, "save")

	d := newDispatcher(registry, continuation.NewMemoryTable())

	resp := d.Dispatch(context.Background(), request(1, 10, "/save hello"))

	require.NotNil(t, resp)
	assert.Equal(t, "saved", resp.Text)
	assert.Equal(t, "hello", gotPayload)
	assert.Equal(t, int64(10), resp.ChatID)
}

func TestDispatch_UnknownCommandFallsBack(t *testing.T) {
	registry := command.NewRegistry()
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		return nil, nil
	}, "save", "show")

	d := newDispatcher(registry, continuation.NewMemoryTable())

	resp := d.Dispatch(context.Background(), request(1, 10, "/unknowncmd"))

	require.NotNil(t, resp)
	assert.Contains(t, resp.Text, "/save")
	assert.Contains(t, resp.Text, "/show")
}

func TestDispatch_ContinuationTakesPriority(t *testing.T) {
	registry := command.NewRegistry()

	var codeInput string
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		codeInput = req.Payload
		return command.NewMessage(req.Chat.ID, "code: "+req.Meta["login_id"]), nil
	}, "code")
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		t.Fatal("prefix matching must not run when a continuation is pending")
		return nil, nil
	}, "save")

	pending := continuation.NewMemoryTable()
	require.NoError(t, pending.Set(context.Background(), 1, "code", map[string]string{"login_id": "abc"}))

	d := newDispatcher(registry, pending)

	// even text that looks like a command goes to the continuation target
	resp := d.Dispatch(context.Background(), request(1, 10, "/save 12345"))

	require.NotNil(t, resp)
	assert.Equal(t, "code: abc", resp.Text)
	assert.Equal(t, "/save 12345", codeInput)

	// the continuation was consumed; the next message dispatches normally
	resp = d.Dispatch(context.Background(), request(1, 10, "/unknowncmd"))
	require.NotNil(t, resp)
	assert.Contains(t, resp.Text, "Available commands")
}

func TestDispatch_ContinuationRestoresChat(t *testing.T) {
	registry := command.NewRegistry()
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		return command.NewMessage(req.Chat.ID, "ok"), nil
	}, "code")

	pending := continuation.NewMemoryTable()
	require.NoError(t, pending.Set(context.Background(), 1, "code", map[string]string{"chat_id": "777"}))

	d := newDispatcher(registry, pending)

	resp := d.Dispatch(context.Background(), request(1, 10, "12345"))

	require.NotNil(t, resp)
	assert.Equal(t, int64(777), resp.ChatID)
}

func TestDispatch_HandlerErrorBecomesResponse(t *testing.T) {
	registry := command.NewRegistry()
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		return nil, apperr.NewUserInputError("Usage: /save <name> <value>")
	}, "save")

	d := newDispatcher(registry, continuation.NewMemoryTable())

	resp := d.Dispatch(context.Background(), request(1, 10, "/save"))

	require.NotNil(t, resp)
	assert.Equal(t, "Usage: /save <name> <value>", resp.Text)
}

func TestDispatch_UnexpectedErrorStaysGeneric(t *testing.T) {
	registry := command.NewRegistry()
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		return nil, errors.New("pq: connection refused on 10.0.0.3")
	}, "save")

	d := newDispatcher(registry, continuation.NewMemoryTable())

	resp := d.Dispatch(context.Background(), request(1, 10, "/save x"))

	require.NotNil(t, resp)
	assert.NotContains(t, resp.Text, "10.0.0.3")
	assert.Contains(t, resp.Text, "Something went wrong")
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	registry := command.NewRegistry()
	registry.Register(func(ctx context.Context, req *command.Request) (*command.Response, error) {
		panic("boom")
	}, "save")

	d := newDispatcher(registry, continuation.NewMemoryTable())

	var resp *command.Response
	assert.NotPanics(t, func() {
		resp = d.Dispatch(context.Background(), request(1, 10, "/save x"))
	})

	require.NotNil(t, resp)
	assert.Contains(t, resp.Text, "Something went wrong")
}

func TestDispatch_EmptyTextDoesNotCrash(t *testing.T) {
	registry := command.NewRegistry()
	d := newDispatcher(registry, continuation.NewMemoryTable())

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), request(1, 10, ""))
	})
}

func TestDispatch_ContinuationForUnknownCommand(t *testing.T) {
	registry := command.NewRegistry()

	pending := continuation.NewMemoryTable()
	require.NoError(t, pending.Set(context.Background(), 1, "removedcmd", nil))

	d := newDispatcher(registry, pending)

	resp := d.Dispatch(context.Background(), request(1, 10, "anything"))

	require.NotNil(t, resp)
	assert.Contains(t, resp.Text, "not found")
}
