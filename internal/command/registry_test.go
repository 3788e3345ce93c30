package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(tag string) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		return NewMessage(req.Chat.ID, tag), nil
	}
}

func TestRegistry_AliasesShareHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(noopHandler("save"), "save", "set")

	saveHandler, ok := r.Resolve("save")
	require.True(t, ok)
	setHandler, ok := r.Resolve("set")
	require.True(t, ok)

	resp, err := saveHandler(context.Background(), &Request{Chat: Chat{ID: 1}})
	require.NoError(t, err)
	respAlias, err := setHandler(context.Background(), &Request{Chat: Chat{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, resp.Text, respAlias.Text)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(noopHandler("first"), "show")
	r.Register(noopHandler("second"), "show")

	h, ok := r.Resolve("show")
	require.True(t, ok)

	resp, err := h(context.Background(), &Request{Chat: Chat{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)
}

func TestRegistry_Match(t *testing.T) {
	r := NewRegistry()
	r.Register(noopHandler("show"), "show")
	r.Register(noopHandler("showall"), "showall")
	r.Register(noopHandler("save"), "save")

	testCases := []struct {
		name        string
		text        string
		wantName    string
		wantPayload string
		wantOK      bool
	}{
		{name: "simple command with payload", text: "/save hello", wantName: "save", wantPayload: "hello", wantOK: true},
		{name: "bare command", text: "/show", wantName: "show", wantPayload: "", wantOK: true},
		{name: "longest prefix wins", text: "/showall x", wantName: "showall", wantPayload: "x", wantOK: true},
		{name: "no false prefix match", text: "/showalley", wantOK: false},
		{name: "unknown command", text: "/unknowncmd", wantOK: false},
		{name: "not a command", text: "hello", wantOK: false},
		{name: "empty text", text: "", wantOK: false},
		{name: "payload trimmed", text: "/save   spaced out  ", wantName: "save", wantPayload: "spaced out", wantOK: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			name, payload, ok := r.Match(tc.text)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantName, name)
				assert.Equal(t, tc.wantPayload, payload)
			}
		})
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(noopHandler("x"), "show", "del", "save")

	assert.Equal(t, []string{"del", "save", "show"}, r.Names())
}
