package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/bot/keyboard"
	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/kvstore"
)

const kvKeyMeta = "kv_key"

// KVHandlers bundles the note commands backed by the user-scoped store.
type KVHandlers struct {
	store   kvstore.Store
	pending continuation.Table
	kb      *keyboard.Builder
	i18n    *i18n.Manager
}

// NewKVHandlers constructs the note command handlers.
func NewKVHandlers(store kvstore.Store, pending continuation.Table, kb *keyboard.Builder, m *i18n.Manager) *KVHandlers {
	return &KVHandlers{store: store, pending: pending, kb: kb, i18n: m}
}

// Save stores a note. `/save key value` stores immediately; `/save key`
// records a continuation so the next message becomes the value.
func (h *KVHandlers) Save(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	// Continuation round: the previous turn captured the key.
	if key := req.Meta[kvKeyMeta]; key != "" {
		value := strings.TrimSpace(req.Payload)
		if value == "" {
			return nil, apperr.NewUserInputError(text(t, "kv.value_empty", "The value cannot be empty. Start again with /save."))
		}
		if isCommand(value) {
			return command.NewMessage(req.Chat.ID, text(t, "kv.save_aborted", "Save cancelled.")), nil
		}

		return h.saveValue(ctx, req, t, key, value)
	}

	key, value, hasValue := strings.Cut(strings.TrimSpace(req.Payload), " ")
	if key == "" {
		return nil, apperr.NewUserInputError(text(t, "kv.save_usage", "Usage: /save <key> [value]"))
	}

	if hasValue {
		return h.saveValue(ctx, req, t, key, strings.TrimSpace(value))
	}

	err := h.pending.Set(ctx, req.User.ID, "save", map[string]string{
		kvKeyMeta: key,
		"chat_id": strconv.FormatInt(req.Chat.ID, 10),
	})
	if err != nil {
		return nil, apperr.NewInternalError(fmt.Errorf("set continuation: %w", err))
	}

	resp := command.NewMessage(req.Chat.ID, fmt.Sprintf(
		text(t, "kv.save_prompt", "Send the value for %q as your next message."), key,
	))
	resp.Keyboard = h.kb.CancelButton(t)
	return resp, nil
}

// Show renders the note stored under the given key.
func (h *KVHandlers) Show(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	key := strings.TrimSpace(req.Payload)
	if key == "" {
		return nil, apperr.NewUserInputError(text(t, "kv.show_usage", "Usage: /show <key>"))
	}

	value, err := h.store.Get(ctx, kvstore.ScopeUser, req.User.ID, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperr.NewNotFoundError(text(t, "kv.note", "Note"))
		}
		return nil, apperr.NewInternalError(fmt.Errorf("get note: %w", err))
	}

	return command.NewMarkdown(req.Chat.ID, fmt.Sprintf("*%s*: %s", EscapeMarkdown(key), EscapeMarkdown(value))), nil
}

// One screen of the /showall listing.
const notesPageSize = 10

// ShowAll lists the keys of stored notes, one page at a time. The payload
// optionally carries the page number; the pager buttons route back here
// through the notes callback action.
func (h *KVHandlers) ShowAll(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	keys, err := h.store.Keys(ctx, kvstore.ScopeUser, req.User.ID)
	if err != nil {
		return nil, apperr.NewInternalError(fmt.Errorf("list notes: %w", err))
	}

	if len(keys) == 0 {
		return command.NewMessage(req.Chat.ID, text(t, "kv.empty", "You have no saved notes.")), nil
	}
	sort.Strings(keys)

	totalPages := (len(keys) + notesPageSize - 1) / notesPageSize
	page := 1
	if n, err := strconv.Atoi(strings.TrimSpace(req.Payload)); err == nil && n > 0 {
		page = n
	}
	if page > totalPages {
		page = totalPages
	}

	first := (page - 1) * notesPageSize
	last := first + notesPageSize
	if last > len(keys) {
		last = len(keys)
	}

	var sb strings.Builder
	sb.WriteString(text(t, "kv.keys_header", "Your notes:"))
	for _, key := range keys[first:last] {
		sb.WriteString("\n- " + key)
	}

	resp := command.NewMessage(req.Chat.ID, sb.String())
	if totalPages > 1 {
		resp.Keyboard = command.Keyboard{keyboard.PaginationButtons(t, keyboard.ActionNotesPage, page, totalPages)}
	}
	return resp, nil
}

// Delete removes one note by key.
func (h *KVHandlers) Delete(ctx context.Context, req *command.Request) (*command.Response, error) {
	t := translator(h.i18n, req)

	key := strings.TrimSpace(req.Payload)
	if key == "" {
		return nil, apperr.NewUserInputError(text(t, "kv.del_usage", "Usage: /del <key>"))
	}

	if err := h.store.Delete(ctx, kvstore.ScopeUser, req.User.ID, key); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, apperr.NewNotFoundError(text(t, "kv.note", "Note"))
		}
		return nil, apperr.NewInternalError(fmt.Errorf("delete note: %w", err))
	}

	return command.NewMessage(req.Chat.ID, fmt.Sprintf(text(t, "kv.deleted", "Note %q deleted."), key)), nil
}

func (h *KVHandlers) saveValue(ctx context.Context, req *command.Request, t i18n.Translator, key, value string) (*command.Response, error) {
	if err := h.store.Set(ctx, kvstore.ScopeUser, req.User.ID, key, value); err != nil {
		return nil, apperr.NewInternalError(fmt.Errorf("save note: %w", err))
	}

	return command.NewMessage(req.Chat.ID, fmt.Sprintf(text(t, "kv.saved", "Saved %q."), key)), nil
}
