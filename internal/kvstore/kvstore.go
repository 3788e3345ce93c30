// Package kvstore provides the scoped key/value persistence surface used by
// command handlers.
package kvstore

import (
	"context"
	"errors"
)

// Scope namespaces keys so bot-wide and per-user values never collide.
type Scope string

const (
	ScopeBot  Scope = "bot"
	ScopeUser Scope = "user"
)

// ErrNotFound indicates the requested key has no value in the given scope.
var ErrNotFound = errors.New("key not found")

// Store defines scoped get/set/delete of string values. ownerID is ignored
// for the bot scope.
type Store interface {
	Get(ctx context.Context, scope Scope, ownerID int64, key string) (string, error)
	Set(ctx context.Context, scope Scope, ownerID int64, key, value string) error
	Delete(ctx context.Context, scope Scope, ownerID int64, key string) error
	// DeleteAll removes every key in the scope; for the user scope only the
	// owner's keys are affected.
	DeleteAll(ctx context.Context, scope Scope, ownerID int64) error
	// Keys lists the key names present in the scope.
	Keys(ctx context.Context, scope Scope, ownerID int64) ([]string, error)
}
