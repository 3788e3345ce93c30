// Package continuation tracks, per user, which command should receive the
// next inbound message as its input.
package continuation

import (
	"context"
	"errors"
	"time"
)

// ErrNoPending indicates no continuation is recorded for the user.
var ErrNoPending = errors.New("no pending continuation")

// Pending is the single continuation slot for one user. Setting a new one
// replaces any existing slot.
type Pending struct {
	UserID    int64             `json:"user_id"`
	Command   string            `json:"command"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Table stores at most one Pending per user.
type Table interface {
	// Set records the continuation, replacing any existing one for the user.
	Set(ctx context.Context, userID int64, command string, pendingCtx map[string]string) error
	// Take atomically removes and returns the continuation; two concurrent
	// calls for the same user yield it exactly once.
	Take(ctx context.Context, userID int64) (*Pending, error)
	// Peek returns the continuation without consuming it.
	Peek(ctx context.Context, userID int64) (*Pending, error)
	// Clear drops the continuation if present.
	Clear(ctx context.Context, userID int64) error
}
