package continuation

import (
	"context"
	"sync"
	"time"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	pending map[int64]*Pending
}

// MemoryTable is an in-process Table sharded by user id, so operations on
// different users do not contend on a single lock.
type MemoryTable struct {
	shards [shardCount]*shard
}

// NewMemoryTable builds an empty MemoryTable.
func NewMemoryTable() *MemoryTable {
	t := &MemoryTable{}
	for i := range t.shards {
		t.shards[i] = &shard{pending: make(map[int64]*Pending)}
	}

	return t
}

var _ Table = (*MemoryTable)(nil)

// Set records the continuation, replacing any existing one for the user.
func (t *MemoryTable) Set(ctx context.Context, userID int64, command string, pendingCtx map[string]string) error {
	s := t.shardFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[userID] = &Pending{
		UserID:    userID,
		Command:   command,
		Context:   pendingCtx,
		CreatedAt: time.Now().UTC(),
	}

	return nil
}

// Take atomically removes and returns the user's continuation.
func (t *MemoryTable) Take(ctx context.Context, userID int64) (*Pending, error) {
	s := t.shardFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[userID]
	if !ok {
		return nil, ErrNoPending
	}

	delete(s.pending, userID)
	return p, nil
}

// Peek returns the continuation without consuming it.
func (t *MemoryTable) Peek(ctx context.Context, userID int64) (*Pending, error) {
	s := t.shardFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[userID]
	if !ok {
		return nil, ErrNoPending
	}

	copied := *p
	return &copied, nil
}

// Clear drops the continuation if present.
func (t *MemoryTable) Clear(ctx context.Context, userID int64) error {
	s := t.shardFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, userID)
	return nil
}

// Sweep removes continuations older than maxAge and returns how many were
// dropped. No TTL is enforced on the hot path; this supports a periodic
// staleness policy.
func (t *MemoryTable) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0

	for _, s := range t.shards {
		s.mu.Lock()
		for userID, p := range s.pending {
			if p.CreatedAt.Before(cutoff) {
				delete(s.pending, userID)
				removed++
			}
		}
		s.mu.Unlock()
	}

	return removed
}

func (t *MemoryTable) shardFor(userID int64) *shard {
	idx := userID % shardCount
	if idx < 0 {
		idx = -idx
	}

	return t.shards[idx]
}
