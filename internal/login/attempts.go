package login

import (
	"hash/fnv"
	"sync"
	"time"
)

const attemptShards = 16

type attemptShard struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
}

// Table holds all in-flight login attempts, keyed by login id. Attempts are
// sharded so that operations for unrelated logins never contend on one lock;
// locks are held only for map mutation, never across network calls. A
// secondary index maps each user to their single active attempt.
type Table struct {
	shards [attemptShards]*attemptShard

	userMu sync.Mutex
	byUser map[int64]string
}

// NewTable creates an empty attempt table.
func NewTable() *Table {
	t := &Table{byUser: make(map[int64]string)}
	for i := range t.shards {
		t.shards[i] = &attemptShard{attempts: make(map[string]*Attempt)}
	}

	return t
}

// Put stores the attempt, replacing any existing attempt for the same user.
// The replaced attempt, if any, is returned so the caller can disconnect its
// client.
func (t *Table) Put(a *Attempt) *Attempt {
	replaced := t.detachUser(a.UserID)

	shard := t.shardFor(a.ID)
	shard.mu.Lock()
	shard.attempts[a.ID] = a
	shard.mu.Unlock()

	t.userMu.Lock()
	t.byUser[a.UserID] = a.ID
	t.userMu.Unlock()

	return replaced
}

// Get returns the attempt for the login id, if present.
func (t *Table) Get(loginID string) (*Attempt, bool) {
	shard := t.shardFor(loginID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	a, ok := shard.attempts[loginID]
	return a, ok
}

// Mutate applies fn to the attempt under the shard lock. It reports whether
// the attempt existed.
func (t *Table) Mutate(loginID string, fn func(*Attempt)) bool {
	shard := t.shardFor(loginID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	a, ok := shard.attempts[loginID]
	if !ok {
		return false
	}

	fn(a)
	return true
}

// Remove deletes the attempt and returns it, if present.
func (t *Table) Remove(loginID string) (*Attempt, bool) {
	shard := t.shardFor(loginID)
	shard.mu.Lock()
	a, ok := shard.attempts[loginID]
	delete(shard.attempts, loginID)
	shard.mu.Unlock()

	if !ok {
		return nil, false
	}

	t.userMu.Lock()
	if t.byUser[a.UserID] == loginID {
		delete(t.byUser, a.UserID)
	}
	t.userMu.Unlock()

	return a, true
}

// GetByUser returns the user's active attempt, if present.
func (t *Table) GetByUser(userID int64) (*Attempt, bool) {
	t.userMu.Lock()
	loginID, ok := t.byUser[userID]
	t.userMu.Unlock()

	if !ok {
		return nil, false
	}

	return t.Get(loginID)
}

// RemoveByUser deletes the user's active attempt and returns it, if present.
func (t *Table) RemoveByUser(userID int64) (*Attempt, bool) {
	if a := t.detachUser(userID); a != nil {
		return a, true
	}

	return nil, false
}

// Expired removes and returns all attempts older than maxAge. The caller is
// responsible for disconnecting the returned attempts' clients.
func (t *Table) Expired(maxAge time.Duration) []*Attempt {
	cutoff := time.Now().Add(-maxAge)

	var expired []*Attempt
	for _, shard := range t.shards {
		shard.mu.Lock()
		for id, a := range shard.attempts {
			if a.CreatedAt.Before(cutoff) {
				delete(shard.attempts, id)
				expired = append(expired, a)
			}
		}
		shard.mu.Unlock()
	}

	t.userMu.Lock()
	for _, a := range expired {
		if t.byUser[a.UserID] == a.ID {
			delete(t.byUser, a.UserID)
		}
	}
	t.userMu.Unlock()

	return expired
}

// Len returns the number of in-flight attempts.
func (t *Table) Len() int {
	total := 0
	for _, shard := range t.shards {
		shard.mu.Lock()
		total += len(shard.attempts)
		shard.mu.Unlock()
	}

	return total
}

func (t *Table) detachUser(userID int64) *Attempt {
	t.userMu.Lock()
	loginID, ok := t.byUser[userID]
	if ok {
		delete(t.byUser, userID)
	}
	t.userMu.Unlock()

	if !ok {
		return nil
	}

	shard := t.shardFor(loginID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	a, ok := shard.attempts[loginID]
	if !ok {
		return nil
	}

	delete(shard.attempts, loginID)
	return a
}

func (t *Table) shardFor(loginID string) *attemptShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(loginID))

	return t.shards[h.Sum32()%attemptShards]
}
