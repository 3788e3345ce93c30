package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relay-bot/internal/domain"
	"github.com/relaygate/relay-bot/internal/network"
	"github.com/relaygate/relay-bot/internal/network/networktest"
	"github.com/relaygate/relay-bot/internal/repository"
)

type memSessionRepo struct {
	mu       sync.Mutex
	seq      int64
	sessions []*domain.StoredSession
	touched  []int64
}

func (r *memSessionRepo) add(ownerID int64, phone, token string) *domain.StoredSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	s := &domain.StoredSession{
		ID:           r.seq,
		OwnerID:      ownerID,
		Phone:        phone,
		SessionToken: token,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		LastUsed:     time.Now().UTC(),
	}
	r.sessions = append(r.sessions, s)
	return s
}

func (r *memSessionRepo) isActive(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.ID == id {
			return s.IsActive
		}
	}
	return false
}

func (r *memSessionRepo) Save(_ context.Context, session *domain.StoredSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.OwnerID == session.OwnerID && s.Phone == session.Phone {
			s.IsActive = false
		}
	}

	r.seq++
	session.ID = r.seq
	session.IsActive = true
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *memSessionRepo) FindActive(_ context.Context, ownerID int64) ([]*domain.StoredSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.StoredSession
	for _, s := range r.sessions {
		if s.OwnerID == ownerID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) FindActiveByPhone(_ context.Context, ownerID int64, phone string) (*domain.StoredSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.OwnerID == ownerID && s.Phone == phone && s.IsActive {
			return s, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *memSessionRepo) Deactivate(_ context.Context, id, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.ID == id && s.OwnerID == ownerID && s.IsActive {
			s.IsActive = false
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (r *memSessionRepo) DeactivateAll(_ context.Context, ownerID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, s := range r.sessions {
		if s.OwnerID == ownerID && s.IsActive {
			s.IsActive = false
			count++
		}
	}
	return count, nil
}

func (r *memSessionRepo) Touch(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touched = append(r.touched, id)
	return nil
}

func (r *memSessionRepo) CountActive(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, s := range r.sessions {
		if s.IsActive {
			count++
		}
	}
	return count, nil
}

func TestManager_ListAccounts(t *testing.T) {
	repo := &memSessionRepo{}
	repo.add(42, "+15551234567", "tok-a")
	repo.add(42, "+15557654321", "tok-b")
	repo.add(99, "+15550000000", "tok-other")

	client := &networktest.FakeClient{
		Me: &network.Profile{ID: 1, FirstName: "Alice", LastName: "Smith", Username: "alice"},
	}
	dialer := &networktest.FakeDialer{Client: client}
	manager := NewManager(dialer, repo, nil)

	accounts, err := manager.ListAccounts(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "+15551234567", accounts[0].Phone)
	assert.Equal(t, "Alice Smith", accounts[0].DisplayName)
	assert.Equal(t, "alice", accounts[0].Username)
	assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, dialer.DialedTokens)
	assert.True(t, client.Balanced())
}

func TestManager_ListAccounts_DeactivatesDeadToken(t *testing.T) {
	repo := &memSessionRepo{}
	dead := repo.add(42, "+15551234567", "tok-dead")

	client := &networktest.FakeClient{ConnectErr: network.ErrSessionRevoked}
	manager := NewManager(&networktest.FakeDialer{Client: client}, repo, nil)

	accounts, err := manager.ListAccounts(context.Background(), 42)

	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.False(t, repo.isActive(dead.ID), "dead token must be deactivated as a side effect")
}

func TestManager_SendVia(t *testing.T) {
	repo := &memSessionRepo{}
	s := repo.add(42, "+15551234567", "tok-a")

	client := &networktest.FakeClient{}
	manager := NewManager(&networktest.FakeDialer{Client: client}, repo, nil)

	err := manager.SendVia(context.Background(), 42, "+15551234567", "bob", "hello")

	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, client.SentTo)
	assert.Equal(t, []int64{s.ID}, repo.touched)
	assert.True(t, client.Balanced())
}

func TestManager_SendVia_AccountNotFound(t *testing.T) {
	manager := NewManager(&networktest.FakeDialer{}, &memSessionRepo{}, nil)

	err := manager.SendVia(context.Background(), 42, "+15551234567", "bob", "hello")

	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestManager_SendVia_SendFailureStillDisconnects(t *testing.T) {
	repo := &memSessionRepo{}
	s := repo.add(42, "+15551234567", "tok-a")

	client := &networktest.FakeClient{SendErr: errors.New("peer unavailable")}
	manager := NewManager(&networktest.FakeDialer{Client: client}, repo, nil)

	err := manager.SendVia(context.Background(), 42, "+15551234567", "bob", "hello")

	require.Error(t, err)
	assert.True(t, client.Balanced(), "failed send must still release the connection")
	assert.True(t, repo.isActive(s.ID), "transient send failure must not deactivate the session")
}

func TestManager_SendVia_RevokedTokenDeactivates(t *testing.T) {
	repo := &memSessionRepo{}
	s := repo.add(42, "+15551234567", "tok-a")

	client := &networktest.FakeClient{SendErr: network.ErrSessionRevoked}
	manager := NewManager(&networktest.FakeDialer{Client: client}, repo, nil)

	err := manager.SendVia(context.Background(), 42, "+15551234567", "bob", "hello")

	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.False(t, repo.isActive(s.ID))
}

func TestManager_LogoutEverywhere(t *testing.T) {
	repo := &memSessionRepo{}
	s := repo.add(42, "+15551234567", "tok-a")

	client := &networktest.FakeClient{}
	manager := NewManager(&networktest.FakeDialer{Client: client}, repo, nil)

	err := manager.LogoutEverywhere(context.Background(), 42, "+15551234567")

	require.NoError(t, err)
	assert.True(t, client.LoggedOut)
	assert.False(t, repo.isActive(s.ID))
	assert.True(t, client.Balanced())
}

func TestManager_LogoutEverywhere_DeactivatesEvenWhenRemoteFails(t *testing.T) {
	repo := &memSessionRepo{}
	s := repo.add(42, "+15551234567", "tok-a")

	client := &networktest.FakeClient{LogOutErr: errors.New("network partition")}
	manager := NewManager(&networktest.FakeDialer{Client: client}, repo, nil)

	err := manager.LogoutEverywhere(context.Background(), 42, "+15551234567")

	require.Error(t, err)
	assert.False(t, repo.isActive(s.ID), "local deactivation must not depend on remote success")
	assert.True(t, client.Balanced())
}

func TestManager_LogoutEverywhere_AccountNotFound(t *testing.T) {
	manager := NewManager(&networktest.FakeDialer{}, &memSessionRepo{}, nil)

	err := manager.LogoutEverywhere(context.Background(), 42, "+15551234567")

	assert.ErrorIs(t, err, ErrAccountNotFound)
}
