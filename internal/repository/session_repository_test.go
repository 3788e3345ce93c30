package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relay-bot/internal/domain"
)

func newMockRepo(t *testing.T) (SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewSessionRepository(db, nil)
	return repo, mock, func() { db.Close() }
}

func TestSessionRepository_Save_DeactivatesPreviousActive(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	session := &domain.StoredSession{
		OwnerID:      42,
		Phone:        "+15551234567",
		SessionToken: "tok-abc",
		CreatedAt:    now,
		LastUsed:     now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stored_sessions").
		WithArgs(session.OwnerID, session.Phone).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO stored_sessions").
		WithArgs(session.OwnerID, session.Phone, session.SessionToken, session.CreatedAt, session.LastUsed).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), session)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), session.ID)
	assert.True(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Save_RollsBackOnInsertFailure(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	session := &domain.StoredSession{
		OwnerID:      42,
		Phone:        "+15551234567",
		SessionToken: "tok-abc",
		CreatedAt:    now,
		LastUsed:     now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stored_sessions").
		WithArgs(session.OwnerID, session.Phone).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO stored_sessions").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), session)

	assert.Error(t, err)
	assert.False(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FindActive(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "owner_id", "phone", "session_token", "is_active", "created_at", "last_used"}).
		AddRow(int64(1), int64(42), "+15551234567", "tok-a", true, now, now).
		AddRow(int64(2), int64(42), "+15557654321", "tok-b", true, now, now)

	mock.ExpectQuery("SELECT id, owner_id, phone, session_token").
		WithArgs(int64(42)).
		WillReturnRows(rows)

	sessions, err := repo.FindActive(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "+15551234567", sessions[0].Phone)
	assert.Equal(t, "tok-b", sessions[1].SessionToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FindActiveByPhone_NotFound(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, owner_id, phone, session_token").
		WithArgs(int64(42), "+15551234567").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByPhone(context.Background(), 42, "+15551234567")

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Deactivate(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "existing active session", affected: 1, wantErr: nil},
		{name: "already inactive or foreign session", affected: 0, wantErr: ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := newMockRepo(t)
			defer cleanup()

			mock.ExpectExec("UPDATE stored_sessions").
				WithArgs(int64(7), int64(42)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Deactivate(context.Background(), 7, 42)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSessionRepository_DeactivateAll(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE stored_sessions").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.DeactivateAll(context.Background(), 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_CountActive(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	count, err := repo.CountActive(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
