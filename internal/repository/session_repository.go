package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaygate/relay-bot/internal/domain"
)

// ErrSessionNotFound is returned when no matching active session exists.
var ErrSessionNotFound = errors.New("stored session not found")

// SessionRepository defines persistence operations for stored network sessions.
type SessionRepository interface {
	// Save stores a freshly authorized session. Any previously active
	// session for the same owner and phone is deactivated first, so at
	// most one active row exists per (owner, phone) pair.
	Save(ctx context.Context, session *domain.StoredSession) error
	FindActive(ctx context.Context, ownerID int64) ([]*domain.StoredSession, error)
	FindActiveByPhone(ctx context.Context, ownerID int64, phone string) (*domain.StoredSession, error)
	Deactivate(ctx context.Context, id, ownerID int64) error
	DeactivateAll(ctx context.Context, ownerID int64) (int64, error)
	Touch(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSessionRepository creates a new SQL-backed session repository.
func NewSessionRepository(db *sql.DB, log *slog.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log,
	}
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.StoredSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deactivate = `
		UPDATE stored_sessions
		SET is_active = FALSE
		WHERE owner_id = $1 AND phone = $2 AND is_active = TRUE
	`
	if _, err := tx.ExecContext(ctx, deactivate, session.OwnerID, session.Phone); err != nil {
		if r.log != nil {
			r.log.Error("failed to deactivate previous session", slog.Int64("owner_id", session.OwnerID), slog.Any("error", err))
		}
		return fmt.Errorf("deactivate previous session: %w", err)
	}

	const insert = `
		INSERT INTO stored_sessions (owner_id, phone, session_token, is_active, created_at, last_used)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING id
	`
	if err := tx.QueryRowContext(
		ctx,
		insert,
		session.OwnerID,
		session.Phone,
		session.SessionToken,
		session.CreatedAt,
		session.LastUsed,
	).Scan(&session.ID); err != nil {
		if r.log != nil {
			r.log.Error("failed to insert session", slog.Int64("owner_id", session.OwnerID), slog.Any("error", err))
		}
		return fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save session: %w", err)
	}

	session.IsActive = true
	return nil
}

func (r *sessionRepository) FindActive(ctx context.Context, ownerID int64) ([]*domain.StoredSession, error) {
	const query = `
		SELECT id, owner_id, phone, session_token, is_active, created_at, last_used
		FROM stored_sessions
		WHERE owner_id = $1 AND is_active = TRUE
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list active sessions", slog.Int64("owner_id", ownerID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.StoredSession
	for rows.Next() {
		var s domain.StoredSession
		if err := rows.Scan(
			&s.ID,
			&s.OwnerID,
			&s.Phone,
			&s.SessionToken,
			&s.IsActive,
			&s.CreatedAt,
			&s.LastUsed,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *sessionRepository) FindActiveByPhone(ctx context.Context, ownerID int64, phone string) (*domain.StoredSession, error) {
	const query = `
		SELECT id, owner_id, phone, session_token, is_active, created_at, last_used
		FROM stored_sessions
		WHERE owner_id = $1 AND phone = $2 AND is_active = TRUE
	`

	row := r.db.QueryRowContext(ctx, query, ownerID, phone)

	var s domain.StoredSession
	if err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Phone,
		&s.SessionToken,
		&s.IsActive,
		&s.CreatedAt,
		&s.LastUsed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		if r.log != nil {
			r.log.Error("failed to fetch session by phone", slog.Int64("owner_id", ownerID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select session by phone: %w", err)
	}

	return &s, nil
}

func (r *sessionRepository) Deactivate(ctx context.Context, id, ownerID int64) error {
	const query = `
		UPDATE stored_sessions
		SET is_active = FALSE
		WHERE id = $1 AND owner_id = $2 AND is_active = TRUE
	`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to deactivate session", slog.Int64("session_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("deactivate session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate session rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (r *sessionRepository) DeactivateAll(ctx context.Context, ownerID int64) (int64, error) {
	const query = `
		UPDATE stored_sessions
		SET is_active = FALSE
		WHERE owner_id = $1 AND is_active = TRUE
	`

	res, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to deactivate all sessions", slog.Int64("owner_id", ownerID), slog.Any("error", err))
		}
		return 0, fmt.Errorf("deactivate all sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate all rows affected: %w", err)
	}

	return affected, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id int64) error {
	const query = `
		UPDATE stored_sessions
		SET last_used = $2
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		if r.log != nil {
			r.log.Error("failed to touch session", slog.Int64("session_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("touch session: %w", err)
	}

	return nil
}

func (r *sessionRepository) CountActive(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM stored_sessions WHERE is_active = TRUE`

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}

	return count, nil
}
