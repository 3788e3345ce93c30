// Package session manages stored network account sessions for bot users:
// listing accounts, sending messages through them and logging them out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/domain"
	"github.com/relaygate/relay-bot/internal/network"
	"github.com/relaygate/relay-bot/internal/repository"
	"github.com/relaygate/relay-bot/pkg/metrics"
)

// ErrAccountNotFound is returned when the user has no active session for the
// requested phone number.
var ErrAccountNotFound = errors.New("account not found")

// AccountSummary describes one connected account.
type AccountSummary struct {
	Phone       string
	DisplayName string
	Username    string
}

// Manager reconnects stored sessions on demand. Every reconnection is
// short-lived: dial, act, disconnect.
type Manager struct {
	dialer   network.Dialer
	sessions repository.SessionRepository
	log      *slog.Logger
}

// NewManager constructs an account session manager.
func NewManager(dialer network.Dialer, sessions repository.SessionRepository, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		dialer:   dialer,
		sessions: sessions,
		log:      log,
	}
}

// ListAccounts reconnects every active stored session of the owner and
// collects its profile. A session whose token no longer works is deactivated
// as a side effect and omitted from the result, so stale tokens heal
// themselves out of the account list.
func (m *Manager) ListAccounts(ctx context.Context, ownerID int64) ([]AccountSummary, error) {
	stored, err := m.sessions.FindActive(ctx, ownerID)
	if err != nil {
		return nil, apperr.NewDatabaseError(fmt.Errorf("list sessions: %w", err))
	}

	summaries := make([]AccountSummary, 0, len(stored))
	for _, s := range stored {
		profile, err := m.withSession(ctx, s, func(client network.Client) (*network.Profile, error) {
			return client.GetMe(ctx)
		})
		if err != nil {
			m.deactivateStale(ctx, s, err)
			continue
		}

		summaries = append(summaries, AccountSummary{
			Phone:       s.Phone,
			DisplayName: profile.DisplayName(),
			Username:    profile.Username,
		})
	}

	return summaries, nil
}

// SendVia sends a message to target through the owner's account identified by
// phone. The connection is released even when the send fails.
func (m *Manager) SendVia(ctx context.Context, ownerID int64, phone, target, message string) error {
	s, err := m.sessions.FindActiveByPhone(ctx, ownerID, phone)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrAccountNotFound
		}
		return apperr.NewDatabaseError(fmt.Errorf("find session: %w", err))
	}

	// Timeouts and flood waits are retried with backoff; everything else
	// fails the send on the first attempt.
	sendOnce := func() error {
		_, sendErr := m.withSession(ctx, s, func(client network.Client) (*network.Profile, error) {
			return nil, client.SendMessage(ctx, target, message)
		})
		if sendErr == nil {
			return nil
		}

		var flood *network.FloodWaitError
		if errors.Is(sendErr, network.ErrTimeout) || errors.As(sendErr, &flood) {
			return apperr.NewNetworkError("messaging network", sendErr)
		}
		return sendErr
	}

	if err := apperr.WithRetry(ctx, sendOnce); err != nil {
		if errors.Is(err, network.ErrSessionRevoked) {
			m.deactivateStale(ctx, s, err)
			return ErrAccountNotFound
		}
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.NewNetworkError("messaging network", err)
	}

	if touchErr := m.sessions.Touch(ctx, s.ID); touchErr != nil {
		m.log.Warn("failed to update session last used",
			slog.Int64("session_id", s.ID),
			slog.Any("error", touchErr),
		)
	}

	return nil
}

// LogoutEverywhere terminates the account on all devices and deactivates the
// stored session. Deactivation is unconditional: even when the remote logout
// call fails the local record is retired, only the returned error differs.
func (m *Manager) LogoutEverywhere(ctx context.Context, ownerID int64, phone string) error {
	s, err := m.sessions.FindActiveByPhone(ctx, ownerID, phone)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrAccountNotFound
		}
		return apperr.NewDatabaseError(fmt.Errorf("find session: %w", err))
	}

	_, remoteErr := m.withSession(ctx, s, func(client network.Client) (*network.Profile, error) {
		return nil, client.LogOut(ctx)
	})

	if err := m.sessions.Deactivate(ctx, s.ID, ownerID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		m.log.Error("failed to deactivate session after logout",
			slog.Int64("session_id", s.ID),
			slog.Any("error", err),
		)
		return apperr.NewDatabaseError(fmt.Errorf("deactivate session: %w", err))
	}

	if remoteErr != nil {
		m.log.Warn("remote logout failed, session deactivated locally",
			slog.Int64("session_id", s.ID),
			slog.Any("error", remoteErr),
		)
		return apperr.NewNetworkError("messaging network", remoteErr)
	}

	return nil
}

// CountActive reports the number of active stored sessions across all users
// and refreshes the corresponding gauge.
func (m *Manager) CountActive(ctx context.Context) (int64, error) {
	count, err := m.sessions.CountActive(ctx)
	if err != nil {
		return 0, err
	}

	metrics.SetActiveSessions(int(count))
	return count, nil
}

// withSession dials the stored token, runs fn and always disconnects.
func (m *Manager) withSession(ctx context.Context, s *domain.StoredSession, fn func(network.Client) (*network.Profile, error)) (*network.Profile, error) {
	client, err := m.dialer.DialSession(ctx, s.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("dial session: %w", err)
	}

	defer func() {
		if err := client.Disconnect(); err != nil {
			m.log.Warn("failed to disconnect session client",
				slog.Int64("session_id", s.ID),
				slog.Any("error", err),
			)
		}
	}()

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect session: %w", err)
	}

	return fn(client)
}

func (m *Manager) deactivateStale(ctx context.Context, s *domain.StoredSession, cause error) {
	m.log.Warn("stored session no longer usable, deactivating",
		slog.Int64("session_id", s.ID),
		slog.Int64("owner_id", s.OwnerID),
		slog.Any("error", cause),
	)

	if err := m.sessions.Deactivate(ctx, s.ID, s.OwnerID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		m.log.Error("failed to deactivate stale session",
			slog.Int64("session_id", s.ID),
			slog.Any("error", err),
		)
	}
}
