// Package user resolves and upserts gateway user profiles.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/domain"
	"github.com/relaygate/relay-bot/internal/repository"
	"github.com/relaygate/relay-bot/internal/usercache"
)

const cacheTTL = 10 * time.Minute

type Service struct {
	repo  repository.UserRepository
	cache *usercache.Cache
	log   *slog.Logger
}

// NewService builds the user service. cache may be nil.
func NewService(repo repository.UserRepository, cache *usercache.Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, cache: cache, log: log}
}

// GetOrCreate returns the profile for the sender, creating it on first
// contact. Reads go through the cache; a cache failure falls through to
// postgres.
func (s *Service) GetOrCreate(ctx context.Context, from *command.User) (*domain.User, error) {
	if from == nil {
		return nil, errors.New("sender is nil")
	}

	if cached, err := s.cache.Get(ctx, from.ID); err == nil && cached != nil {
		return cached, nil
	}

	existing, err := s.repo.FindByTelegramID(ctx, from.ID)
	switch {
	case err == nil:
		_ = s.cache.Set(ctx, from.ID, existing, cacheTTL)
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		return s.register(ctx, from)
	default:
		s.log.Error("user lookup failed",
			slog.Int64("telegram_id", from.ID), slog.Any("error", err))
		return nil, fmt.Errorf("get user: %w", err)
	}
}

func (s *Service) register(ctx context.Context, from *command.User) (*domain.User, error) {
	now := time.Now().UTC()
	created := &domain.User{
		TelegramID:   from.ID,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		Username:     from.Username,
		Lang:         from.Lang,
		LastActiveAt: now,
		CreatedAt:    now,
	}

	if err := s.repo.Create(ctx, created); err != nil {
		s.log.Error("user create failed",
			slog.Int64("telegram_id", from.ID), slog.Any("error", err))
		return nil, fmt.Errorf("create user: %w", err)
	}

	_ = s.cache.Set(ctx, from.ID, created, cacheTTL)
	return created, nil
}

// UpdateLastActive bumps last_active_at and drops the cached profile so the
// next read sees the fresh row.
func (s *Service) UpdateLastActive(ctx context.Context, telegramID int64) error {
	if err := s.repo.UpdateLastActiveAt(ctx, telegramID); err != nil {
		s.log.Error("last_active update failed",
			slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		return err
	}
	_ = s.cache.Invalidate(ctx, telegramID)
	return nil
}
