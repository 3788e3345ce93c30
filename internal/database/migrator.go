// Package database applies schema migrations at startup.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migrator runs plain *.up.sql files in lexical order, one transaction per
// file. Down migrations are an operational concern and are not read.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{db: db, log: log}
}

// ApplyDir executes every *.up.sql file under dir in lexical order.
func (m *Migrator) ApplyDir(ctx context.Context, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("scan migrations dir %q: %w", dir, err)
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		return fmt.Errorf("migrations dir %q: %w", dir, statErr)
	}

	log := m.log.With(slog.String("dir", dir))
	if len(files) == 0 {
		log.Info("no migrations to apply")
		return nil
	}
	sort.Strings(files)

	for _, path := range files {
		log.Info("applying migration", slog.String("file", filepath.Base(path)))
		if err := m.apply(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, path string) error {
	// #nosec G304: migration paths come from deployment config
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", path, err)
	}

	script := strings.TrimSpace(string(raw))
	if script == "" {
		m.log.Warn("skipping empty migration", slog.String("file", filepath.Base(path)))
		return nil
	}

	return m.inTx(ctx, path, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, script)
		return execErr
	})
}

func (m *Migrator) inTx(ctx context.Context, path string, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %q: %w", path, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.log.Error("migration rollback failed", "error", rbErr)
		}
		return fmt.Errorf("execute migration %q: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", path, err)
	}
	return nil
}
