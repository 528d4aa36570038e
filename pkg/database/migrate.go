package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// connErrorMarkers identify transient connection problems worth retrying.
var connErrorMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"dial tcp",
	"server closed the connection unexpectedly",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range connErrorMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RunMigrations applies every *.up.sql file in migrations in lexical order,
// each in its own transaction, recording applied versions in schema_migrations.
// Connection errors are retried; SQL errors abort immediately.
func RunMigrations(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	var err error
	for attempt := range connectAttempts {
		if err = migrateOnce(ctx, db, migrations, logger); err == nil || !isConnectionError(err) {
			return err
		}
		if attempt == connectAttempts-1 {
			break
		}
		wait := retryBackoff(attempt)
		logger.Warn("migration hit a connection error, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		if serr := sleepCtx(ctx, wait); serr != nil {
			return fmt.Errorf("run migrations: %w", serr)
		}
	}
	return fmt.Errorf("run migrations after %d attempts: %w", connectAttempts, err)
}

func migrateOnce(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	names, err := fs.Glob(migrations, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			logger.Debug("migration already applied", slog.String("version", name))
			continue
		}

		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		err = WithTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return fmt.Errorf("execute migration %s: %w", name, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
				return fmt.Errorf("record migration %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info("migration applied", slog.String("version", name))
	}

	return nil
}
