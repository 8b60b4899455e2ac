package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
)

// migrationLockKey serializes migrations across replicas starting together.
const migrationLockKey int64 = 7_301_120_509

var connectionErrorPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError reports whether err looks like a transient connection
// problem rather than a SQL error.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return slices.ContainsFunc(connectionErrorPatterns, func(p string) bool {
		return strings.Contains(msg, p)
	})
}

// RunMigrations applies the *.up.sql files at the root of migrations in name
// order and records each in schema_migrations. Every file runs in its own
// transaction together with its version row. Connection errors are retried
// (see Retry). SQL errors are returned immediately.
func RunMigrations(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	return Retry(ctx, "run migrations", logger, func(ctx context.Context) error {
		err := migrate(ctx, db, migrations, logger)
		if err != nil && !isConnectionError(err) {
			return Permanent(err)
		}
		return err
	})
}

func migrate(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	names, err := fs.Glob(migrations, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)

	applied := 0
	for _, name := range names {
		ok, err := applyMigration(ctx, db, migrations, name)
		if err != nil {
			return err
		}
		if ok {
			applied++
			logger.Info("migration applied", slog.String("version", name))
		}
	}
	logger.Debug("migrations up to date", slog.Int("applied", applied), slog.Int("total", len(names)))
	return nil
}

// applyMigration runs one file unless its version is already recorded. The
// check happens under an advisory lock inside the migration's transaction.
func applyMigration(ctx context.Context, db DBTX, migrations fs.FS, name string) (bool, error) {
	content, err := fs.ReadFile(migrations, name)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx for migration %s: %w", name, err)
	}
	fail := func(format string, err error) (bool, error) {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf(format, name, err)
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return fail("lock for migration %s: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name).Scan(&exists); err != nil {
		return fail("check migration %s: %w", err)
	}
	if exists {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fail("execute migration %s: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		return fail("record migration %s: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}
