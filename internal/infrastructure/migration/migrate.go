// Package migration applies the Postgres schema with golang-migrate.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"logibill/pkg/logger"
)

// Migrator runs schema migrations from a directory of SQL files.
type Migrator struct {
	m *migrate.Migrate
}

// DriverURL rewrites a postgres:// DSN to the pgx5:// scheme registered by the pgx driver.
func DriverURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// New creates a Migrator for the schema in migrationsPath.
func New(databaseURL, migrationsPath string) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsPath, DriverURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations.
func (mg *Migrator) Up(ctx context.Context) error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info(ctx, "no migrations to apply")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}
	return mg.logVersion(ctx, "migrations applied")
}

// Down rolls back all migrations.
func (mg *Migrator) Down(ctx context.Context) error {
	if err := mg.m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info(ctx, "no migrations to roll back")
			return nil
		}
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Info(ctx, "all migrations rolled back")
	return nil
}

// Steps applies n migrations; negative n rolls back.
func (mg *Migrator) Steps(ctx context.Context, n int) error {
	if err := mg.m.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return mg.logVersion(ctx, "migration steps applied")
}

// Force sets the recorded version without running migrations (clears a dirty state).
func (mg *Migrator) Force(ctx context.Context, version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	logger.Warn(ctx, "migration version forced", "version", version)
	return nil
}

// Version returns the current schema version.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) logVersion(ctx context.Context, msg string) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	logger.Info(ctx, msg, "version", v, "dirty", dirty)
	return nil
}
