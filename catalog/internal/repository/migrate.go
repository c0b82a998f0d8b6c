package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/nevc-media/vidstream/common/database"
)

// Migrate applies all pending up-migrations from sourceURL. It returns the
// resulting schema version. A run cut short by ctx stops after the current
// migration.
func Migrate(ctx context.Context, sourceURL, connString string) (uint, error) {
	m, err := migrate.New(sourceURL, connString)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("failed to close migrator", slog.Any("source_error", srcErr), slog.Any("database_error", dbErr))
		}
	}()

	ctx, cancel := database.MigrateContext(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Up() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		m.GracefulStop <- true
		err = <-done
		if err == nil {
			err = ctx.Err()
		}
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
