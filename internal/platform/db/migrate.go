package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies pending schema migrations from sourceURL (e.g.
// file://migrations) against the database at dsn. A database already at
// the latest version is not an error.
func Migrate(sourceURL, dsn string) error {
	// migrate's pgx/v5 driver registers under its own scheme.
	dsn = strings.Replace(dsn, "postgres://", "pgx5://", 1)
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("platform/db: open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/db: apply migrations: %w", err)
	}
	return nil
}
