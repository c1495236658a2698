// Package db owns the pgvector schema: embedded migrations and the runner
// that applies them before the chunk store comes up.
package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx v5 driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema indicates a previous migration run died partway; the
// schema needs manual inspection before anything else touches it.
var ErrDirtySchema = errors.New("database schema is in a dirty migration state")

// Migrate applies any pending migrations to the database at connURL
// (postgres:// or postgresql:// form). golang-migrate tracks applied
// versions in its schema_migrations table, so repeated calls are cheap.
func Migrate(connURL string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	dbURL, err := convertToMigrateURL(connURL)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("connecting for migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("closing migration source", "error", srcErr)
		}
		if dbErr != nil {
			logger.Warn("closing migration connection", "error", dbErr)
		}
	}()

	// Refuse to run on top of a half-applied migration
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading migration version: %w", err)
	}
	if dirty {
		logger.Error("schema left dirty by an earlier run",
			"version", version,
			"hint", fmt.Sprintf("inspect the schema, then: migrate force %d", version))
		return fmt.Errorf("%w (version=%d)", ErrDirtySchema, version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("schema already current")
			return nil
		}
		if v, d, verr := m.Version(); verr == nil && d {
			logger.Error("migration failed partway",
				"version", v,
				"hint", fmt.Sprintf("fix the migration, then: migrate force %d", v))
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	if v, d, err := m.Version(); err == nil {
		logger.Info("schema migrated", "version", v, "dirty", d)
	}
	return nil
}

// convertToMigrateURL rewrites a postgres URL to the pgx5:// scheme the
// golang-migrate pgx v5 driver registers under.
func convertToMigrateURL(connURL string) (string, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return "", fmt.Errorf("parsing database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme %q (want postgres or postgresql)", u.Scheme)
	}
}
