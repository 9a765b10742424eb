// Package migrations holds the schema for every SQL store and applies it
// with golang-migrate. The SQL files are embedded, so the binary does not
// depend on the working directory.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect selects the directory of migrations to apply
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Runner applies migrations to the database at URL. URL uses the
// golang-migrate schemes: postgres://... or sqlite3://<file>.
type Runner struct {
	URL     string
	Dialect Dialect
	Logger  *slog.Logger
}

// Up applies all pending migrations
func (r Runner) Up() error {
	return r.run("up", func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls back every migration
func (r Runner) Down() error {
	return r.run("down", func(m *migrate.Migrate) error { return m.Down() })
}

// Rollback rolls back the last applied migration
func (r Runner) Rollback() error {
	return r.run("rollback", func(m *migrate.Migrate) error { return m.Steps(-1) })
}

// Version returns the current schema version. ok is false on an empty database.
func (r Runner) Version() (version uint, dirty bool, ok bool, err error) {
	err = r.run("version", func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		ok = verr == nil
		return verr
	})
	return version, dirty, ok, err
}

func (r Runner) run(op string, fn func(*migrate.Migrate) error) error {
	m, err := r.open()
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			r.logger().Warn("error closing migration instance", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations %s: %w", op, err)
	}
	return nil
}

func (r Runner) open() (*migrate.Migrate, error) {
	switch r.Dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unknown migration dialect %q", r.Dialect)
	}

	src, err := iofs.New(files, string(r.Dialect))
	if err != nil {
		return nil, fmt.Errorf("error opening migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, r.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating migration instance: %w", err)
	}
	m.Log = &migrateLogger{logger: r.logger()}
	return m, nil
}

func (r Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// migrateLogger adapts slog to migrate.Logger
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...), "component", "migrate")
}

func (l *migrateLogger) Verbose() bool {
	return false
}
