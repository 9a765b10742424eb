package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/migrations"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = &dialect{
	name:     "sqlite",
	classify: classifySQLite,
	// mattn/go-sqlite3 ignores isolation levels; _txlock=immediate takes the
	// write lock at BEGIN instead
	txOptions: func(TxOptions) *sql.TxOptions { return nil },
}

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	sqlStore
	dbPath string
	logger *slog.Logger
}

// NewSQLiteRepository creates a new SQLite repository instance. An empty
// dbPath selects config.DefaultSQLitePath.
func NewSQLiteRepository(dbPath string, logger *slog.Logger) *SQLiteRepository {
	if dbPath == "" {
		dbPath = config.DefaultSQLitePath()
	}
	return &SQLiteRepository{
		sqlStore: sqlStore{dialect: sqliteDialect},
		dbPath:   dbPath,
		logger:   logger,
	}
}

// dsn enables foreign keys, waits on a locked database instead of failing
// at once, and starts every transaction as a writer.
func (r *SQLiteRepository) dsn() string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	q.Set("_txlock", "immediate")
	return "file:" + r.dbPath + "?" + q.Encode()
}

// Initialize creates the database file if needed and applies pending migrations
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	if dir := filepath.Dir(r.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating data directory: %w", err)
		}
	}

	runner := migrations.Runner{URL: "sqlite3://" + r.dbPath, Dialect: migrations.SQLite, Logger: r.logger}
	if err := runner.Up(); err != nil {
		return fmt.Errorf("error running migrations: %w", err)
	}

	db, err := sql.Open("sqlite3", r.dsn())
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	// one writer at a time; a second connection would only wait on the file lock
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", classifySQLite(err))
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *SQLiteRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
