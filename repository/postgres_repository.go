package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/migrations"

	_ "github.com/lib/pq"
)

var postgresDialect = &dialect{
	name:      "postgres",
	numbered:  true,
	forUpdate: " FOR UPDATE",
	classify:  classifyPostgres,
	txOptions: func(opts TxOptions) *sql.TxOptions {
		if opts.ReadOnly {
			return &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
		}
		// overlapping subtree rewrites must not both commit
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	},
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	sqlStore
	config *config.DatabaseConfig
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(cfg *config.DatabaseConfig, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		sqlStore: sqlStore{dialect: postgresDialect},
		config:   cfg,
		logger:   logger,
	}
}

// Initialize connects to PostgreSQL and applies pending migrations
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", r.config.DSN())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", classifyPostgres(err))
	}

	runner := migrations.Runner{URL: r.config.URL(), Dialect: migrations.Postgres, Logger: r.logger}
	if err := runner.Up(); err != nil {
		db.Close()
		return fmt.Errorf("error running migrations: %w", err)
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
