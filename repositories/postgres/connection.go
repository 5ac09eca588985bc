package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rkbansal/postify/config"
	"go.uber.org/zap"
)

// schemaVersion is bumped whenever InitSchema changes
const schemaVersion = 1

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adapts an existing pool, e.g. one opened by sqlmock
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the users and posts tables if they are missing and
// records the schema version. It is safe to run repeatedly.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			google_id VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			picture TEXT NOT NULL DEFAULT '',
			preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
			total_generations INTEGER NOT NULL DEFAULT 0,
			last_generated_at TIMESTAMPTZ,
			last_login_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			article_url TEXT NOT NULL,
			article_title TEXT NOT NULL,
			article_site VARCHAR(255) NOT NULL DEFAULT '',
			article_author VARCHAR(255) NOT NULL DEFAULT '',
			summary TEXT NOT NULL,
			tone VARCHAR(32) NOT NULL,
			platforms JSONB NOT NULL,
			hashtags JSONB NOT NULL DEFAULT '[]'::jsonb,
			cta VARCHAR(100) NOT NULL DEFAULT '',
			generated_posts JSONB NOT NULL,
			model VARCHAR(255) NOT NULL,
			copied JSONB NOT NULL DEFAULT '[]'::jsonb,
			favorited BOOLEAN NOT NULL DEFAULT false,
			favorited_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_posts_user_id_created_at ON posts(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id_favorited ON posts(user_id) WHERE favorited;
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`,
		schemaVersion,
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	db.logger.Info("database schema initialized successfully", zap.Int("version", schemaVersion))
	return nil
}
