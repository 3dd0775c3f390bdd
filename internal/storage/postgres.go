package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vaidashi/getmethis-dashboard/internal/config"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// Postgres persists client storage in a table partitioned by profile, so
// several dashboard instances (the analogue of browser profiles) can share
// one database without seeing each other's keys.
type Postgres struct {
	db      *sqlx.DB
	profile string
	logger  logger.Logger
}

// NewPostgres connects to the database and runs the storage migration
func NewPostgres(cfg *config.Config, logger logger.Logger) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to storage database", "host", cfg.DB.Host, "database", cfg.DB.Name, "profile", cfg.StorageProfile)

	p := NewPostgresWithDB(db, cfg.StorageProfile, logger)

	if err := p.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	return p, nil
}

// NewPostgresWithDB wraps an existing connection
func NewPostgresWithDB(db *sqlx.DB, profile string, logger logger.Logger) *Postgres {
	return &Postgres{
		db:      db,
		profile: profile,
		logger:  logger,
	}
}

// RunMigrations creates the storage table
func (p *Postgres) RunMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS client_storage (
		profile VARCHAR(100) NOT NULL,
		key VARCHAR(100) NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (profile, key)
	);
	`

	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	p.logger.Info("Storage migrations completed successfully")
	return nil
}

// Ping checks the database connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM client_storage WHERE profile = $1 AND key = $2`

	var value string
	err := p.db.GetContext(ctx, &value, query, p.profile, key)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		p.logger.Error("Failed to read storage key", "error", err, "key", key)
		return "", fmt.Errorf("read %s: %w", key, err)
	}

	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO client_storage (profile, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := p.db.ExecContext(ctx, query, p.profile, key, value); err != nil {
		p.logger.Error("Failed to write storage key", "error", err, "key", key)
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	query := `DELETE FROM client_storage WHERE profile = $1 AND key = $2`

	if _, err := p.db.ExecContext(ctx, query, p.profile, key); err != nil {
		p.logger.Error("Failed to remove storage key", "error", err, "key", key)
		return fmt.Errorf("remove %s: %w", key, err)
	}

	return nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	query := `DELETE FROM client_storage WHERE profile = $1`

	result, err := p.db.ExecContext(ctx, query, p.profile)

	if err != nil {
		p.logger.Error("Failed to clear storage", "error", err, "profile", p.profile)
		return fmt.Errorf("clear storage: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil {
		p.logger.Debug("Storage cleared", "profile", p.profile, "keys", n)
	}

	return nil
}

func (p *Postgres) Keys(ctx context.Context) ([]string, error) {
	query := `SELECT key FROM client_storage WHERE profile = $1 ORDER BY key`

	var keys []string

	if err := p.db.SelectContext(ctx, &keys, query, p.profile); err != nil {
		p.logger.Error("Failed to list storage keys", "error", err, "profile", p.profile)
		return nil, fmt.Errorf("list keys: %w", err)
	}

	return keys, nil
}
