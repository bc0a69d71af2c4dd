// Package database owns the Postgres connection and schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	connectionTimeout = 30 * time.Second
	maxOpenConns      = 25
	maxIdleConns      = 5
	connMaxLifetime   = 5 * time.Minute
)

// DB wraps the sqlx connection with migration support.
type DB struct {
	*sqlx.DB
	logger         *zap.Logger
	migrationsPath string
}

// NewDB opens, pings and pools a Postgres connection.
func NewDB(databaseURL, migrationsPath string, logger *zap.Logger) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w, and failed to close connection: %w", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	logger.Info("Connected to database")

	return &DB{
		DB:             sqlx.NewDb(sqlDB, "postgres"),
		logger:         logger,
		migrationsPath: migrationsPath,
	}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.logger.Info("Closing database connection")
	return db.DB.Close()
}

// Health pings the database and runs a trivial query.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	var result int
	if err := db.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}
	return nil
}

// RunMigrations applies all pending schema migrations.
func (db *DB) RunMigrations() error {
	db.logger.Info("Running database migrations")

	m, err := db.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	db.logMigrationVersion(m)
	return nil
}

// RollbackMigrations undoes the last n migrations.
func (db *DB) RollbackMigrations(steps int) error {
	db.logger.Info("Rolling back database migrations", zap.Int("steps", steps))

	m, err := db.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	db.logMigrationVersion(m)
	return nil
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(db.migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func (db *DB) logMigrationVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if err != nil {
		db.logger.Warn("Could not get migration version", zap.Error(err))
		return
	}
	db.logger.Info("Migration completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
}
