// Package migrations applies the SQL schema of the postgres job store
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/celestiaorg/maasprov/internal/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

// Config holds migration configuration
type Config struct {
	// MigrationsPath is a golang-migrate source URL; empty uses the embedded migrations
	MigrationsPath string
	DatabaseURL    string
	RetryAttempts  int
	RetryDelay     time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 5,
		RetryDelay:    time.Second * 3,
	}
}

// MigrationService handles database migrations
type MigrationService struct {
	config  Config
	migrate *migrate.Migrate
}

// NewMigrationService creates a new migration service
func NewMigrationService(config Config) (*MigrationService, error) {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}

	var (
		m   *migrate.Migrate
		err error
	)
	// Retry connection a few times before giving up
	for i := 0; i < config.RetryAttempts; i++ {
		m, err = open(config)
		if err == nil {
			break
		}
		logger.Warnf("Failed to connect to database, attempt %d/%d: %v", i+1, config.RetryAttempts, err)
		time.Sleep(config.RetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance after %d attempts: %w", config.RetryAttempts, err)
	}

	return &MigrationService{
		config:  config,
		migrate: m,
	}, nil
}

func open(config Config) (*migrate.Migrate, error) {
	if config.MigrationsPath != "" {
		return migrate.New(config.MigrationsPath, config.DatabaseURL)
	}
	src, err := Source()
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, config.DatabaseURL)
}

// Source returns the embedded migrations as a golang-migrate source
func Source() (source.Driver, error) {
	d, err := iofs.New(embedded, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	return d, nil
}

// Up runs all pending migrations
func (s *MigrationService) Up() error {
	if err := s.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations completed successfully")
	return nil
}

// Down rolls back all migrations
func (s *MigrationService) Down() error {
	if err := s.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	logger.Info("Rollback completed successfully")
	return nil
}

// Steps runs n migrations up or down
func (s *MigrationService) Steps(n int) error {
	if err := s.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run %d migrations: %w", n, err)
	}
	return nil
}

// Version returns the current migration version
func (s *MigrationService) Version() (uint, bool, error) {
	return s.migrate.Version()
}

// Force forces a specific version
func (s *MigrationService) Force(version int) error {
	return s.migrate.Force(version)
}

// Close releases the source and database connections
func (s *MigrationService) Close() error {
	srcErr, dbErr := s.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
