// Package db provides database connectivity for the durable job stores
package db

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/celestiaorg/maasprov/internal/db/repos"
	"github.com/celestiaorg/maasprov/internal/logger"
)

// Database configuration constants
const (
	// DefaultHost is the default database host
	DefaultHost = "localhost"
	// DefaultPort is the default database port
	DefaultPort = 5432
	// DefaultUser is the default database user
	DefaultUser = "postgres"
	// DefaultPassword is the default database password
	DefaultPassword = "postgres"
	// DefaultDBName is the default database name
	DefaultDBName = "maasprov"
	// DefaultSSLMode is the default postgres sslmode
	DefaultSSLMode = "disable"
)

// Options represents database connection configuration options
type Options struct {
	Host     string
	User     string
	Password string
	DBName   string
	Port     int
	SSLMode  string
	LogLevel gormlogger.LogLevel
}

// New opens a postgres connection and migrates the job table
func New(opts Options) (*gorm.DB, error) {
	opts = setDefaults(opts)
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		opts.Host, opts.User, opts.Password, opts.DBName, opts.Port, opts.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), gormConfig(opts.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := repos.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate job table: %w", err)
	}
	return db, nil
}

// NewSQLite opens (or creates) a SQLite database at path and migrates the job table.
// A single connection serializes writers, which SQLite requires.
func NewSQLite(path string, level gormlogger.LogLevel) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if level == 0 {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repos.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate job table: %w", err)
	}
	return db, nil
}

func gormConfig(level gormlogger.LogLevel) *gorm.Config {
	// record-not-found is a normal outcome of job lookups
	return &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger.Printer(), gormlogger.Config{
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

func setDefaults(opts Options) Options {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.DBName == "" {
		opts.DBName = DefaultDBName
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.SSLMode == "" {
		opts.SSLMode = DefaultSSLMode
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Warn
	}
	return opts
}
