// Package config loads the process configuration for the provisioning service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	maasconfig "github.com/celestiaorg/maasprov/internal/config"
)

// Job store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Default file locations for the MAAS and deployment user settings
const (
	DefaultMAASConfFile  = "maas.conf"
	DefaultUsersConfFile = "users.conf"
)

// Config holds all application configuration
type Config struct {
	Port            int
	LogLevel        string
	MAASTimeout     time.Duration
	ShutdownTimeout time.Duration

	MAAS  *maasconfig.MAASConfig
	Users *maasconfig.UserCredentials

	JobStore   string
	SQLitePath string
	DB         DBConfig
}

// DBConfig holds the postgres connection settings used when JobStore is postgres
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Load reads .env (when present), then maas.conf and users.conf, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	src, err := maasconfig.NewSource(
		GetEnv("MAAS_CONF_FILE", DefaultMAASConfFile),
		GetEnv("USERS_CONF_FILE", DefaultUsersConfFile),
	)
	if err != nil {
		return nil, err
	}

	port, err := getInt(src, "PORT", 8080)
	if err != nil {
		return nil, err
	}
	dbPort, err := getInt(src, "DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maasTimeout, err := getDuration(src, "MAAS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getDuration(src, "SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            port,
		LogLevel:        getString(src, "LOG_LEVEL", "info"),
		MAASTimeout:     maasTimeout,
		ShutdownTimeout: shutdownTimeout,
		MAAS:            maasconfig.NewMAASConfig(src),
		Users:           maasconfig.NewUserCredentials(src),
		JobStore:        getString(src, "JOB_STORE", StoreMemory),
		SQLitePath:      getString(src, "SQLITE_PATH", "maasprov.db"),
		DB: DBConfig{
			Host:     getString(src, "DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getString(src, "DB_USER", "postgres"),
			Password: getString(src, "DB_PASSWORD", "postgres"),
			Name:     getString(src, "DB_NAME", "maasprov"),
			SSLMode:  getString(src, "DB_SSL_MODE", "disable"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN returns the postgres connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// URL returns the postgres URL form used by golang-migrate
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func (c *Config) validate() error {
	switch c.JobStore {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("invalid JOB_STORE %q (expected %s, %s or %s)", c.JobStore, StoreMemory, StoreSQLite, StorePostgres)
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive")
	}
	return nil
}

func getString(src *maasconfig.Source, key, fallback string) string {
	if v := src.Get(key); v != "" {
		return v
	}
	return fallback
}

func getInt(src *maasconfig.Source, key string, fallback int) (int, error) {
	v := src.Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(src *maasconfig.Source, key string, fallback time.Duration) (time.Duration, error) {
	v := src.Get(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
