// This file is used to run database migrations for the postgres job store
// How to run:
// go run cmd/migrate/main.go              # Run all pending migrations
// go run cmd/migrate/main.go -down        # Rollback all migrations
// go run cmd/migrate/main.go -steps 1     # Run one migration
// go run cmd/migrate/main.go -steps -1    # Rollback one migration
// go run cmd/migrate/main.go -force 1     # Force version 1
package main

import (
	"flag"
	"os"
	"time"

	"github.com/celestiaorg/maasprov/config"
	"github.com/celestiaorg/maasprov/internal/db/migrations"
	"github.com/celestiaorg/maasprov/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.InitializeAndConfigure(cfg.LogLevel)

	var (
		dbURLFlag = flag.String("db", "", "Database URL (optional, defaults to DB_* settings)")
		migPath   = flag.String("path", "", "Migration source URL, e.g. file://migrations (default: embedded)")
		down      = flag.Bool("down", false, "Roll back migrations")
		steps     = flag.Int("steps", 0, "Number of migrations to apply (up or down)")
		force     = flag.Int("force", -1, "Force a specific version")
		retries   = flag.Int("retries", 5, "Number of connection retries")
		retryWait = flag.Duration("retry-wait", 3*time.Second, "Wait time between retries")
	)
	flag.Parse()

	dbURL := cfg.DB.URL()
	if *dbURLFlag != "" {
		dbURL = *dbURLFlag
	}

	service, err := migrations.NewMigrationService(migrations.Config{
		MigrationsPath: *migPath,
		DatabaseURL:    dbURL,
		RetryAttempts:  *retries,
		RetryDelay:     *retryWait,
	})
	if err != nil {
		logger.Fatalf("Failed to create migration service: %v", err)
	}
	defer func() { _ = service.Close() }()

	if *force >= 0 {
		if err := service.Force(*force); err != nil {
			logger.Fatalf("Failed to force version %d: %v", *force, err)
		}
		logger.Infof("Successfully forced version to %d", *force)
		return
	}

	if *steps != 0 {
		if err := service.Steps(*steps); err != nil {
			logger.Fatalf("Failed to apply %d steps: %v", *steps, err)
		}
		logger.Infof("Successfully applied %d steps", *steps)
		return
	}

	if *down {
		if err := service.Down(); err != nil {
			logger.Errorf("Migration rollback failed: %v", err)
			os.Exit(1)
		}
	} else {
		if err := service.Up(); err != nil {
			logger.Errorf("Migration failed: %v", err)
			os.Exit(1)
		}
	}

	version, dirty, err := service.Version()
	if err != nil {
		logger.Warnf("Could not get final version: %v", err)
	} else {
		logger.Infof("Current migration version: %d (dirty: %v)", version, dirty)
	}
}
