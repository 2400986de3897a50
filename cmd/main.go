package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/celestiaorg/maasprov/config"
	"github.com/celestiaorg/maasprov/internal/app"
	"github.com/celestiaorg/maasprov/internal/cloudinit"
	"github.com/celestiaorg/maasprov/internal/db"
	"github.com/celestiaorg/maasprov/internal/db/repos"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.InitializeAndConfigure(cfg.LogLevel)

	if err := cfg.MAAS.Validate(); err != nil {
		logger.Fatalf("Invalid MAAS configuration: %v", err)
	}
	maasClient, err := maas.NewClient(maas.Options{
		URL:     cfg.MAAS.URL,
		APIKey:  cfg.MAAS.APIKey,
		Timeout: cfg.MAASTimeout,
	})
	if err != nil {
		logger.Fatalf("Failed to create MAAS client: %v", err)
	}

	store, err := newJobStore(cfg)
	if err != nil {
		logger.Fatalf("Failed to create job store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(app.Options{
		Store:       store,
		MAAS:        maasClient,
		Generator:   cloudinit.NewGenerator(cfg.Users),
		MAASConfig:  cfg.MAAS,
		Users:       cfg.Users,
		BaseContext: context.WithoutCancel(ctx),
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.InfoWithFields("Starting maasprov API", logger.Fields{
			"addr":      addr,
			"maas_url":  cfg.MAAS.URL,
			"pools":     cfg.MAAS.Pools,
			"job_store": cfg.JobStore,
		})
		if err := application.Fiber.Listen(addr); err != nil {
			logger.Errorf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown incomplete: %v", err)
		os.Exit(1)
	}
}

// newJobStore returns the store selected by JOB_STORE
func newJobStore(cfg *config.Config) (services.JobStore, error) {
	switch cfg.JobStore {
	case config.StoreSQLite:
		gdb, err := db.NewSQLite(cfg.SQLitePath, 0)
		if err != nil {
			return nil, err
		}
		return repos.NewJobRepository(gdb), nil
	case config.StorePostgres:
		gdb, err := db.New(db.Options{
			Host:     cfg.DB.Host,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DBName:   cfg.DB.Name,
			Port:     cfg.DB.Port,
			SSLMode:  cfg.DB.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		return repos.NewJobRepository(gdb), nil
	default:
		return repos.NewMemoryJobRepository(), nil
	}
}
