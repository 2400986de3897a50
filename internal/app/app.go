// Package app assembles the provisioning services into a fiber application
package app

import (
	"context"
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	maasconfig "github.com/celestiaorg/maasprov/internal/config"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/services"
	"github.com/celestiaorg/maasprov/pkg/api/v1/handlers"
	"github.com/celestiaorg/maasprov/pkg/api/v1/routes"
)

// Options are the collaborators of the application
type Options struct {
	Store      services.JobStore
	MAAS       services.MAASClient
	Generator  services.UserDataGenerator
	MAASConfig *maasconfig.MAASConfig
	Users      *maasconfig.UserCredentials
	// BaseContext bounds every provisioning job; defaults to context.Background
	BaseContext context.Context
}

// App is the HTTP application together with its background job dispatcher
type App struct {
	Fiber        *fiber.App
	Dispatcher   *services.Dispatcher
	Provisioning *services.Provisioning
	Machines     *services.Machine
}

// New wires services, handlers and routes
func New(opts Options) *App {
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}

	pools := []string{maasconfig.DefaultPool}
	if opts.MAASConfig != nil && len(opts.MAASConfig.Pools) > 0 {
		pools = opts.MAASConfig.Pools
	}

	runner := services.NewRunner(opts.Store, opts.MAAS, opts.Generator)
	dispatcher := services.NewDispatcher(base, runner)
	selector := services.NewSelector(opts.MAAS, pools)
	provisioning := services.NewProvisioningService(opts.Store, selector, dispatcher)
	machines := services.NewMachineService(opts.MAAS, opts.Generator, opts.MAASConfig, opts.Users)

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})
	fiberApp.Use(logger.APILogger())

	routes.RegisterRoutes(fiberApp,
		handlers.NewMachineHandler(machines),
		handlers.NewProvisionHandler(provisioning),
	)

	return &App{
		Fiber:        fiberApp,
		Dispatcher:   dispatcher,
		Provisioning: provisioning,
		Machines:     machines,
	}
}

// Shutdown stops accepting requests and waits for running jobs until ctx expires
func (a *App) Shutdown(ctx context.Context) error {
	httpErr := a.Fiber.ShutdownWithContext(ctx)
	jobsErr := a.Dispatcher.Shutdown(ctx)
	return errors.Join(httpErr, jobsErr)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
