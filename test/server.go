package test

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/celestiaorg/maasprov/internal/app"
	"github.com/celestiaorg/maasprov/internal/cloudinit"
	maasconfig "github.com/celestiaorg/maasprov/internal/config"
	"github.com/celestiaorg/maasprov/pkg/api/v1/client"
)

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// SetupServer configures the suite with a real API server
func SetupServer(suite *Suite) {
	suite.App = app.New(app.Options{
		Store:     suite.JobRepo,
		MAAS:      suite.MAAS,
		Generator: cloudinit.NewGenerator(suite.Users),
		MAASConfig: &maasconfig.MAASConfig{
			URL:    "http://maas.test:5240/MAAS",
			APIKey: "consumer:token:secret",
			Pools:  suite.Pools,
		},
		Users: suite.Users,
	})

	// Create test server using adaptor to convert Fiber app to http.Handler
	suite.Server = httptest.NewServer(adaptor.FiberApp(suite.App.Fiber))

	apiClient, err := client.NewClient(&client.Options{
		BaseURL: suite.Server.URL,
		Timeout: testClientTimeout,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = apiClient

	// Jobs must finish before the database closes
	originalCleanup := suite.cleanup
	suite.cleanup = func() {
		if suite.Server != nil {
			suite.Server.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), testClientTimeout)
		defer cancel()
		_ = suite.App.Dispatcher.Shutdown(ctx)
		if originalCleanup != nil {
			originalCleanup()
		}
	}
}
