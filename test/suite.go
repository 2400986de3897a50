package test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/celestiaorg/maasprov/internal/app"
	maasconfig "github.com/celestiaorg/maasprov/internal/config"
	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/db/repos"
	"github.com/celestiaorg/maasprov/pkg/api/v1/client"
	"github.com/celestiaorg/maasprov/test/mocks"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - File-based SQLite job store
//   - Real API server
//   - Real API client
//   - Fake MAAS
type Suite struct {
	t *testing.T

	// Server components
	App    *app.App
	Server *httptest.Server

	// Client components
	APIClient client.Client

	// Database components
	DB      *gorm.DB
	JobRepo *repos.JobRepository

	// External collaborators
	MAAS  *mocks.MAAS
	Users *maasconfig.UserCredentials
	Pools []string

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	cleanup func()
}

// NewSuite creates a new test suite with the default pool visible and a
// configured deployment user. The suite must be cleaned up by calling Cleanup.
func NewSuite(t *testing.T) *Suite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)

	suite := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
		MAAS:       mocks.NewMAAS(),
		Users:      &maasconfig.UserCredentials{Username: "ops", Password: "s3cret"},
		Pools:      []string{maasconfig.DefaultPool},
	}
	suite.cleanup = func() {
		if suite.cancelFunc != nil {
			suite.cancelFunc()
		}
	}

	SetupTestDB(suite, nil)
	SetupServer(suite)

	return suite
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}

// WaitForJob polls the API until the job reaches a terminal status
func (s *Suite) WaitForJob(id string) models.ProvisioningJob {
	var job models.ProvisioningJob
	err := s.Retry(func() error {
		var err error
		job, err = s.APIClient.GetJob(s.ctx, id)
		if err != nil {
			return err
		}
		if !job.Status.IsTerminal() {
			return fmt.Errorf("job %s still %s", id, job.Status)
		}
		return nil
	}, 200, 25*time.Millisecond)
	s.Require().NoError(err)
	return job
}
