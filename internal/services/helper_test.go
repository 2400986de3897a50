package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/db/repos"
	"github.com/celestiaorg/maasprov/test/mocks"
)

var _ MAASClient = (*mocks.MAAS)(nil)

// TestSetup wires the provisioning services against an in-memory store and a fake MAAS
type TestSetup struct {
	t            *testing.T
	ctx          context.Context
	cancel       context.CancelFunc
	Store        *repos.MemoryJobRepository
	MAAS         *mocks.MAAS
	Runner       *Runner
	Dispatcher   *Dispatcher
	Selector     *Selector
	Provisioning *Provisioning
}

// NewTestSetup creates the services with the given generator and the default pool visible
func NewTestSetup(t *testing.T, generator UserDataGenerator) *TestSetup {
	ctx, cancel := context.WithCancel(context.Background())
	fake := mocks.NewMAAS()
	store := repos.NewMemoryJobRepository()
	runner := NewRunner(store, fake, generator)
	dispatcher := NewDispatcher(ctx, runner)
	selector := NewSelector(fake, []string{"default"})

	return &TestSetup{
		t:            t,
		ctx:          ctx,
		cancel:       cancel,
		Store:        store,
		MAAS:         fake,
		Runner:       runner,
		Dispatcher:   dispatcher,
		Selector:     selector,
		Provisioning: NewProvisioningService(store, selector, dispatcher),
	}
}

// CleanUp stops the dispatcher
func (ts *TestSetup) CleanUp() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ts.Dispatcher.Shutdown(shutdownCtx)
	ts.cancel()
}

// CreateJob stores a pending job for cfg, bypassing selection
func (ts *TestSetup) CreateJob(cfg models.JobConfig) string {
	if cfg.DistroSeries == "" {
		cfg.DistroSeries = "jammy"
	}
	if cfg.TagMatchMode == "" {
		cfg.TagMatchMode = models.TagMatchAll
	}
	job, err := ts.Store.Create(ts.ctx, cfg, nil)
	require.NoError(ts.t, err)
	return job.ID
}

// Job returns the stored snapshot of a job
func (ts *TestSetup) Job(id string) *models.ProvisioningJob {
	job, err := ts.Store.Get(ts.ctx, id)
	require.NoError(ts.t, err)
	return job
}

// WaitForTerminal polls until the job reaches a terminal status
func (ts *TestSetup) WaitForTerminal(id string) *models.ProvisioningJob {
	var job *models.ProvisioningJob
	require.Eventually(ts.t, func() bool {
		job = ts.Job(id)
		return job.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}
