package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/test/mocks"
)

func TestRunner_ManualWithUnknownMachine(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(
		mocks.NewMachine("abc123", "node-1", maas.StatusReady),
		mocks.NewMachine("def456", "node-2", maas.StatusReady),
	)
	id := ts.CreateJob(models.JobConfig{Machines: []string{"node-1", "ghost", "def456"}})

	ts.Runner.Run(context.Background(), id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 2, job.TotalMachines)
	assert.Equal(t, 2, job.SuccessfulDeployments)
	assert.Equal(t, 0, job.FailedDeployments)
	assert.Equal(t, []models.TargetMachine{
		{SystemID: "abc123", Hostname: "node-1"},
		{SystemID: "def456", Hostname: "node-2"},
	}, []models.TargetMachine(job.TargetMachines))

	require.Len(t, job.Results, 3)
	assert.Equal(t, "ghost", job.Results[0].MachineID)
	assert.Equal(t, models.ResultFailed, job.Results[0].Status)
	assert.Equal(t, "Machine not found", job.Results[0].Reason)
	assert.Equal(t, "abc123", job.Results[1].MachineID)
	assert.Equal(t, models.ResultDeployed, job.Results[1].Status)
	assert.Equal(t, models.OSTypeUbuntu, job.Results[1].OSType)
	assert.NotNil(t, job.Results[1].DeployedAt)
	assert.JSONEq(t, `{"system_id":"abc123","status_name":"Deploying"}`, string(job.Results[1].UpstreamResponse))
	assert.Equal(t, "def456", job.Results[2].MachineID)

	calls := ts.MAAS.DeployCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "abc123", calls[0].SystemID)
	assert.Equal(t, "jammy", calls[0].Params.DistroSeries)
	assert.Empty(t, calls[0].Params.UserData)
}

func TestRunner_DeployErrorCompletesWithErrors(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(
		mocks.NewMachine("abc123", "node-1", maas.StatusReady),
		mocks.NewMachine("def456", "node-2", maas.StatusReady),
	)
	ts.MAAS.SetDeployError("abc123", &maas.APIError{Status: 409, Body: "Machine is locked"})
	id := ts.CreateJob(models.JobConfig{Machines: []string{"abc123", "def456"}})

	ts.Runner.Run(context.Background(), id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusCompletedWithErrors, job.Status)
	assert.Equal(t, 1, job.SuccessfulDeployments)
	assert.Equal(t, 1, job.FailedDeployments)
	require.Len(t, job.Results, 2)
	assert.Equal(t, models.ResultFailed, job.Results[0].Status)
	assert.Contains(t, job.Results[0].Error, "Machine is locked")
	assert.Equal(t, models.ResultDeployed, job.Results[1].Status)
	assert.Len(t, ts.MAAS.DeployCalls(), 2, "a failed machine must not stop the batch")
}

func TestRunner_InventoryFailureFailsJob(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.ListErr = errors.New("connection refused")
	id := ts.CreateJob(models.JobConfig{Machines: []string{"node-1"}})

	ts.Runner.Run(context.Background(), id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "failed to list machines")
	assert.Contains(t, job.Error, "connection refused")
	assert.Empty(t, job.Results)
	assert.Empty(t, ts.MAAS.DeployCalls())
}

func TestRunner_NotReadyMachineSkipped(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(
		mocks.NewMachine("abc123", "node-1", maas.StatusDeployed),
		mocks.NewMachine("def456", "node-2", maas.StatusReady),
	)
	id := ts.CreateJob(models.JobConfig{Machines: []string{"node-1", "node-2"}})

	ts.Runner.Run(context.Background(), id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.TotalMachines)
	require.Len(t, job.Results, 2)
	assert.Equal(t, models.ResultSkipped, job.Results[0].Status)
	assert.Equal(t, "Machine not in Ready state (current: Deployed)", job.Results[0].Reason)
	assert.Equal(t, models.ResultDeployed, job.Results[1].Status)
	assert.Equal(t, 1, job.SuccessfulDeployments)
	assert.Equal(t, 0, job.FailedDeployments)
}

func TestRunner_ReappliesJobFilters(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(
		mocks.NewMachine("m1", "node-1", maas.StatusReady, "fe"),
		mocks.NewMachine("m2", "node-2", maas.StatusReady),
		mocks.NewMachine("m3", "node-3", maas.StatusReady, "fe"),
		mocks.NewMachine("m4", "node-4", maas.StatusReady, "fe"),
	)
	id := ts.CreateJob(models.JobConfig{
		Machines:   []string{"m1", "m2", "m3", "m4"},
		AutoSelect: true,
		Tags:       []string{"fe"},
		Count:      2,
	})

	ts.Runner.Run(context.Background(), id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.TotalMachines)
	require.Len(t, job.Results, 4)
	assert.Equal(t, "m2", job.Results[0].MachineID)
	assert.Equal(t, models.ResultSkipped, job.Results[0].Status)
	assert.Contains(t, job.Results[0].Reason, "no longer matches tags")
	assert.Equal(t, "m4", job.Results[1].MachineID)
	assert.Equal(t, "Requested count of 2 already reached", job.Results[1].Reason)

	calls := ts.MAAS.DeployCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "m1", calls[0].SystemID)
	assert.Equal(t, "m3", calls[1].SystemID)
}

func TestRunner_UserDataGeneration(t *testing.T) {
	t.Run("template rendered per machine", func(t *testing.T) {
		ts := NewTestSetup(t, mocks.EchoUserData)
		defer ts.CleanUp()

		ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
		id := ts.CreateJob(models.JobConfig{
			Machines:     []string{"abc123"},
			DistroSeries: "rocky-9",
			UserData:     "packages: [htop]",
		})

		ts.Runner.Run(context.Background(), id)

		calls := ts.MAAS.DeployCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "abc123/rocky:packages: [htop]", calls[0].Params.UserData)
		assert.Equal(t, "rocky-9", calls[0].Params.DistroSeries)
		assert.Equal(t, models.OSTypeRocky, ts.Job(id).Results[0].OSType)
	})

	t.Run("no template means no generation", func(t *testing.T) {
		generated := false
		ts := NewTestSetup(t, mocks.UserDataFunc(func(*maas.Machine, string, models.OSType) (string, error) {
			generated = true
			return "", nil
		}))
		defer ts.CleanUp()

		ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
		id := ts.CreateJob(models.JobConfig{Machines: []string{"abc123"}})

		ts.Runner.Run(context.Background(), id)

		assert.False(t, generated)
		assert.Empty(t, ts.MAAS.DeployCalls()[0].Params.UserData)
	})

	t.Run("generator error fails the machine", func(t *testing.T) {
		ts := NewTestSetup(t, mocks.UserDataFunc(func(*maas.Machine, string, models.OSType) (string, error) {
			return "", errors.New("bad template")
		}))
		defer ts.CleanUp()

		ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
		id := ts.CreateJob(models.JobConfig{Machines: []string{"abc123"}, UserData: "x"})

		ts.Runner.Run(context.Background(), id)

		job := ts.Job(id)
		assert.Equal(t, models.JobStatusCompletedWithErrors, job.Status)
		assert.Equal(t, 1, job.FailedDeployments)
		assert.Contains(t, job.Results[0].Error, "bad template")
		assert.Empty(t, ts.MAAS.DeployCalls())
	})
}

func TestRunner_PanicFailsJob(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
	ts.MAAS.DeployFunc = func(context.Context, string, maas.DeployParams) (json.RawMessage, error) {
		panic("boom")
	}
	id := ts.CreateJob(models.JobConfig{Machines: []string{"abc123"}})

	require.NotPanics(t, func() { ts.Runner.Run(context.Background(), id) })

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "boom")
}

func TestRunner_CancelledContextStillRecordsState(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
	id := ts.CreateJob(models.JobConfig{Machines: []string{"abc123"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ts.Runner.Run(ctx, id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, context.Canceled.Error())
}

func TestRunner_UnknownJob(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	require.NotPanics(t, func() { ts.Runner.Run(context.Background(), "job-missing") })
	assert.Zero(t, ts.MAAS.ListCalls())
}

// failingUpdateStore fails the Update call with the given 1-based index
type failingUpdateStore struct {
	JobStore
	failOn int
	calls  int
}

func (s *failingUpdateStore) Update(ctx context.Context, id string, fn func(*models.ProvisioningJob) error) (*models.ProvisioningJob, error) {
	s.calls++
	if s.calls == s.failOn {
		return nil, errors.New("database is locked")
	}
	return s.JobStore.Update(ctx, id, fn)
}

func TestRunner_ResultWriteFailureKeepsDeploying(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(
		mocks.NewMachine("abc123", "node-1", maas.StatusReady),
		mocks.NewMachine("def456", "node-2", maas.StatusReady),
	)
	id := ts.CreateJob(models.JobConfig{Machines: []string{"node-1", "node-2"}})

	// updates: running, targets, first result, second result, finish
	store := &failingUpdateStore{JobStore: ts.Store, failOn: 3}
	NewRunner(store, ts.MAAS, nil).Run(context.Background(), id)

	job := ts.Job(id)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	assert.NotNil(t, job.CompletedAt)
	require.Len(t, job.Results, 1)
	assert.Equal(t, "def456", job.Results[0].MachineID)
	assert.Len(t, ts.MAAS.DeployCalls(), 2)
}
