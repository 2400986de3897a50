package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/types"
	"github.com/celestiaorg/maasprov/test/mocks"
)

func TestProvisioning_SubmitManual(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))

	resp, err := ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{Machines: []string{"node-1", "ghost"}})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, models.JobStatusPending, resp.Status)
	assert.Equal(t, 2, resp.MachinesToDeploy)
	assert.Contains(t, resp.Message, "GET /api/v1/provision/{job_id}")
	assert.Nil(t, resp.AutoSelection)

	job := ts.WaitForTerminal(resp.JobID)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "jammy", job.Config.DistroSeries)
	assert.False(t, job.Config.AutoSelect)
	assert.Equal(t, 1, job.SuccessfulDeployments)
	require.Len(t, job.Results, 2)
	assert.Equal(t, "Machine not found", job.Results[0].Reason)
}

func TestProvisioning_SubmitAutoSelect(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(
		mocks.NewMachine("m1", "node-1", maas.StatusReady, "fe"),
		mocks.NewMachine("m2", "node-2", maas.StatusDeployed, "fe"),
		mocks.NewMachine("m3", "node-3", maas.StatusReady, "fe"),
	)

	resp, err := ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{
		AutoSelect: true, Tags: []string{"fe"}, Count: 2, DistroSeries: "noble",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m3"}, resp.SelectedMachines)
	require.NotNil(t, resp.AutoSelection)
	assert.Equal(t, 2, resp.AutoSelection.SelectedMachines)

	job := ts.WaitForTerminal(resp.JobID)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.True(t, job.Config.AutoSelect)
	assert.Equal(t, []string{"m1", "m3"}, []string(job.Config.Machines))
	require.NotNil(t, job.ResourceValidation)
	assert.Equal(t, 2, job.ResourceValidation.AvailableCount)
	for _, call := range ts.MAAS.DeployCalls() {
		assert.Equal(t, "noble", call.Params.DistroSeries)
	}
}

func TestProvisioning_RejectionsCreateNoJob(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ts.MAAS.SetMachines(mocks.NewMachine("m1", "node-1", maas.StatusReady, "fe"))

	_, err := ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{AutoSelect: true, Tags: []string{"fe"}, Count: 5})
	var insufficient *types.ResourceInsufficientError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.AvailableCount)

	_, err = ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{})
	var validation *types.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{Tags: []string{"fe"}, Count: 1, TagMatchMode: "some"})
	require.ErrorAs(t, err, &validation)

	total, err := ts.Store.Count(ts.ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, ts.MAAS.DeployCalls())
}

func TestProvisioning_SubmitAfterShutdown(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.Dispatcher.Shutdown(ctx))

	_, err := ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{Machines: []string{"node-1"}})
	require.ErrorIs(t, err, ErrDispatcherClosed)

	jobs, err := ts.Store.List(ts.ctx, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusFailed, jobs[0].Status)
}

func TestProvisioning_GetAndListJobs(t *testing.T) {
	ts := NewTestSetup(t, nil)
	defer ts.CleanUp()

	_, err := ts.Provisioning.GetJob(ts.ctx, "job-missing")
	require.ErrorIs(t, err, models.ErrJobNotFound)

	empty, err := ts.Provisioning.ListJobs(ts.ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Jobs)
	assert.Zero(t, empty.Total)

	ts.MAAS.SetMachines(mocks.NewMachine("abc123", "node-1", maas.StatusReady))
	var ids []string
	for i := 0; i < 3; i++ {
		resp, err := ts.Provisioning.Submit(ts.ctx, &types.ProvisionRequest{Machines: []string{"ghost"}})
		require.NoError(t, err)
		ids = append(ids, resp.JobID)
	}
	for _, id := range ids {
		ts.WaitForTerminal(id)
	}

	first, err := ts.Provisioning.ListJobs(ts.ctx, &models.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, first.Jobs, 2)
	assert.Equal(t, 3, first.Total)

	second, err := ts.Provisioning.ListJobs(ts.ctx, &models.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, first, second, "listing must not change state")

	completed, err := ts.Provisioning.ListJobs(ts.ctx, &models.ListOptions{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed.Jobs, 3)

	job, err := ts.Provisioning.GetJob(ts.ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], job.ID)
}
