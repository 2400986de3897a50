package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/types"
)

func TestListJobsCommand(t *testing.T) {
	cmd := newJobsCmd()
	mockClient, stdout, _ := setupTestCommand(t, cmd)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mockClient.ListJobsFn = func(_ context.Context, opts *models.ListOptions) (types.ListJobsResponse, error) {
		assert.Equal(t, 5, opts.Limit)
		assert.Equal(t, models.JobStatusRunning, opts.Status)
		return types.ListJobsResponse{
			Jobs: []*models.ProvisioningJob{
				{ID: "job-1", Status: models.JobStatusRunning, CreatedAt: created, TotalMachines: 2},
				{ID: "job-2", Status: models.JobStatusRunning, CreatedAt: created},
			},
			Total: 9,
		}, nil
	}

	cmd.SetArgs([]string{"list", "-l", "5", "--status", "running"})
	require.NoError(t, cmd.Execute())

	require.Len(t, mockClient.ListJobsOpts, 1)
	output := stdout.String()
	assert.Contains(t, output, `"id": "job-1"`)
	assert.Contains(t, output, `"status": "running"`)
	assert.Contains(t, output, `"id": "job-2"`)
	assert.Contains(t, output, `"total": 9`)
}

func TestListJobsCommand_InvalidStatus(t *testing.T) {
	cmd := newJobsCmd()
	mockClient, _, _ := setupTestCommand(t, cmd)

	for _, status := range []string{"sleeping", "unknown"} {
		cmd.SetArgs([]string{"list", "--status", status})
		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job status")
	}
	assert.Empty(t, mockClient.ListJobsOpts)
}

func TestGetJobCommand(t *testing.T) {
	cmd := newJobsCmd()
	mockClient, stdout, _ := setupTestCommand(t, cmd)

	mockClient.GetJobFn = func(_ context.Context, id string) (models.ProvisioningJob, error) {
		assert.Equal(t, "job-123", id)
		return models.ProvisioningJob{
			ID:     "job-123",
			Status: models.JobStatusCompleted,
			Results: []models.MachineResult{
				{MachineID: "abc123", Hostname: "node-1", Status: models.ResultDeployed},
			},
		}, nil
	}

	cmd.SetArgs([]string{"get", "-i", "job-123"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, []string{"job-123"}, mockClient.GetJobIDs)
	output := stdout.String()
	assert.Contains(t, output, `"id": "job-123"`)
	assert.Contains(t, output, `"status": "completed"`)
	assert.Contains(t, output, `"machine_id": "abc123"`)
}

func TestGetJobCommand_RequiresID(t *testing.T) {
	cmd := newJobsCmd()
	setupTestCommand(t, cmd)

	cmd.SetArgs([]string{"get"})
	require.Error(t, cmd.Execute())
}
