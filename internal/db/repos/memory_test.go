package repos

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

func TestMemoryJobRepositoryConcurrentCreate(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := repo.Create(ctx, models.JobConfig{Machines: []string{fmt.Sprintf("m%d", i)}}, nil)
			assert.NoError(t, err)
			ids <- job.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, n, count)
}

func TestMemoryJobRepositoryConsistentReads(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()

	job, err := repo.Create(ctx, models.JobConfig{Machines: []string{"m1"}}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_, err := repo.Update(ctx, job.ID, func(j *models.ProvisioningJob) error {
				j.Status = models.JobStatusRunning
				status := models.ResultDeployed
				if i%3 == 0 {
					status = models.ResultFailed
				}
				j.AppendResult(models.MachineResult{MachineID: fmt.Sprintf("m%d", i), Status: status}, true)
				return nil
			})
			assert.NoError(t, err)
		}
	}()

	for {
		select {
		case <-done:
			final, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Len(t, final.Results, 200)
			assert.Equal(t, 200, final.SuccessfulDeployments+final.FailedDeployments)
			return
		default:
			snapshot, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, len(snapshot.Results), snapshot.SuccessfulDeployments+snapshot.FailedDeployments)
		}
	}
}

func TestMemoryJobRepositorySameTickOrder(t *testing.T) {
	repo := NewMemoryJobRepository()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()

	first, err := repo.Create(ctx, models.JobConfig{}, nil)
	require.NoError(t, err)
	second, err := repo.Create(ctx, models.JobConfig{}, nil)
	require.NoError(t, err)

	jobs, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, ids(jobs))
}
