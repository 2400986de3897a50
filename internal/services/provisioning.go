// Package services provides business logic implementation for the API
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/metrics"
	"github.com/celestiaorg/maasprov/internal/types"
)

// submitMessage tells callers where to poll
const submitMessage = "Provisioning job started. Use GET /api/v1/provision/{job_id} to track progress."

// ErrDispatcherClosed is returned when a job is submitted during shutdown
var ErrDispatcherClosed = errors.New("service is shutting down, job not accepted")

// Provisioning handles submission and querying of provisioning jobs
type Provisioning struct {
	store      JobStore
	selector   *Selector
	dispatcher *Dispatcher
}

// NewProvisioningService creates a new provisioning service
func NewProvisioningService(store JobStore, selector *Selector, dispatcher *Dispatcher) *Provisioning {
	return &Provisioning{
		store:      store,
		selector:   selector,
		dispatcher: dispatcher,
	}
}

// Submit validates the request, resolves its machines, creates a pending job and
// schedules it. Validation and resource errors are returned before any job exists.
func (p *Provisioning) Submit(ctx context.Context, req *types.ProvisionRequest) (*types.ProvisionResponse, error) {
	selection, err := p.selector.Select(ctx, req)
	if err != nil {
		var insufficient *types.ResourceInsufficientError
		if errors.As(err, &insufficient) {
			metrics.RecordResourceRejection()
		}
		return nil, err
	}

	cfg := req.JobConfig()
	cfg.Machines = append(cfg.Machines[:0], selection.Machines...)

	job, err := p.store.Create(ctx, cfg, selection.Validation)
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioning job: %w", err)
	}

	if !p.dispatcher.Dispatch(job.ID) {
		_, _ = p.store.Update(context.WithoutCancel(ctx), job.ID, func(j *models.ProvisioningJob) error {
			j.Fail(ErrDispatcherClosed, j.UpdatedAt)
			return nil
		})
		return nil, ErrDispatcherClosed
	}

	mode := "manual"
	if cfg.AutoSelect {
		mode = "auto"
	}
	metrics.RecordJobSubmitted(mode)
	logger.InfoWithFields("Provisioning job accepted", logger.Fields{
		"job_id":   job.ID,
		"mode":     mode,
		"machines": len(selection.Machines),
	})

	resp := &types.ProvisionResponse{
		JobID:            job.ID,
		Status:           models.JobStatusPending,
		Message:          submitMessage,
		MachinesToDeploy: len(selection.Machines),
	}
	if selection.Validation != nil {
		resp.AutoSelection = selection.Validation.Clone()
		resp.SelectedMachines = append([]string(nil), selection.Machines...)
	}
	return resp, nil
}

// GetJob returns a snapshot of the job, models.ErrJobNotFound when unknown
func (p *Provisioning) GetJob(ctx context.Context, id string) (*models.ProvisioningJob, error) {
	return p.store.Get(ctx, id)
}

// ListJobs returns jobs newest first together with the total number of stored jobs
func (p *Provisioning) ListJobs(ctx context.Context, opts *models.ListOptions) (*types.ListJobsResponse, error) {
	jobs, err := p.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	total, err := p.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	if jobs == nil {
		jobs = []*models.ProvisioningJob{}
	}
	return &types.ListJobsResponse{Jobs: jobs, Total: int(total)}, nil
}
