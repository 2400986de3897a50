package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/metrics"
)

const reasonNotFound = "Machine not found"

// Runner executes provisioning jobs: it resolves the target machines against a
// fresh inventory and deploys them one at a time.
type Runner struct {
	store     JobStore
	client    MachineClient
	generator UserDataGenerator
	now       func() time.Time
}

// NewRunner creates a job runner. generator may be nil, in which case the
// job's user-data template is sent unchanged.
func NewRunner(store JobStore, client MachineClient, generator UserDataGenerator) *Runner {
	return &Runner{
		store:     store,
		client:    client,
		generator: generator,
		now:       time.Now,
	}
}

// target is a resolved machine waiting for deployment
type target struct {
	machine maas.Machine
}

// Run executes the job to a terminal status. Every failure is recorded on the
// job; nothing is returned to the caller.
func (r *Runner) Run(ctx context.Context, jobID string) {
	// store writes must land even after ctx is cancelled
	storeCtx := context.WithoutCancel(ctx)
	start := r.now()

	defer func() {
		if p := recover(); p != nil {
			logger.ErrorWithFields("Provisioning job panicked", logger.Fields{"job_id": jobID, "panic": p})
			r.fail(storeCtx, jobID, fmt.Errorf("internal error: %v", p), start)
		}
	}()

	job, err := r.store.Update(storeCtx, jobID, func(j *models.ProvisioningJob) error {
		j.Status = models.JobStatusRunning
		return nil
	})
	if err != nil {
		logger.ErrorWithFields("Failed to start provisioning job", logger.Fields{"job_id": jobID, "error": err})
		return
	}
	cfg := job.Config

	logger.InfoWithFields("Provisioning job started", logger.Fields{
		"job_id":   jobID,
		"machines": len(cfg.Machines),
		"distro":   cfg.DistroSeries,
	})

	inventory, err := r.client.ListMachines(ctx)
	if err != nil {
		r.fail(storeCtx, jobID, fmt.Errorf("failed to list machines: %w", err), start)
		return
	}

	targets, err := r.resolve(storeCtx, jobID, cfg, inventory)
	if err != nil {
		r.fail(storeCtx, jobID, err, start)
		return
	}

	for _, t := range targets {
		result, ok := r.deploy(ctx, cfg, &t.machine)
		if _, err := r.store.Update(storeCtx, jobID, func(j *models.ProvisioningJob) error {
			j.AppendResult(result, true)
			return nil
		}); err != nil {
			// the machine was already sent to MAAS, so the job keeps going
			logger.ErrorWithFields("Failed to record deployment result", logger.Fields{
				"job_id":     jobID,
				"machine_id": result.MachineID,
				"error":      err,
			})
		}
		if ok {
			metrics.RecordDeployment(string(models.ResultDeployed))
		} else {
			metrics.RecordDeployment(string(models.ResultFailed))
		}
	}

	job, err = r.store.Update(storeCtx, jobID, func(j *models.ProvisioningJob) error {
		j.Finish(r.now())
		return nil
	})
	if err != nil {
		logger.ErrorWithFields("Failed to complete provisioning job", logger.Fields{"job_id": jobID, "error": err})
		return
	}

	metrics.RecordJobFinished(job.Status.String(), r.now().Sub(start))
	logger.InfoWithFields("Provisioning job completed", logger.Fields{
		"job_id":     jobID,
		"status":     job.Status.String(),
		"successful": job.SuccessfulDeployments,
		"failed":     job.FailedDeployments,
	})
}

// resolve matches the job's identifiers against the inventory, records not-found
// and not-ready entries, reapplies the job's filters and stores the targets.
func (r *Runner) resolve(ctx context.Context, jobID string, cfg models.JobConfig, inventory []maas.Machine) ([]target, error) {
	bySystemID := make(map[string]int, len(inventory))
	byHostname := make(map[string]int, len(inventory))
	for i := range inventory {
		bySystemID[inventory[i].SystemID] = i
		if h := inventory[i].Hostname; h != "" {
			if _, dup := byHostname[h]; !dup {
				byHostname[h] = i
			}
		}
	}

	var (
		results []models.MachineResult
		ready   []target
	)
	for _, id := range cfg.Machines {
		idx, ok := bySystemID[id]
		if !ok {
			idx, ok = byHostname[id]
		}
		if !ok {
			results = append(results, models.MachineResult{
				MachineID: id,
				Hostname:  id,
				Status:    models.ResultFailed,
				Reason:    reasonNotFound,
			})
			continue
		}

		m := inventory[idx]
		if !m.IsReady() {
			results = append(results, skipped(&m, fmt.Sprintf("Machine not in Ready state (current: %s)", m.StatusName)))
			continue
		}
		ready = append(ready, target{machine: m})
	}

	targets, filtered := applyJobFilters(cfg, ready)
	results = append(results, filtered...)

	_, err := r.store.Update(ctx, jobID, func(j *models.ProvisioningJob) error {
		for _, res := range results {
			j.AppendResult(res, false)
		}
		j.TargetMachines = j.TargetMachines[:0]
		for _, t := range targets {
			j.TargetMachines = append(j.TargetMachines, models.TargetMachine{
				SystemID: t.machine.SystemID,
				Hostname: t.machine.DisplayName(),
			})
		}
		j.TotalMachines = len(targets)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record target machines: %w", err)
	}

	for _, res := range results {
		if res.Reason == reasonNotFound {
			metrics.RecordDeployment("not_found")
		} else {
			metrics.RecordDeployment(string(res.Status))
		}
	}
	return targets, nil
}

// applyJobFilters re-checks tag, pool and count constraints carried by the job
// in case machines changed between selection and run. Machines that no longer
// qualify are returned as skipped results.
func applyJobFilters(cfg models.JobConfig, ready []target) ([]target, []models.MachineResult) {
	var (
		kept    []target
		skips   []models.MachineResult
		mode    = cfg.TagMatchMode
		tagList = strings.Join(cfg.Tags, ", ")
	)
	if mode == "" {
		mode = models.TagMatchAll
	}

	for _, t := range ready {
		m := &t.machine
		switch {
		case len(cfg.Tags) > 0 && !MatchesTags(m.TagNames, cfg.Tags, mode):
			skips = append(skips, skipped(m, fmt.Sprintf("Machine no longer matches tags [%s] (%s)", tagList, mode)))
		case cfg.Pool != "" && m.PoolName() != cfg.Pool:
			skips = append(skips, skipped(m, fmt.Sprintf("Machine no longer in pool '%s' (current: %s)", cfg.Pool, m.PoolName())))
		case cfg.Count > 0 && len(kept) >= cfg.Count:
			skips = append(skips, skipped(m, fmt.Sprintf("Requested count of %d already reached", cfg.Count)))
		default:
			kept = append(kept, t)
		}
	}
	return kept, skips
}

// deploy sends one machine to MAAS and returns its result record
func (r *Runner) deploy(ctx context.Context, cfg models.JobConfig, m *maas.Machine) (models.MachineResult, bool) {
	osType := models.OSTypeForSeries(cfg.DistroSeries)
	fields := logger.Fields{"machine_id": m.SystemID, "hostname": m.DisplayName()}

	userData := cfg.UserData
	if userData != "" && r.generator != nil {
		generated, err := r.generator.Generate(m, userData, osType)
		if err != nil {
			fields["error"] = err
			logger.ErrorWithFields("User-data generation failed", fields)
			return failed(m, fmt.Errorf("failed to generate user-data: %w", err)), false
		}
		userData = generated
	}

	resp, err := r.client.Deploy(ctx, m.SystemID, maas.DeployParams{
		DistroSeries: cfg.DistroSeries,
		UserData:     userData,
	})
	if err != nil {
		fields["error"] = err
		logger.ErrorWithFields("Deployment failed", fields)
		return failed(m, err), false
	}

	deployedAt := r.now()
	result := models.MachineResult{
		MachineID:    m.SystemID,
		Hostname:     m.DisplayName(),
		Status:       models.ResultDeployed,
		DistroSeries: cfg.DistroSeries,
		OSType:       osType,
		DeployedAt:   &deployedAt,
	}
	if len(resp) > 0 {
		result.UpstreamResponse = datatypes.JSON(resp)
	}

	fields["status"] = string(models.ResultDeployed)
	logger.InfoWithFields("Deployment started", fields)
	return result, true
}

// fail moves the job to failed unless it already reached a terminal status
func (r *Runner) fail(ctx context.Context, jobID string, cause error, start time.Time) {
	_, err := r.store.Update(ctx, jobID, func(j *models.ProvisioningJob) error {
		j.Fail(cause, r.now())
		return nil
	})
	if errors.Is(err, models.ErrJobTerminal) {
		return
	}
	if err != nil {
		logger.ErrorWithFields("Failed to mark provisioning job failed", logger.Fields{"job_id": jobID, "error": err})
		return
	}
	metrics.RecordJobFinished(models.JobStatusFailed.String(), r.now().Sub(start))
	logger.ErrorWithFields("Provisioning job failed", logger.Fields{"job_id": jobID, "error": cause})
}

func skipped(m *maas.Machine, reason string) models.MachineResult {
	return models.MachineResult{
		MachineID: m.SystemID,
		Hostname:  m.DisplayName(),
		Status:    models.ResultSkipped,
		Reason:    reason,
	}
}

func failed(m *maas.Machine, err error) models.MachineResult {
	return models.MachineResult{
		MachineID: m.SystemID,
		Hostname:  m.DisplayName(),
		Status:    models.ResultFailed,
		Error:     err.Error(),
	}
}
