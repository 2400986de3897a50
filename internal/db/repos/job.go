package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

// maxCreateAttempts bounds ID regeneration after primary key collisions
const maxCreateAttempts = 3

// JobRepository provides access to provisioning jobs stored in a SQL database.
// The connection must be opened with gorm's TranslateError enabled so key
// collisions surface as gorm.ErrDuplicatedKey.
type JobRepository struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now, newID: NewJobID}
}

// IsDuplicateKeyError reports whether err is a unique or primary key violation
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Create inserts a new pending job and returns it. A colliding ID is
// regenerated before giving up.
func (r *JobRepository) Create(ctx context.Context, config models.JobConfig, validation *models.ResourceValidation) (*models.ProvisioningJob, error) {
	var err error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		job := models.NewProvisioningJob(r.newID(), config, validation, r.now())
		err = r.db.WithContext(ctx).Create(job).Error
		if err == nil {
			return job, nil
		}
		if !IsDuplicateKeyError(err) {
			break
		}
	}
	return nil, fmt.Errorf("failed to create job: %w", err)
}

// Get retrieves a job by its ID
func (r *JobRepository) Get(ctx context.Context, id string) (*models.ProvisioningJob, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *JobRepository) get(tx *gorm.DB, id string) (*models.ProvisioningJob, error) {
	var job models.ProvisioningJob
	err := tx.Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// List returns jobs sorted by creation time, newest first
// if the status is unknown, it will return all jobs regardless of their status
func (r *JobRepository) List(ctx context.Context, opts *models.ListOptions) ([]*models.ProvisioningJob, error) {
	qry := r.db.WithContext(ctx).Model(&models.ProvisioningJob{})
	if opts != nil && opts.Status != models.JobStatusUnknown {
		qry = qry.Where(models.JobStatusField+" = ?", opts.Status)
	}

	var jobs []*models.ProvisioningJob
	err := qry.
		Order(models.JobCreatedAtField + " DESC").
		Order(models.JobIDField + " DESC").
		Limit(opts.EffectiveLimit()).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Count returns the number of stored jobs
func (r *JobRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProvisioningJob{}).Count(&count).Error
	return count, err
}

// Update loads the job, applies fn and saves the result in one transaction
func (r *JobRepository) Update(ctx context.Context, id string, fn func(*models.ProvisioningJob) error) (*models.ProvisioningJob, error) {
	var updated *models.ProvisioningJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := r.get(tx, id)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return models.ErrJobTerminal
		}
		if err := fn(job); err != nil {
			return err
		}
		job.Touch(r.now())
		if err := tx.Save(job).Error; err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AutoMigrate creates or updates the provisioning job table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ProvisioningJob{})
}
