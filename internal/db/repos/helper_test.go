package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

// jobStore is the behavior shared by the memory and SQL repositories
type jobStore interface {
	Create(ctx context.Context, config models.JobConfig, validation *models.ResourceValidation) (*models.ProvisioningJob, error)
	Get(ctx context.Context, id string) (*models.ProvisioningJob, error)
	List(ctx context.Context, opts *models.ListOptions) ([]*models.ProvisioningJob, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, fn func(*models.ProvisioningJob) error) (*models.ProvisioningJob, error)
}

var (
	_ jobStore = (*MemoryJobRepository)(nil)
	_ jobStore = (*JobRepository)(nil)
)

// fakeClock hands out strictly increasing timestamps
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// JobStoreTestSuite runs the same contract against every repository implementation
type JobStoreTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   jobStore
	newRepo func(s *JobStoreTestSuite) jobStore
	db      *gorm.DB
}

func (s *JobStoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newRepo(s)
}

func (s *JobStoreTestSuite) TearDownTest() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
	s.db = nil
}

func newMemoryRepo(s *JobStoreTestSuite) jobStore {
	repo := NewMemoryJobRepository()
	repo.now = newFakeClock().Now
	return repo
}

// openTestDB creates a new in-memory database with JSON support and the job table
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// a private cache per connection keeps tests isolated
	db, err := gorm.Open(sqlite.Open("file::memory:?_json=1"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to create in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db), "Failed to run database migrations")
	return db
}

func newSQLiteRepo(s *JobStoreTestSuite) jobStore {
	s.db = openTestDB(s.T())

	repo := NewJobRepository(s.db)
	repo.now = newFakeClock().Now
	return repo
}

// Helper methods for creating test data

func (s *JobStoreTestSuite) createManualJob(machines ...string) *models.ProvisioningJob {
	job, err := s.store.Create(s.ctx, models.JobConfig{
		Machines:     machines,
		DistroSeries: "jammy",
		TagMatchMode: models.TagMatchAll,
	}, nil)
	s.Require().NoError(err)
	return job
}

func (s *JobStoreTestSuite) createAutoJob() *models.ProvisioningJob {
	job, err := s.store.Create(s.ctx, models.JobConfig{
		Machines:     []string{"abc123"},
		DistroSeries: "rocky9",
		Tags:         []string{"gpu"},
		Count:        1,
		AutoSelect:   true,
		TagMatchMode: models.TagMatchAny,
	}, &models.ResourceValidation{
		AutoSelected:     true,
		RequestedCount:   1,
		AvailableCount:   3,
		SelectedMachines: 1,
		SelectionCriteria: models.SelectionCriteria{
			Tags:         []string{"gpu"},
			TagMatchMode: models.TagMatchAny,
			Status:       "Ready",
		},
	})
	s.Require().NoError(err)
	return job
}
