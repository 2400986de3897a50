package services

import (
	"context"
	"encoding/json"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
)

// JobStore is the registry of provisioning jobs. Implementations return
// snapshots from every read; Update is the only way to mutate a stored job.
type JobStore interface {
	Create(ctx context.Context, config models.JobConfig, validation *models.ResourceValidation) (*models.ProvisioningJob, error)
	Get(ctx context.Context, id string) (*models.ProvisioningJob, error)
	List(ctx context.Context, opts *models.ListOptions) ([]*models.ProvisioningJob, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, fn func(*models.ProvisioningJob) error) (*models.ProvisioningJob, error)
}

// MachineClient is the part of the MAAS API used by provisioning jobs
type MachineClient interface {
	ListMachines(ctx context.Context) ([]maas.Machine, error)
	Deploy(ctx context.Context, systemID string, params maas.DeployParams) (json.RawMessage, error)
}

// MAASClient is the full MAAS API surface used by the service
type MAASClient interface {
	MachineClient
	GetMachine(ctx context.Context, systemID string) (*maas.Machine, error)
	ListTags(ctx context.Context) ([]maas.Tag, error)
	ListPools(ctx context.Context) ([]maas.ResourcePool, error)
	ListBootSources(ctx context.Context) (json.RawMessage, error)
	ListBootResources(ctx context.Context) (json.RawMessage, error)
	GetDefaults(ctx context.Context) (map[string]interface{}, error)
}

// UserDataGenerator renders machine-specific user-data from an operator template
type UserDataGenerator interface {
	Generate(machine *maas.Machine, template string, osType models.OSType) (string, error)
}

var _ MAASClient = (*maas.Client)(nil)
