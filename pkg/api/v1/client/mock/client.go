// Package mock provides a configurable API client for command tests
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/types"
	"github.com/celestiaorg/maasprov/pkg/api/v1/client"
)

var errNotConfigured = errors.New("mock function not configured")

// MockClient implements the Client interface for testing
type MockClient struct {
	// Function fields that can be set to mock behavior
	HealthCheckFn      func(ctx context.Context) (map[string]string, error)
	ListMachinesFn     func(ctx context.Context) ([]maas.Machine, error)
	GetMachineStatusFn func(ctx context.Context, systemID string) (types.MachineStatus, error)
	ProvisionFn        func(ctx context.Context, req types.ProvisionRequest) (types.ProvisionResponse, error)
	GetJobFn           func(ctx context.Context, id string) (models.ProvisioningJob, error)
	ListJobsFn         func(ctx context.Context, opts *models.ListOptions) (types.ListJobsResponse, error)

	// Call tracking for verification
	mu            sync.Mutex
	ProvisionReqs []types.ProvisionRequest
	GetJobIDs     []string
	ListJobsOpts  []*models.ListOptions
}

var _ client.Client = (*MockClient)(nil)

// HealthCheck calls HealthCheckFn
func (m *MockClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	if m.HealthCheckFn == nil {
		return map[string]string{"status": "healthy"}, nil
	}
	return m.HealthCheckFn(ctx)
}

// ListMachines calls ListMachinesFn
func (m *MockClient) ListMachines(ctx context.Context) ([]maas.Machine, error) {
	if m.ListMachinesFn == nil {
		return nil, errNotConfigured
	}
	return m.ListMachinesFn(ctx)
}

// GetMachineStatus calls GetMachineStatusFn
func (m *MockClient) GetMachineStatus(ctx context.Context, systemID string) (types.MachineStatus, error) {
	if m.GetMachineStatusFn == nil {
		return types.MachineStatus{}, errNotConfigured
	}
	return m.GetMachineStatusFn(ctx, systemID)
}

// Provision records the request and calls ProvisionFn
func (m *MockClient) Provision(ctx context.Context, req types.ProvisionRequest) (types.ProvisionResponse, error) {
	m.mu.Lock()
	m.ProvisionReqs = append(m.ProvisionReqs, req)
	m.mu.Unlock()
	if m.ProvisionFn == nil {
		return types.ProvisionResponse{}, errNotConfigured
	}
	return m.ProvisionFn(ctx, req)
}

// GetJob records the ID and calls GetJobFn
func (m *MockClient) GetJob(ctx context.Context, id string) (models.ProvisioningJob, error) {
	m.mu.Lock()
	m.GetJobIDs = append(m.GetJobIDs, id)
	m.mu.Unlock()
	if m.GetJobFn == nil {
		return models.ProvisioningJob{}, errNotConfigured
	}
	return m.GetJobFn(ctx, id)
}

// ListJobs records the options and calls ListJobsFn
func (m *MockClient) ListJobs(ctx context.Context, opts *models.ListOptions) (types.ListJobsResponse, error) {
	m.mu.Lock()
	m.ListJobsOpts = append(m.ListJobsOpts, opts)
	m.mu.Unlock()
	if m.ListJobsFn == nil {
		return types.ListJobsResponse{}, errNotConfigured
	}
	return m.ListJobsFn(ctx, opts)
}
