package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/maas"
)

// DeployCall records one Deploy invocation
type DeployCall struct {
	SystemID string
	Params   maas.DeployParams
}

// MAAS is an in-process fake of the MAAS API. Deployments move machines to
// Deploying. Behavior can be overridden through the error and func fields.
type MAAS struct {
	mu       sync.Mutex
	machines []maas.Machine
	tags     []maas.Tag
	pools    []maas.ResourcePool

	// ListErr is returned by ListMachines when set
	ListErr error
	// DeployErrors fails the deployment of specific system IDs
	DeployErrors map[string]error
	// DeployFunc, when set, replaces the default Deploy behavior
	DeployFunc func(ctx context.Context, systemID string, params maas.DeployParams) (json.RawMessage, error)
	// OnList is called at the start of every ListMachines call
	OnList func()
	// BootSources and BootResources are returned verbatim
	BootSources   json.RawMessage
	BootResources json.RawMessage
	// Defaults is the region configuration; DefaultsErr fails GetDefaults
	Defaults    map[string]interface{}
	DefaultsErr error

	deployCalls []DeployCall
	listCalls   int
}

// NewMAAS creates a fake MAAS holding the given machines in listing order
func NewMAAS(machines ...maas.Machine) *MAAS {
	return &MAAS{
		machines:     append([]maas.Machine(nil), machines...),
		DeployErrors: make(map[string]error),
		pools:        []maas.ResourcePool{{ID: 0, Name: maas.DefaultPoolName}},
	}
}

// NewMachine builds a machine in the default pool
func NewMachine(systemID, hostname, status string, tags ...string) maas.Machine {
	if tags == nil {
		tags = []string{}
	}
	return maas.Machine{
		SystemID:     systemID,
		Hostname:     hostname,
		StatusName:   status,
		TagNames:     tags,
		Pool:         &maas.ResourcePool{Name: maas.DefaultPoolName},
		Architecture: "amd64/generic",
		CPUCount:     16,
		Memory:       65536,
	}
}

// InPool returns a copy of m placed in pool
func InPool(m maas.Machine, pool string) maas.Machine {
	m.Pool = &maas.ResourcePool{Name: pool}
	return m
}

// SetMachines replaces the inventory
func (f *MAAS) SetMachines(machines ...maas.Machine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.machines = append([]maas.Machine(nil), machines...)
}

// SetStatus changes the status of a machine
func (f *MAAS) SetStatus(systemID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.machines {
		if f.machines[i].SystemID == systemID {
			f.machines[i].StatusName = status
		}
	}
}

// SetTags replaces the tag list
func (f *MAAS) SetTags(tags ...maas.Tag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = tags
}

// SetPools replaces the pool list
func (f *MAAS) SetPools(pools ...maas.ResourcePool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools = pools
}

// SetDeployError makes deployments of systemID fail with err
func (f *MAAS) SetDeployError(systemID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeployErrors[systemID] = err
}

// DeployCalls returns the recorded Deploy calls in order
func (f *MAAS) DeployCalls() []DeployCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeployCall(nil), f.deployCalls...)
}

// ListCalls returns how many times ListMachines was called
func (f *MAAS) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// ListMachines returns a copy of the inventory
func (f *MAAS) ListMachines(ctx context.Context) ([]maas.Machine, error) {
	f.mu.Lock()
	f.listCalls++
	onList := f.OnList
	f.mu.Unlock()

	if onList != nil {
		onList()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]maas.Machine(nil), f.machines...), nil
}

// GetMachine returns a machine by system ID or a 404 APIError
func (f *MAAS) GetMachine(ctx context.Context, systemID string) (*maas.Machine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.machines {
		if f.machines[i].SystemID == systemID {
			m := f.machines[i]
			return &m, nil
		}
	}
	return nil, &maas.APIError{Status: http.StatusNotFound, Body: "No Machine matches the given query."}
}

// Deploy records the call and moves the machine to Deploying
func (f *MAAS) Deploy(ctx context.Context, systemID string, params maas.DeployParams) (json.RawMessage, error) {
	f.mu.Lock()
	f.deployCalls = append(f.deployCalls, DeployCall{SystemID: systemID, Params: params})
	deployFunc := f.DeployFunc
	deployErr := f.DeployErrors[systemID]
	f.mu.Unlock()

	if deployFunc != nil {
		return deployFunc(ctx, systemID, params)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deployErr != nil {
		return nil, deployErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.machines {
		if f.machines[i].SystemID == systemID {
			f.machines[i].StatusName = maas.StatusDeploying
			return json.RawMessage(fmt.Sprintf(`{"system_id":%q,"status_name":%q}`, systemID, maas.StatusDeploying)), nil
		}
	}
	return nil, &maas.APIError{Status: http.StatusNotFound, Body: "No Machine matches the given query."}
}

// ListTags returns the configured tags
func (f *MAAS) ListTags(ctx context.Context) ([]maas.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]maas.Tag(nil), f.tags...), nil
}

// ListPools returns the configured pools
func (f *MAAS) ListPools(ctx context.Context) ([]maas.ResourcePool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]maas.ResourcePool(nil), f.pools...), nil
}

// ListBootSources returns BootSources, an empty list when unset
func (f *MAAS) ListBootSources(ctx context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BootSources == nil {
		return json.RawMessage(`[]`), nil
	}
	return f.BootSources, nil
}

// ListBootResources returns BootResources, an empty list when unset
func (f *MAAS) ListBootResources(ctx context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BootResources == nil {
		return json.RawMessage(`[]`), nil
	}
	return f.BootResources, nil
}

// GetDefaults returns a copy of Defaults or DefaultsErr
func (f *MAAS) GetDefaults(ctx context.Context) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DefaultsErr != nil {
		return nil, f.DefaultsErr
	}
	out := make(map[string]interface{}, len(f.Defaults))
	for k, v := range f.Defaults {
		out[k] = v
	}
	return out, nil
}

// UserDataFunc adapts a function to the user-data generator interface
type UserDataFunc func(machine *maas.Machine, template string, osType models.OSType) (string, error)

// Generate calls f
func (f UserDataFunc) Generate(machine *maas.Machine, template string, osType models.OSType) (string, error) {
	return f(machine, template, osType)
}

// EchoUserData prefixes the template with the machine's system ID and OS type
var EchoUserData = UserDataFunc(func(machine *maas.Machine, template string, osType models.OSType) (string, error) {
	return fmt.Sprintf("%s/%s:%s", machine.SystemID, osType, template), nil
})
