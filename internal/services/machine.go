package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/celestiaorg/maasprov/internal/cloudinit"
	maasconfig "github.com/celestiaorg/maasprov/internal/config"
	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/types"
)

// maxRecentDeployments caps the recent deployments listing
const maxRecentDeployments = 20

// maskedPassword replaces the deploy user's password in previews
const maskedPassword = "[HIDDEN]"

// RecentDeployment is a machine MAAS reports as deployed, deploying or failed
type RecentDeployment struct {
	ID            string `json:"id"`
	Machine       string `json:"machine"`
	SystemID      string `json:"system_id"`
	Hostname      string `json:"hostname,omitempty"`
	StatusName    string `json:"status_name"`
	StatusMessage string `json:"status_message,omitempty"`
	Timestamp     string `json:"timestamp"`
	Source        string `json:"source"`
	Pool          string `json:"pool"`
}

// Machine exposes MAAS inventory restricted to the visible pools
type Machine struct {
	client    MAASClient
	generator UserDataGenerator
	maasCfg   *maasconfig.MAASConfig
	users     *maasconfig.UserCredentials
	now       func() time.Time
}

// NewMachineService creates a new machine service
func NewMachineService(client MAASClient, generator UserDataGenerator, maasCfg *maasconfig.MAASConfig, users *maasconfig.UserCredentials) *Machine {
	return &Machine{
		client:    client,
		generator: generator,
		maasCfg:   maasCfg,
		users:     users,
		now:       time.Now,
	}
}

func (s *Machine) pools() []string {
	if s.maasCfg == nil || len(s.maasCfg.Pools) == 0 {
		return []string{maasconfig.DefaultPool}
	}
	return s.maasCfg.Pools
}

// ListMachines returns the machines in the visible pools, in inventory order
func (s *Machine) ListMachines(ctx context.Context) ([]maas.Machine, error) {
	machines, err := s.client.ListMachines(ctx)
	if err != nil {
		return nil, err
	}

	pools := s.pools()
	filtered := make([]maas.Machine, 0, len(machines))
	for i := range machines {
		if InPools(&machines[i], pools) {
			filtered = append(filtered, machines[i])
		}
	}

	logger.Debugf("Filtered %d/%d machines by pools: %s", len(filtered), len(machines), strings.Join(pools, ", "))
	return filtered, nil
}

// GetMachineStatus returns the status summary of one machine
func (s *Machine) GetMachineStatus(ctx context.Context, systemID string) (*types.MachineStatus, error) {
	m, err := s.client.GetMachine(ctx, systemID)
	if err != nil {
		return nil, err
	}
	return &types.MachineStatus{
		SystemID:           m.SystemID,
		Hostname:           m.Hostname,
		StatusName:         m.StatusName,
		StatusMessage:      m.StatusMessage,
		DeploymentProgress: m.DeploymentProgress,
		LastUpdated:        s.now().Format(time.RFC3339),
	}, nil
}

// DeployMachine deploys a single machine with the given series and user-data, unchanged
func (s *Machine) DeployMachine(ctx context.Context, systemID string, req *types.MachineDeployRequest) ([]byte, error) {
	resp, err := s.client.Deploy(ctx, systemID, maas.DeployParams{
		DistroSeries: req.DistroSeries,
		UserData:     req.UserData,
	})
	if err != nil {
		return nil, err
	}
	logger.InfoWithFields("Machine deployment requested", logger.Fields{"machine_id": systemID, "distro": req.DistroSeries})
	return resp, nil
}

// RecentDeployments lists machines in the visible pools that are deployed,
// deploying or failed deployment, newest first
func (s *Machine) RecentDeployments(ctx context.Context) ([]RecentDeployment, error) {
	machines, err := s.ListMachines(ctx)
	if err != nil {
		return nil, err
	}

	deployments := make([]RecentDeployment, 0)
	for i := range machines {
		m := &machines[i]
		switch m.StatusName {
		case maas.StatusDeployed, maas.StatusDeploying, maas.StatusFailedDeployment:
		default:
			continue
		}

		timestamp := m.Updated
		if timestamp == "" {
			timestamp = s.now().Format(time.RFC3339)
		}
		deployments = append(deployments, RecentDeployment{
			ID:            "maas-" + m.SystemID,
			Machine:       m.DisplayName(),
			SystemID:      m.SystemID,
			Hostname:      m.Hostname,
			StatusName:    m.StatusName,
			StatusMessage: m.StatusMessage,
			Timestamp:     timestamp,
			Source:        "maas",
			Pool:          m.PoolName(),
		})
	}

	sort.SliceStable(deployments, func(i, j int) bool {
		return deployments[i].Timestamp > deployments[j].Timestamp
	})
	if len(deployments) > maxRecentDeployments {
		deployments = deployments[:maxRecentDeployments]
	}
	return deployments, nil
}

// ListTags returns every MAAS tag
func (s *Machine) ListTags(ctx context.Context) ([]maas.Tag, error) {
	return s.client.ListTags(ctx)
}

// ListPools returns every MAAS resource pool
func (s *Machine) ListPools(ctx context.Context) ([]maas.ResourcePool, error) {
	return s.client.ListPools(ctx)
}

// ListBootSources returns the MAAS boot sources as MAAS reports them
func (s *Machine) ListBootSources(ctx context.Context) (json.RawMessage, error) {
	return s.client.ListBootSources(ctx)
}

// ListBootResources returns the MAAS boot resources as MAAS reports them
func (s *Machine) ListBootResources(ctx context.Context) (json.RawMessage, error) {
	return s.client.ListBootResources(ctx)
}

// ConfigDefaults returns the region's default series and kernel. When MAAS cannot
// be read the defaults fall back to jammy with no kernel.
func (s *Machine) ConfigDefaults(ctx context.Context) types.ConfigDefaults {
	config, err := s.client.GetDefaults(ctx)
	if err != nil {
		logger.InfoWithFields("MAAS config endpoints failed, using fallback defaults", logger.Fields{"error": err})
		config = nil
	}

	return types.ConfigDefaults{
		DefaultDistroSeries: firstString(config, types.DefaultDistroSeries, "default_distro_series", "default_series"),
		DefaultMinHWEKernel: firstString(config, "", "default_min_hwe_kernel", "default_kernel"),
		CompletedIntro:      config["completed_intro"] == true,
		MAASConfig:          config,
	}
}

// firstString returns the first non-empty string value among keys
func firstString(config map[string]interface{}, fallback string, keys ...string) string {
	for _, key := range keys {
		if v, ok := config[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

// ConfigStatus reports the MAAS connection settings
func (s *Machine) ConfigStatus() types.ConfigStatus {
	status := types.ConfigStatus{Pools: s.pools()}
	if s.maasCfg != nil {
		status.Configured = s.maasCfg.Configured()
		status.URL = s.maasCfg.URL
	}
	return status
}

// UserConfig reports the deployment user without its password
func (s *Machine) UserConfig() types.UserConfig {
	if s.users == nil {
		return types.UserConfig{}
	}
	return types.UserConfig{
		Configured:  s.users.Username != "" || s.users.Password != "",
		Username:    s.users.Username,
		HasPassword: s.users.Password != "",
	}
}

// PreviewCloudInit renders the user-data a deployment of systemID would send
func (s *Machine) PreviewCloudInit(ctx context.Context, systemID, distroSeries, template string) (*types.CloudInitPreview, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no user-data generator configured")
	}
	if distroSeries == "" {
		distroSeries = types.DefaultDistroSeries
	}

	m, err := s.client.GetMachine(ctx, systemID)
	if err != nil {
		return nil, err
	}

	osType := models.OSTypeForSeries(distroSeries)
	rendered, err := s.generator.Generate(m, template, osType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user-data: %w", err)
	}
	if s.users != nil && s.users.Password != "" {
		rendered = strings.ReplaceAll(rendered, s.users.Password, maskedPassword)
	}

	tags := m.TagNames
	if tags == nil {
		tags = []string{}
	}
	return &types.CloudInitPreview{
		SystemID:     m.SystemID,
		Hostname:     m.DisplayName(),
		DistroSeries: distroSeries,
		OSType:       osType,
		Tags:         tags,
		Enhancements: cloudinit.Enhancements(m.TagNames),
		Config:       rendered,
	}, nil
}
