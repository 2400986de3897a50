package maas

import "encoding/json"

// Machine status names reported by MAAS that the service acts on
const (
	StatusReady            = "Ready"
	StatusDeployed         = "Deployed"
	StatusDeploying        = "Deploying"
	StatusFailedDeployment = "Failed deployment"
	DefaultPoolName        = "default"
)

// ResourcePool is a MAAS resource pool
type ResourcePool struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tag is a MAAS machine tag
type Tag struct {
	Name       string `json:"name"`
	Definition string `json:"definition,omitempty"`
	Comment    string `json:"comment,omitempty"`
	KernelOpts string `json:"kernel_opts,omitempty"`
}

// Machine is the subset of the MAAS machine representation the service reads.
// Raw keeps the full upstream document so passthrough endpoints can return it untouched.
type Machine struct {
	SystemID           string        `json:"system_id"`
	Hostname           string        `json:"hostname"`
	FQDN               string        `json:"fqdn,omitempty"`
	StatusName         string        `json:"status_name"`
	StatusMessage      string        `json:"status_message,omitempty"`
	TagNames           []string      `json:"tag_names"`
	Pool               *ResourcePool `json:"pool,omitempty"`
	Architecture       string        `json:"architecture,omitempty"`
	CPUCount           int           `json:"cpu_count,omitempty"`
	Memory             int           `json:"memory,omitempty"`
	OSystem            string        `json:"osystem,omitempty"`
	DistroSeries       string        `json:"distro_series,omitempty"`
	DeploymentProgress *int          `json:"deployment_progress,omitempty"`
	Updated            string        `json:"updated,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw document
func (m *Machine) UnmarshalJSON(data []byte) error {
	type plain Machine
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Machine(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the raw upstream document when available
func (m Machine) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type plain Machine
	return json.Marshal(plain(m))
}

// PoolName returns the machine's pool, "default" when MAAS reports none
func (m *Machine) PoolName() string {
	if m.Pool == nil || m.Pool.Name == "" {
		return DefaultPoolName
	}
	return m.Pool.Name
}

// DisplayName prefers the hostname, then the FQDN, then the system ID
func (m *Machine) DisplayName() string {
	switch {
	case m.Hostname != "":
		return m.Hostname
	case m.FQDN != "":
		return m.FQDN
	default:
		return m.SystemID
	}
}

// IsReady reports whether MAAS considers the machine deployable
func (m *Machine) IsReady() bool {
	return m.StatusName == StatusReady
}

// DeployParams are the form values sent with op=deploy
type DeployParams struct {
	DistroSeries string
	UserData     string
}
