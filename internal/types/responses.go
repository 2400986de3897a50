package types

import "github.com/celestiaorg/maasprov/internal/db/models"

// ErrorResponse represents an error response
// Example: {"error":"Provisioning job not found"}
type ErrorResponse struct {
	// Error message describing what went wrong
	Error string `json:"error"`

	// Optional additional details about the error
	Details interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse is returned with 400 for malformed provisioning requests
// Example: {"error":"count is required ...","example":{"auto_select":true,"tags":["gpu"],"count":2}}
type ValidationErrorResponse struct {
	Error   string                 `json:"error"`
	Example map[string]interface{} `json:"example,omitempty"`
}

// InsufficientResourcesDetails explains a 409 rejection
type InsufficientResourcesDetails struct {
	RequestedCount int      `json:"requested_count"`
	AvailableCount int      `json:"available_count"`
	RequiredTags   []string `json:"required_tags"`
	Pool           string   `json:"pool"`
	Message        string   `json:"message"`
}

// InsufficientResourcesResponse is returned with 409 when auto-selection cannot be satisfied
type InsufficientResourcesResponse struct {
	Error             string                       `json:"error"`
	Details           InsufficientResourcesDetails `json:"details"`
	AvailableMachines []AvailableMachine           `json:"available_machines"`
}

// NewInsufficientResourcesResponse builds the 409 body for err
func NewInsufficientResourcesResponse(err *ResourceInsufficientError) InsufficientResourcesResponse {
	machines := err.Machines
	if machines == nil {
		machines = []AvailableMachine{}
	}
	tags := err.RequiredTags
	if tags == nil {
		tags = []string{}
	}
	return InsufficientResourcesResponse{
		Error: "Not enough resources to provision",
		Details: InsufficientResourcesDetails{
			RequestedCount: err.RequestedCount,
			AvailableCount: err.AvailableCount,
			RequiredTags:   tags,
			Pool:           err.PoolLabel(),
			Message:        err.Message(),
		},
		AvailableMachines: machines,
	}
}

// ProvisionResponse is returned with 202 when a job was accepted
// Example: {"job_id":"job-0b7c...","status":"pending","machines_to_deploy":2}
type ProvisionResponse struct {
	JobID            string                     `json:"job_id"`
	Status           models.JobStatus           `json:"status"`
	Message          string                     `json:"message"`
	MachinesToDeploy int                        `json:"machines_to_deploy"`
	AutoSelection    *models.ResourceValidation `json:"auto_selection,omitempty"`
	SelectedMachines []string                   `json:"selected_machines,omitempty"`
}

// ListJobsResponse is returned by GET /api/v1/provision. Total counts every job in
// the store, not only the filtered page.
type ListJobsResponse struct {
	Jobs  []*models.ProvisioningJob `json:"jobs"`
	Total int                       `json:"total"`
}

// ConfigStatus reports whether the MAAS connection is configured
type ConfigStatus struct {
	Configured bool     `json:"configured"`
	URL        string   `json:"url,omitempty"`
	Pools      []string `json:"pools"`
}

// ConfigDefaults are the MAAS region defaults offered to callers building a request.
// MAASConfig echoes the upstream document the defaults were read from.
type ConfigDefaults struct {
	DefaultDistroSeries string                 `json:"default_distro_series"`
	DefaultMinHWEKernel string                 `json:"default_min_hwe_kernel"`
	CompletedIntro      bool                   `json:"completed_intro"`
	MAASConfig          map[string]interface{} `json:"debug_config,omitempty"`
}

// UserConfig reports whether a deployment user is configured; the password is never returned
type UserConfig struct {
	Configured  bool   `json:"configured"`
	Username    string `json:"username,omitempty"`
	HasPassword bool   `json:"hasPassword"`
}

// MachineStatus is the status summary of a single machine
type MachineStatus struct {
	SystemID           string `json:"system_id"`
	Hostname           string `json:"hostname,omitempty"`
	StatusName         string `json:"status_name"`
	StatusMessage      string `json:"status_message,omitempty"`
	DeploymentProgress *int   `json:"deployment_progress,omitempty"`
	LastUpdated        string `json:"last_updated"`
}

// CloudInitPreview is the generated user-data for one machine. The deploy user's
// password is masked.
type CloudInitPreview struct {
	SystemID     string        `json:"system_id"`
	Hostname     string        `json:"hostname"`
	DistroSeries string        `json:"distro_series"`
	OSType       models.OSType `json:"os_type"`
	Tags         []string      `json:"tags"`
	Enhancements []string      `json:"enhancements"`
	Config       string        `json:"config"`
}
