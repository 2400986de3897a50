package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	// JobIDField is the database field name for the job identifier
	JobIDField = "id"
	// JobCreatedAtField is the database field name for the job creation timestamp
	JobCreatedAtField = "created_at"
	// JobUpdatedAtField is the database field name for the job update timestamp
	JobUpdatedAtField = "updated_at"
	// JobStatusField is the database field name for the job status
	JobStatusField = "status"
)

var (
	// ErrJobNotFound is returned by job stores when no job matches the given ID
	ErrJobNotFound = errors.New("provisioning job not found")
	// ErrJobTerminal is returned when mutating a job that already reached a terminal status
	ErrJobTerminal = errors.New("provisioning job is in a terminal status")
)

// JobStatus represents the current state of a provisioning job
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status.
	// It is also used as "no filter" when listing jobs.
	JobStatusUnknown JobStatus = iota
	// JobStatusPending indicates the job was accepted and waits for its runner
	JobStatusPending
	// JobStatusRunning indicates the runner is processing the job's machines
	JobStatusRunning
	// JobStatusCompleted indicates every attempted deployment succeeded
	JobStatusCompleted
	// JobStatusCompletedWithErrors indicates at least one deployment failed
	JobStatusCompletedWithErrors
	// JobStatusFailed indicates the job aborted before per-machine processing
	JobStatusFailed
)

var jobStatusNames = []string{
	"unknown",
	"pending",
	"running",
	"completed",
	"completed_with_errors",
	"failed",
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, status := range jobStatusNames {
		if status == str {
			return JobStatus(i), nil
		}
	}

	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}

// IsTerminal reports whether no further mutation is allowed in this status
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	default:
		return false
	}
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// TagMatchMode controls how requested tags are compared to a machine's tags
type TagMatchMode string

const (
	// TagMatchAll requires every requested tag to be present on the machine
	TagMatchAll TagMatchMode = "all"
	// TagMatchAny requires at least one requested tag to be present on the machine
	TagMatchAny TagMatchMode = "any"
)

// ParseTagMatchMode returns the match mode for str, defaulting to TagMatchAll when empty
func ParseTagMatchMode(str string) (TagMatchMode, error) {
	switch TagMatchMode(str) {
	case "":
		return TagMatchAll, nil
	case TagMatchAll, TagMatchAny:
		return TagMatchMode(str), nil
	default:
		return "", fmt.Errorf("invalid tag_match_mode: %s (expected \"all\" or \"any\")", str)
	}
}

// OSType is the operating system family derived from a distro series
type OSType string

const (
	OSTypeUbuntu OSType = "ubuntu"
	OSTypeRocky  OSType = "rocky"
)

var rhelFamilyMarkers = []string{"rocky", "rhel", "centos"}

// OSTypeForSeries maps a MAAS distro series to its OS family
func OSTypeForSeries(series string) OSType {
	lower := strings.ToLower(series)
	for _, marker := range rhelFamilyMarkers {
		if strings.Contains(lower, marker) {
			return OSTypeRocky
		}
	}
	return OSTypeUbuntu
}

// ResultStatus is the outcome recorded for a single machine
type ResultStatus string

const (
	ResultDeployed ResultStatus = "deployed"
	ResultFailed   ResultStatus = "failed"
	ResultSkipped  ResultStatus = "skipped"
)

// JobConfig is the immutable snapshot of the provisioning request
type JobConfig struct {
	// Machines holds the identifiers handed to the runner: hostnames or system IDs
	// for manual requests, selected system IDs for auto-selection.
	Machines     datatypes.JSONSlice[string] `json:"machines"`
	DistroSeries string                      `json:"distro_series"`
	UserData     string                      `json:"user_data,omitempty" gorm:"type:text"`
	Tags         datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Pool         string                      `json:"pool,omitempty"`
	Count        int                         `json:"count,omitempty"`
	AutoSelect   bool                        `json:"auto_select"`
	TagMatchMode TagMatchMode                `json:"tag_match_mode"`
}

// SelectionCriteria records the filters that produced an auto-selection
type SelectionCriteria struct {
	Tags         []string     `json:"tags"`
	TagMatchMode TagMatchMode `json:"tag_match_mode"`
	Pool         string       `json:"pool,omitempty"`
	Status       string       `json:"status"`
}

// ResourceValidation is the audit record of an auto-selection
type ResourceValidation struct {
	AutoSelected      bool              `json:"auto_selected"`
	RequestedCount    int               `json:"requested_count"`
	AvailableCount    int               `json:"available_count"`
	SelectedMachines  int               `json:"selected_machines"`
	SelectionCriteria SelectionCriteria `json:"selection_criteria"`
}

// TargetMachine is a machine the runner resolved for deployment
type TargetMachine struct {
	SystemID string `json:"system_id"`
	Hostname string `json:"hostname"`
}

// MachineResult is the per-machine outcome appended by the runner
type MachineResult struct {
	MachineID        string         `json:"machine_id"`
	Hostname         string         `json:"hostname"`
	Status           ResultStatus   `json:"status"`
	Reason           string         `json:"reason,omitempty"`
	Error            string         `json:"error,omitempty"`
	DistroSeries     string         `json:"distro_series,omitempty"`
	OSType           OSType         `json:"os_type,omitempty"`
	DeployedAt       *time.Time     `json:"deployed_at,omitempty"`
	UpstreamResponse datatypes.JSON `json:"maas_result,omitempty"`
}

// ProvisioningJob represents one batch provisioning request and its accumulated results
type ProvisioningJob struct {
	ID                    string                             `json:"id" gorm:"primaryKey;size:64"`
	Status                JobStatus                          `json:"status" gorm:"index"`
	CreatedAt             time.Time                          `json:"created_at" gorm:"index"`
	UpdatedAt             time.Time                          `json:"updated_at"`
	CompletedAt           *time.Time                         `json:"completed_at,omitempty"`
	Config                JobConfig                          `json:"config" gorm:"embedded;embeddedPrefix:config_"`
	ResourceValidation    *ResourceValidation                `json:"resource_validation" gorm:"serializer:json"`
	TargetMachines        datatypes.JSONSlice[TargetMachine] `json:"machines"`
	TotalMachines         int                                `json:"total_machines"`
	SuccessfulDeployments int                                `json:"successful_deployments"`
	FailedDeployments     int                                `json:"failed_deployments"`
	Results               datatypes.JSONSlice[MachineResult] `json:"results"`
	Error                 string                             `json:"error,omitempty" gorm:"type:text"`
}

// NewProvisioningJob returns a pending job for the given snapshot
func NewProvisioningJob(id string, config JobConfig, validation *ResourceValidation, now time.Time) *ProvisioningJob {
	return &ProvisioningJob{
		ID:                 id,
		Status:             JobStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
		Config:             config.Clone(),
		ResourceValidation: validation.Clone(),
		TargetMachines:     datatypes.JSONSlice[TargetMachine]{},
		Results:            datatypes.JSONSlice[MachineResult]{},
	}
}

// Clone returns a deep copy of the config
func (c JobConfig) Clone() JobConfig {
	c.Machines = cloneSlice(c.Machines)
	c.Tags = cloneSlice(c.Tags)
	return c
}

// Clone returns a deep copy of the validation record
func (v *ResourceValidation) Clone() *ResourceValidation {
	if v == nil {
		return nil
	}
	out := *v
	out.SelectionCriteria.Tags = append([]string(nil), v.SelectionCriteria.Tags...)
	return &out
}

// Clone returns a deep copy of the job, safe to read while the original keeps changing
func (j *ProvisioningJob) Clone() *ProvisioningJob {
	if j == nil {
		return nil
	}
	out := *j
	out.Config = j.Config.Clone()
	out.ResourceValidation = j.ResourceValidation.Clone()
	out.TargetMachines = cloneSlice(j.TargetMachines)
	out.Results = cloneSlice(j.Results)
	if j.CompletedAt != nil {
		completedAt := *j.CompletedAt
		out.CompletedAt = &completedAt
	}
	return &out
}

// Touch refreshes UpdatedAt without moving it backwards
func (j *ProvisioningJob) Touch(now time.Time) {
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}

// AppendResult records a machine outcome and updates the matching counter.
// Skipped and not-found entries do not move either counter.
func (j *ProvisioningJob) AppendResult(result MachineResult, countsAsAttempt bool) {
	j.Results = append(j.Results, result)
	if !countsAsAttempt {
		return
	}
	switch result.Status {
	case ResultDeployed:
		j.SuccessfulDeployments++
	case ResultFailed:
		j.FailedDeployments++
	}
}

// Finish moves the job to its terminal completion status
func (j *ProvisioningJob) Finish(now time.Time) {
	if j.FailedDeployments == 0 {
		j.Status = JobStatusCompleted
	} else {
		j.Status = JobStatusCompletedWithErrors
	}
	j.CompletedAt = &now
	j.Touch(now)
}

// Fail aborts the job before per-machine processing
func (j *ProvisioningJob) Fail(err error, now time.Time) {
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.Touch(now)
}

func cloneSlice[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	out := make(S, len(s))
	copy(out, s)
	return out
}
