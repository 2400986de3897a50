package types

import (
	"fmt"
	"strings"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

// DefaultDistroSeries is deployed when a request names no series
const DefaultDistroSeries = "jammy"

// ProvisionRequest is the body of POST /api/v1/provision. It has two shapes:
// manual ({machines}) and auto-select ({auto_select, tags, count}).
type ProvisionRequest struct {
	Machines     []string `json:"machines,omitempty"`       // Hostnames or system IDs, may be mixed
	DistroSeries string   `json:"distro_series,omitempty"`  // Defaults to jammy
	UserData     string   `json:"user_data,omitempty"`      // Raw cloud-init template
	AutoSelect   bool     `json:"auto_select,omitempty"`    // Select machines by tags instead of by name
	Tags         []string `json:"tags,omitempty"`           // Required tags for auto-selection
	Count        int      `json:"count,omitempty"`          // Number of machines to auto-select
	TagMatchMode string   `json:"tag_match_mode,omitempty"` // "all" (default) or "any"
	Pool         string   `json:"pool,omitempty"`           // Optional pool restriction for auto-selection
}

// MachineDeployRequest is the body of POST /api/v1/machines/:id/deploy
type MachineDeployRequest struct {
	DistroSeries string `json:"distro_series,omitempty"`
	UserData     string `json:"user_data,omitempty"`
}

var (
	autoSelectExample = map[string]interface{}{
		"auto_select":    true,
		"tags":           []string{"testing-fe"},
		"count":          2,
		"distro_series":  DefaultDistroSeries,
		"tag_match_mode": string(models.TagMatchAll),
	}
	manualExample = map[string]interface{}{
		"machines":      []string{"wekapoc1", "wekapoc2", "wekapoc3"},
		"distro_series": DefaultDistroSeries,
		"note":          "Use hostnames or system IDs",
	}
)

// IsAutoSelect reports whether the request selects machines by tags. Tags without
// machines imply auto-selection even when auto_select is omitted.
func (r *ProvisionRequest) IsAutoSelect() bool {
	return r.AutoSelect || (len(r.Tags) > 0 && len(r.Machines) == 0)
}

// Validate checks the request shape and returns a *ValidationError on failure
func (r *ProvisionRequest) Validate() error {
	if r.IsAutoSelect() {
		if len(r.Tags) == 0 {
			return &ValidationError{
				Message: "tags array is required for automatic machine selection",
				Example: autoSelectExample,
			}
		}
		if r.Count < 1 {
			return &ValidationError{
				Message: "count is required and must be greater than 0 for automatic machine selection",
				Example: autoSelectExample,
			}
		}
		if _, err := models.ParseTagMatchMode(r.TagMatchMode); err != nil {
			return &ValidationError{Message: err.Error(), Example: autoSelectExample}
		}
		return nil
	}

	if len(r.Machines) == 0 {
		return &ValidationError{
			Message: "machines array is required when not using automatic selection",
			Example: manualExample,
		}
	}
	for i, m := range r.Machines {
		if strings.TrimSpace(m) == "" {
			return &ValidationError{
				Message: fmt.Sprintf("machines must not contain empty identifiers (index %d)", i),
				Example: manualExample,
			}
		}
	}
	return nil
}

// JobConfig returns the immutable job snapshot of a validated request
func (r *ProvisionRequest) JobConfig() models.JobConfig {
	series := strings.TrimSpace(r.DistroSeries)
	if series == "" {
		series = DefaultDistroSeries
	}
	mode, err := models.ParseTagMatchMode(r.TagMatchMode)
	if err != nil {
		mode = models.TagMatchAll
	}

	cfg := models.JobConfig{
		DistroSeries: series,
		UserData:     r.UserData,
		Pool:         r.Pool,
		Count:        r.Count,
		AutoSelect:   r.IsAutoSelect(),
		TagMatchMode: mode,
	}
	if len(r.Machines) > 0 {
		cfg.Machines = append(cfg.Machines, r.Machines...)
	}
	if len(r.Tags) > 0 {
		cfg.Tags = append(cfg.Tags, r.Tags...)
	}
	return cfg
}
