// Package models defines the provisioning job records and their persisted shape.
package models

const (
	// DefaultLimit is the max number of jobs returned per listing API call
	DefaultLimit = 50
)

// ListOptions represents limit and filtering options for job listings
type ListOptions struct {
	Limit  int       `json:"limit"`            // Number of items to return
	Status JobStatus `json:"status,omitempty"` // Filter by job status, unknown means no filter
}

// EffectiveLimit returns the configured limit, falling back to DefaultLimit
func (o *ListOptions) EffectiveLimit() int {
	if o == nil || o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}
