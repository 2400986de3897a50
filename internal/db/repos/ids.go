package repos

import "github.com/google/uuid"

// jobIDPrefix marks provisioning job identifiers
const jobIDPrefix = "job-"

// NewJobID returns a globally unique job identifier
func NewJobID() string {
	return jobIDPrefix + uuid.NewString()
}
