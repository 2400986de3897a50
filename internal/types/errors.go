package types

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed provisioning request. No job is created.
type ValidationError struct {
	Message string
	Example map[string]interface{}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AvailableMachine describes a machine that qualified for auto-selection
type AvailableMachine struct {
	SystemID string   `json:"system_id"`
	Hostname string   `json:"hostname"`
	Tags     []string `json:"tags"`
	Pool     string   `json:"pool"`
}

// ResourceInsufficientError rejects an auto-selection that found fewer Ready
// machines than requested. Machines lists every machine that did qualify.
type ResourceInsufficientError struct {
	RequestedCount int
	AvailableCount int
	RequiredTags   []string
	Pool           string
	Machines       []AvailableMachine
}

func (e *ResourceInsufficientError) Error() string {
	return e.Message()
}

// PoolLabel is the pool reported to callers, "any configured pool" when unrestricted
func (e *ResourceInsufficientError) PoolLabel() string {
	if e.Pool == "" {
		return "any configured pool"
	}
	return e.Pool
}

// Message is the human-readable explanation of the rejection
func (e *ResourceInsufficientError) Message() string {
	poolInfo := ""
	if e.Pool != "" {
		poolInfo = fmt.Sprintf(" in pool '%s'", e.Pool)
	}
	return fmt.Sprintf("Requested %d machines with tags [%s]%s, but only %d ready machines available",
		e.RequestedCount, strings.Join(e.RequiredTags, ", "), poolInfo, e.AvailableCount)
}
