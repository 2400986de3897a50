package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/maasprov/internal/db/models"
)

func TestProvisionRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ProvisionRequest
		wantErr string
	}{
		{
			name: "manual",
			req:  ProvisionRequest{Machines: []string{"m1", "abc123"}},
		},
		{
			name:    "empty request",
			req:     ProvisionRequest{},
			wantErr: "machines array is required when not using automatic selection",
		},
		{
			name:    "blank identifier",
			req:     ProvisionRequest{Machines: []string{"m1", " "}},
			wantErr: "machines must not contain empty identifiers (index 1)",
		},
		{
			name: "auto select",
			req:  ProvisionRequest{AutoSelect: true, Tags: []string{"gpu"}, Count: 2, TagMatchMode: "any"},
		},
		{
			name: "tags without machines imply auto select",
			req:  ProvisionRequest{Tags: []string{"gpu"}, Count: 1},
		},
		{
			name:    "auto select without tags",
			req:     ProvisionRequest{AutoSelect: true, Count: 2},
			wantErr: "tags array is required for automatic machine selection",
		},
		{
			name:    "auto select without count",
			req:     ProvisionRequest{AutoSelect: true, Tags: []string{"gpu"}},
			wantErr: "count is required and must be greater than 0 for automatic machine selection",
		},
		{
			name:    "negative count",
			req:     ProvisionRequest{Tags: []string{"gpu"}, Count: -1},
			wantErr: "count is required and must be greater than 0 for automatic machine selection",
		},
		{
			name:    "bad match mode",
			req:     ProvisionRequest{AutoSelect: true, Tags: []string{"gpu"}, Count: 1, TagMatchMode: "most"},
			wantErr: `invalid tag_match_mode: most (expected "all" or "any")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.NotEmpty(t, vErr.Example)
		})
	}
}

func TestProvisionRequestIsAutoSelect(t *testing.T) {
	assert.False(t, (&ProvisionRequest{Machines: []string{"m1"}}).IsAutoSelect())
	assert.False(t, (&ProvisionRequest{Machines: []string{"m1"}, Tags: []string{"gpu"}}).IsAutoSelect())
	assert.True(t, (&ProvisionRequest{Tags: []string{"gpu"}}).IsAutoSelect())
	assert.True(t, (&ProvisionRequest{AutoSelect: true, Machines: []string{"m1"}}).IsAutoSelect())
}

func TestProvisionRequestJobConfig(t *testing.T) {
	req := ProvisionRequest{
		AutoSelect: true,
		Tags:       []string{"gpu", "high-memory"},
		Count:      2,
		Pool:       "lab",
		UserData:   "#cloud-config",
	}

	cfg := req.JobConfig()
	assert.Equal(t, DefaultDistroSeries, cfg.DistroSeries)
	assert.Equal(t, models.TagMatchAll, cfg.TagMatchMode)
	assert.True(t, cfg.AutoSelect)
	assert.Equal(t, 2, cfg.Count)
	assert.Equal(t, "lab", cfg.Pool)
	assert.Equal(t, []string{"gpu", "high-memory"}, []string(cfg.Tags))
	assert.Nil(t, cfg.Machines)

	// the snapshot does not alias the caller's slices
	req.Tags[0] = "changed"
	assert.Equal(t, "gpu", cfg.Tags[0])
}

func TestInsufficientResourcesResponse(t *testing.T) {
	err := &ResourceInsufficientError{
		RequestedCount: 5,
		AvailableCount: 2,
		RequiredTags:   []string{"gpu", "nvme"},
		Machines: []AvailableMachine{
			{SystemID: "a1", Hostname: "m1", Tags: []string{"gpu", "nvme"}, Pool: "default"},
			{SystemID: "a2", Hostname: "m2", Tags: []string{"gpu", "nvme"}, Pool: "default"},
		},
	}

	assert.Equal(t, "Requested 5 machines with tags [gpu, nvme], but only 2 ready machines available", err.Error())

	resp := NewInsufficientResourcesResponse(err)
	assert.Equal(t, "Not enough resources to provision", resp.Error)
	assert.Equal(t, 5, resp.Details.RequestedCount)
	assert.Equal(t, 2, resp.Details.AvailableCount)
	assert.Equal(t, "any configured pool", resp.Details.Pool)
	assert.Len(t, resp.AvailableMachines, 2)

	err.Pool = "lab"
	assert.Contains(t, err.Message(), "in pool 'lab'")
	assert.Equal(t, "lab", NewInsufficientResourcesResponse(err).Details.Pool)
}

func TestInsufficientResourcesResponseEmpty(t *testing.T) {
	resp := NewInsufficientResourcesResponse(&ResourceInsufficientError{RequestedCount: 1})
	assert.NotNil(t, resp.AvailableMachines)
	assert.NotNil(t, resp.Details.RequiredTags)
}
