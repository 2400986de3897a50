package services

import (
	"context"
	"fmt"

	"github.com/celestiaorg/maasprov/internal/db/models"
	"github.com/celestiaorg/maasprov/internal/logger"
	"github.com/celestiaorg/maasprov/internal/maas"
	"github.com/celestiaorg/maasprov/internal/types"
)

// Selection is the resolved machine set of a provisioning request
type Selection struct {
	// Machines are identifiers handed to the runner: raw identifiers for
	// manual requests, system IDs for auto-selection.
	Machines   []string
	Validation *models.ResourceValidation
}

// Criteria are the auto-selection filters
type Criteria struct {
	Tags  []string
	Mode  models.TagMatchMode
	Pool  string
	Count int
}

// MatchesTags reports whether machineTags satisfy requested under mode.
// An empty request matches every machine.
func MatchesTags(machineTags, requested []string, mode models.TagMatchMode) bool {
	if len(requested) == 0 {
		return true
	}

	have := make(map[string]struct{}, len(machineTags))
	for _, tag := range machineTags {
		have[tag] = struct{}{}
	}

	if mode == models.TagMatchAny {
		for _, tag := range requested {
			if _, ok := have[tag]; ok {
				return true
			}
		}
		return false
	}

	for _, tag := range requested {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}

// InPools reports whether the machine's pool is one of pools
func InPools(m *maas.Machine, pools []string) bool {
	name := m.PoolName()
	for _, pool := range pools {
		if pool == name {
			return true
		}
	}
	return false
}

// QualifyingMachines filters the inventory down to Ready machines in the visible
// pools that match criteria. Inventory order is preserved.
func QualifyingMachines(inventory []maas.Machine, visiblePools []string, criteria Criteria) []maas.Machine {
	var out []maas.Machine
	for i := range inventory {
		m := &inventory[i]
		if !InPools(m, visiblePools) {
			continue
		}
		if criteria.Pool != "" && m.PoolName() != criteria.Pool {
			continue
		}
		if !MatchesTags(m.TagNames, criteria.Tags, criteria.Mode) {
			continue
		}
		if !m.IsReady() {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// SelectMachines picks the first criteria.Count qualifying machines, or returns a
// *types.ResourceInsufficientError listing every qualifying machine.
func SelectMachines(inventory []maas.Machine, visiblePools []string, criteria Criteria) (*Selection, error) {
	qualifying := QualifyingMachines(inventory, visiblePools, criteria)

	if len(qualifying) < criteria.Count {
		available := make([]types.AvailableMachine, 0, len(qualifying))
		for i := range qualifying {
			m := &qualifying[i]
			tags := m.TagNames
			if tags == nil {
				tags = []string{}
			}
			available = append(available, types.AvailableMachine{
				SystemID: m.SystemID,
				Hostname: m.DisplayName(),
				Tags:     tags,
				Pool:     m.PoolName(),
			})
		}
		return nil, &types.ResourceInsufficientError{
			RequestedCount: criteria.Count,
			AvailableCount: len(qualifying),
			RequiredTags:   append([]string(nil), criteria.Tags...),
			Pool:           criteria.Pool,
			Machines:       available,
		}
	}

	selected := make([]string, 0, criteria.Count)
	for _, m := range qualifying[:criteria.Count] {
		selected = append(selected, m.SystemID)
	}

	return &Selection{
		Machines: selected,
		Validation: &models.ResourceValidation{
			AutoSelected:     true,
			RequestedCount:   criteria.Count,
			AvailableCount:   len(qualifying),
			SelectedMachines: len(selected),
			SelectionCriteria: models.SelectionCriteria{
				Tags:         append([]string(nil), criteria.Tags...),
				TagMatchMode: criteria.Mode,
				Pool:         criteria.Pool,
				Status:       maas.StatusReady,
			},
		},
	}, nil
}

// Selector resolves the machines of a provisioning request before a job exists
type Selector struct {
	client       MachineClient
	visiblePools []string
}

// NewSelector creates a selector restricted to the given pools
func NewSelector(client MachineClient, visiblePools []string) *Selector {
	return &Selector{client: client, visiblePools: visiblePools}
}

// Select validates req and resolves its machine set. Manual identifiers pass
// through unresolved; the runner resolves them against a fresh inventory.
func (s *Selector) Select(ctx context.Context, req *types.ProvisionRequest) (*Selection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !req.IsAutoSelect() {
		return &Selection{Machines: append([]string(nil), req.Machines...)}, nil
	}

	mode, err := models.ParseTagMatchMode(req.TagMatchMode)
	if err != nil {
		return nil, &types.ValidationError{Message: err.Error()}
	}

	inventory, err := s.client.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-select machines: %w", err)
	}

	criteria := Criteria{Tags: req.Tags, Mode: mode, Pool: req.Pool, Count: req.Count}
	selection, err := SelectMachines(inventory, s.visiblePools, criteria)
	if err != nil {
		logger.WarnWithFields("Auto-selection rejected", logger.Fields{
			"tags":  req.Tags,
			"mode":  mode,
			"pool":  req.Pool,
			"count": req.Count,
		})
		return nil, err
	}

	logger.InfoWithFields("Auto-selected machines", logger.Fields{
		"selected":  selection.Machines,
		"available": selection.Validation.AvailableCount,
		"mode":      mode,
	})
	return selection, nil
}
