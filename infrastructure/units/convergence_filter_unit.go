package units

import (
	"context"
	"fmt"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Unit = (*ConvergenceFilterUnit)(nil)

// ConvergenceFilterUnit keeps only candidates whose fit converged, i.e.
// whose fit cost is strictly positive. It has no configuration.
type ConvergenceFilterUnit struct {
	name string
}

// NewConvergenceFilterUnit creates a new ConvergenceFilterUnit.
func NewConvergenceFilterUnit(name string) (*ConvergenceFilterUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &ConvergenceFilterUnit{name: name}, nil
}

// Name returns the unique identifier for this unit instance.
func (cf *ConvergenceFilterUnit) Name() string { return cf.name }

// Filter returns the converged hypotheses in their original order.
func (cf *ConvergenceFilterUnit) Filter(hypotheses []domain.Hypothesis) []domain.Hypothesis {
	kept := make([]domain.Hypothesis, 0, len(hypotheses))
	for _, h := range hypotheses {
		if domain.Converged(h) {
			kept = append(kept, h)
		}
	}
	return kept
}

// Execute replaces the candidates with the converged ones and updates the
// permutation bookkeeping.
func (cf *ConvergenceFilterUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	if domain.FallbackReasonOf(state) != domain.FallbackNone {
		return state, nil
	}

	candidates, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		return state, fmt.Errorf("unit %s: %w", cf.name, domain.MissingKey(domain.KeyCandidates))
	}

	kept := cf.Filter(candidates)

	stats, _ := domain.Get(state, domain.KeyPermutationStats)
	stats.Converged = len(kept)
	stats.NonConverged = len(candidates) - len(kept)

	state = domain.With(state, domain.KeyPermutationStats, stats)
	return domain.With(state, domain.KeyCandidates, kept), nil
}

// Validate always succeeds; the filter has nothing to configure.
func (cf *ConvergenceFilterUnit) Validate() error { return nil }

// CreateConvergenceFilterUnit is a factory function that creates a
// ConvergenceFilterUnit. The configuration map is ignored.
func CreateConvergenceFilterUnit(id string, _ map[string]any) (*ConvergenceFilterUnit, error) {
	return NewConvergenceFilterUnit(id)
}
