package units

import (
	"context"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Unit = (*FallbackUnit)(nil)

// FallbackUnit is the last stage. It guarantees a non-empty output: an event
// routed away by the precondition check, or one where no permutation
// survived, gets a single sentinel hypothesis tagged with the reason.
type FallbackUnit struct {
	name string
}

// NewFallbackUnit creates a new FallbackUnit.
func NewFallbackUnit(name string) (*FallbackUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &FallbackUnit{name: name}, nil
}

// Name returns the unique identifier for this unit instance.
func (fb *FallbackUnit) Name() string { return fb.name }

// Execute settles the event's outcome.
func (fb *FallbackUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	reason := domain.FallbackReasonOf(state)
	hypotheses, _ := domain.Get(state, domain.KeyHypotheses)

	if reason == domain.FallbackNone && len(hypotheses) == 0 {
		reason = domain.FallbackNoConvergence
		state = domain.With(state, domain.KeyFallbackReason, reason)
	}

	if reason != domain.FallbackNone {
		state = domain.With(state, domain.KeyHypotheses,
			[]domain.Hypothesis{domain.NewSentinelHypothesis(reason)})
		return domain.WithPhase(state, domain.PhaseFallbackOutput), nil
	}
	return domain.WithPhase(state, domain.PhaseRankedOutput), nil
}

// Validate always succeeds; the fallback has nothing to configure.
func (fb *FallbackUnit) Validate() error { return nil }

// CreateFallbackUnit is a factory function that creates a FallbackUnit.
// The configuration map is ignored.
func CreateFallbackUnit(id string, _ map[string]any) (*FallbackUnit, error) {
	return NewFallbackUnit(id)
}
