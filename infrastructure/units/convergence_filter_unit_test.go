package units

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/hitrank/internal/domain"
)

func hypothesesWithCosts(costs ...float64) []domain.Hypothesis {
	out := make([]domain.Hypothesis, len(costs))
	for i, c := range costs {
		out[i] = domain.Hypothesis{
			FitCost:     c,
			Probability: domain.FitProbability(c),
			JetIndices:  domain.JetIndices{0, 1, 2, 3},
			Permutation: string(rune('a' + i)),
		}
	}
	return out
}

func TestConvergenceFilterUnit_Filter(t *testing.T) {
	tests := []struct {
		name     string
		costs    []float64
		expected []float64
	}{
		{"all converged", []float64{4, 1.5, 9}, []float64{4, 1.5, 9}},
		{"none converged", []float64{-4, -1.5, -9}, []float64{}},
		{"zero cost is not converged", []float64{0, 2}, []float64{2}},
		{"NaN is not converged", []float64{math.NaN(), 3}, []float64{3}},
		{"order is preserved", []float64{5, -1, 2, 0, 1}, []float64{5, 2, 1}},
		{"empty input", nil, []float64{}},
	}

	unit, err := NewConvergenceFilterUnit("filter")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := unit.Filter(hypothesesWithCosts(tt.costs...))
			got := make([]float64, len(kept))
			for i, h := range kept {
				got[i] = h.FitCost
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestConvergenceFilterUnit_Execute(t *testing.T) {
	unit, err := NewConvergenceFilterUnit("filter")
	require.NoError(t, err)

	state := domain.With(domain.NewState(), domain.KeyCandidates, hypothesesWithCosts(3, -1, 2, -5))
	state = domain.With(state, domain.KeyPermutationStats, domain.PermutationStats{Total: 5, Malformed: 1})

	out, err := unit.Execute(context.Background(), state)
	require.NoError(t, err)

	kept, _ := domain.Get(out, domain.KeyCandidates)
	assert.Len(t, kept, 2)

	stats, _ := domain.Get(out, domain.KeyPermutationStats)
	assert.Equal(t, domain.PermutationStats{Total: 5, Converged: 2, NonConverged: 2, Malformed: 1}, stats)

	_, err = unit.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	_, err = NewConvergenceFilterUnit("")
	assert.ErrorIs(t, err, ErrEmptyUnitName)
}
