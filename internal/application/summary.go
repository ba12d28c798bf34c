package application

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/ahrav/hitrank/internal/domain"
)

// Summary describes a processed batch.
type Summary struct {
	Events       int                           `json:"events"`
	Ranked       int                           `json:"ranked"`
	Failed       int                           `json:"failed"`
	Fallbacks    map[domain.FallbackReason]int `json:"fallbacks"`
	Permutations domain.PermutationStats       `json:"permutations"`
	Hypotheses   int                           `json:"hypotheses"`
	// BestChi2 summarises the fit cost of the leading hypothesis of every
	// ranked event. It is zero when no event was ranked.
	BestChi2 Distribution `json:"best_chi2"`
	// BestHadTopMass summarises the reconstructed hadronic top mass of the
	// same hypotheses.
	BestHadTopMass Distribution `json:"best_had_top_mass"`
}

// Distribution holds summary statistics of a sample.
type Distribution struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// Summarize aggregates batch results.
func Summarize(results []domain.EventResult) (Summary, error) {
	s := Summary{
		Events:    len(results),
		Fallbacks: make(map[domain.FallbackReason]int),
	}

	var best, topMass stats.Float64Data
	for _, r := range results {
		if r.Failed() {
			s.Failed++
			continue
		}
		s.Permutations.Total += r.Permutations.Total
		s.Permutations.Converged += r.Permutations.Converged
		s.Permutations.NonConverged += r.Permutations.NonConverged
		s.Permutations.Malformed += r.Permutations.Malformed

		if r.FallbackReason != domain.FallbackNone {
			s.Fallbacks[r.FallbackReason]++
			continue
		}
		s.Ranked++
		s.Hypotheses += len(r.Hypotheses)
		h := r.Best()
		best = append(best, h.FitCost)
		topMass = append(topMass, h.HadronicTop().Mass())
	}

	if len(best) == 0 {
		return s, nil
	}

	d, err := distribution(best)
	if err != nil {
		return s, fmt.Errorf("summarize best chi2: %w", err)
	}
	s.BestChi2 = d

	if s.BestHadTopMass, err = distribution(topMass); err != nil {
		return s, fmt.Errorf("summarize hadronic top mass: %w", err)
	}
	return s, nil
}

func distribution(data stats.Float64Data) (Distribution, error) {
	var (
		d   Distribution
		err error
	)
	if d.Min, err = stats.Min(data); err != nil {
		return d, err
	}
	if d.Max, err = stats.Max(data); err != nil {
		return d, err
	}
	if d.Mean, err = stats.Mean(data); err != nil {
		return d, err
	}
	if d.Median, err = stats.Median(data); err != nil {
		return d, err
	}
	if d.P90, err = stats.Percentile(data, 90); err != nil {
		return d, err
	}
	return d, nil
}
