package domain

// Ranker orders candidate hypotheses and bounds how many are kept.
// Implementations must not modify the input slice and must return the
// hypotheses ordered best first.
//
// Example:
//
//	ranked := ranker.Rank(converged)
//	best := ranked[0]
type Ranker interface {
	// Rank returns the hypotheses ordered by ascending FitCost, truncated to
	// the implementation's bound. An empty input yields an empty result.
	Rank(hypotheses []Hypothesis) []Hypothesis
}
