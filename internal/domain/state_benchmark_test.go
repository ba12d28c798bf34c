package domain

import (
	"fmt"
	"testing"
)

func benchmarkHypotheses(n int) []Hypothesis {
	hyps := make([]Hypothesis, n)
	for i := range hyps {
		hyps[i] = Hypothesis{
			FitCost:     float64(i + 1),
			Probability: FitProbability(float64(i + 1)),
			JetIndices:  JetIndices{0, 1, 2, 3},
			Permutation: "bBww",
		}
	}
	return hyps
}

func BenchmarkState_Get(b *testing.B) {
	for _, n := range []int{1, 24, 120} {
		b.Run(fmt.Sprintf("hypotheses_%d", n), func(b *testing.B) {
			s := With(NewState(), KeyCandidates, benchmarkHypotheses(n))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = Get(s, KeyCandidates)
			}
		})
	}
}

func BenchmarkState_With(b *testing.B) {
	hyps := benchmarkHypotheses(24)
	s := With(NewState(), KeyJetCount, 5)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = With(s, KeyCandidates, hyps)
	}
}
