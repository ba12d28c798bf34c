package domain

import (
	"math"
)

// Status codes carried by every hypothesis.
const (
	StatusValid    = 0
	StatusFallback = -1
)

// SentinelValue fills every scalar of a sentinel hypothesis.
const SentinelValue = -1.0

// FallbackReason tells why a sentinel hypothesis was emitted. It is empty on
// valid hypotheses.
type FallbackReason string

// Fallback reasons.
const (
	FallbackNone FallbackReason = ""
	// FallbackPrecondition is used when the event lacks a lepton, a MET
	// object or enough jets, and the engine was never invoked.
	FallbackPrecondition FallbackReason = "precondition_failure"
	// FallbackNoConvergence is used when the engine ran but no permutation
	// survived filtering.
	FallbackNoConvergence FallbackReason = "no_convergence"
)

// Hypothesis is one ranked jet-parton assignment. It is built once per fit
// permutation and not modified afterwards.
type Hypothesis struct {
	Status int `json:"status"`

	// FitCost is the chi-square equivalent of the fit; lower is better.
	FitCost float64 `json:"chi2"`

	// Probability is exp(-FitCost/2) for converged fits.
	Probability float64 `json:"prob"`

	TopMass      float64 `json:"mt"`
	TopMassSigma float64 `json:"sigmt"`

	HadB      FourVector `json:"had_b"`
	LightQ    FourVector `json:"had_p"`
	LightQBar FourVector `json:"had_q"`
	LepB      FourVector `json:"lep_b"`
	Lepton    FourVector `json:"lepton"`
	Neutrino  FourVector `json:"neutrino"`

	JetIndices JetIndices `json:"jet_combi"`

	Permutation    string         `json:"permutation,omitempty"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
}

// NewSentinelHypothesis returns the fallback record: status -1, every
// scalar -1, every jet index -1 and empty four-vectors.
func NewSentinelHypothesis(reason FallbackReason) Hypothesis {
	return Hypothesis{
		Status:         StatusFallback,
		FitCost:        SentinelValue,
		Probability:    SentinelValue,
		TopMass:        SentinelValue,
		TopMassSigma:   SentinelValue,
		JetIndices:     InvalidJetIndices(),
		FallbackReason: reason,
	}
}

// IsSentinel reports whether h is a fallback record.
func (h Hypothesis) IsSentinel() bool { return h.Status == StatusFallback }

// Converged reports whether the fit behind h converged. NaN costs never do.
func Converged(h Hypothesis) bool { return h.FitCost > 0 }

// FitProbability converts a fit cost to exp(-cost/2). Non-positive costs
// have no probability and map to 0.
func FitProbability(cost float64) float64 {
	if !(cost > 0) {
		return 0
	}
	return math.Exp(-cost / 2)
}

// Parton returns the four-vector stored for role r.
func (h Hypothesis) Parton(r Role) FourVector {
	switch r {
	case RoleLightQ:
		return h.LightQ
	case RoleLightQBar:
		return h.LightQBar
	case RoleHadB:
		return h.HadB
	case RoleLepB:
		return h.LepB
	}
	return FourVector{}
}

// HadronicW returns the summed four-momentum of the two light quarks.
func (h Hypothesis) HadronicW() FourVector { return h.LightQ.Add(h.LightQBar) }

// HadronicTop returns the summed four-momentum of the hadronic top decay.
func (h Hypothesis) HadronicTop() FourVector { return h.HadronicW().Add(h.HadB) }

// LeptonicTop returns the summed four-momentum of the leptonic top decay.
func (h Hypothesis) LeptonicTop() FourVector {
	return h.Lepton.Add(h.Neutrino).Add(h.LepB)
}
