package domain

import "time"

// Phase is a step of per-event processing.
type Phase string

// Processing phases in the order an event moves through them.
const (
	PhaseAwaitingInput     Phase = "awaiting_input"
	PhasePreconditionCheck Phase = "precondition_check"
	PhaseFitting           Phase = "fitting"
	PhaseFallback          Phase = "fallback"
	PhaseRankedOutput      Phase = "ranked_output"
	PhaseFallbackOutput    Phase = "fallback_output"
	PhaseEmitted           Phase = "emitted"

	// PhaseFailed marks an event whose fit engine failed. It carries no
	// hypotheses.
	PhaseFailed Phase = "failed"
)

// PermutationStats counts what happened to the engine's permutations.
type PermutationStats struct {
	Total        int `json:"total"`
	Converged    int `json:"converged"`
	NonConverged int `json:"non_converged"`
	Malformed    int `json:"malformed"`
}

// EventResult is the emitted output for one event. Unless the event failed,
// Hypotheses is never empty: it holds one or more valid hypotheses ordered by
// ascending FitCost, or a single sentinel.
type EventResult struct {
	EventID        string           `json:"event_id"`
	ExecutionID    string           `json:"execution_id"`
	Outcome        Phase            `json:"outcome"`
	FallbackReason FallbackReason   `json:"fallback_reason,omitempty"`
	Phases         []Phase          `json:"phases"`
	Permutations   PermutationStats `json:"permutations"`
	Hypotheses     []Hypothesis     `json:"hypotheses"`
	Duration       time.Duration    `json:"duration_ns"`
	Error          string           `json:"error,omitempty"`
}

// Failed reports whether the event could not be processed.
func (r EventResult) Failed() bool { return r.Outcome == PhaseFailed }

// Best returns the leading hypothesis.
func (r EventResult) Best() Hypothesis {
	if len(r.Hypotheses) == 0 {
		return NewSentinelHypothesis(r.FallbackReason)
	}
	return r.Hypotheses[0]
}

// Columns is the parallel-collection form of an EventResult used by the
// downstream event record. Every slice has the same length.
type Columns struct {
	PartonsHadP []FourVector `json:"PartonsHadP"`
	PartonsHadQ []FourVector `json:"PartonsHadQ"`
	PartonsHadB []FourVector `json:"PartonsHadB"`
	PartonsLepB []FourVector `json:"PartonsLepB"`
	Leptons     []FourVector `json:"Leptons"`
	Neutrinos   []FourVector `json:"Neutrinos"`
	JetCombi    [][]int      `json:"JetCombi"`
	Chi2        []float64    `json:"Chi2"`
	Prob        []float64    `json:"Prob"`
	MT          []float64    `json:"MT"`
	SigMT       []float64    `json:"SigMT"`
	Status      []int        `json:"Status"`
	// Invariant masses reconstructed from the fitted partons; -1 for the
	// sentinel.
	MWHad   []float64 `json:"MWHad"`
	MTopHad []float64 `json:"MTopHad"`
	MTopLep []float64 `json:"MTopLep"`
}

// Columns decomposes the hypotheses into parallel per-field slices.
func (r EventResult) Columns() Columns {
	n := len(r.Hypotheses)
	c := Columns{
		PartonsHadP: make([]FourVector, 0, n),
		PartonsHadQ: make([]FourVector, 0, n),
		PartonsHadB: make([]FourVector, 0, n),
		PartonsLepB: make([]FourVector, 0, n),
		Leptons:     make([]FourVector, 0, n),
		Neutrinos:   make([]FourVector, 0, n),
		JetCombi:    make([][]int, 0, n),
		Chi2:        make([]float64, 0, n),
		Prob:        make([]float64, 0, n),
		MT:          make([]float64, 0, n),
		SigMT:       make([]float64, 0, n),
		Status:      make([]int, 0, n),
		MWHad:       make([]float64, 0, n),
		MTopHad:     make([]float64, 0, n),
		MTopLep:     make([]float64, 0, n),
	}
	for _, h := range r.Hypotheses {
		c.PartonsHadP = append(c.PartonsHadP, h.Parton(RoleLightQ))
		c.PartonsHadQ = append(c.PartonsHadQ, h.Parton(RoleLightQBar))
		c.PartonsHadB = append(c.PartonsHadB, h.Parton(RoleHadB))
		c.PartonsLepB = append(c.PartonsLepB, h.Parton(RoleLepB))
		c.Leptons = append(c.Leptons, h.Lepton)
		c.Neutrinos = append(c.Neutrinos, h.Neutrino)
		c.JetCombi = append(c.JetCombi, h.JetIndices.Slice())
		c.Chi2 = append(c.Chi2, h.FitCost)
		c.Prob = append(c.Prob, h.Probability)
		c.MT = append(c.MT, h.TopMass)
		c.SigMT = append(c.SigMT, h.TopMassSigma)
		c.Status = append(c.Status, h.Status)

		mw, mth, mtl := -1.0, -1.0, -1.0
		if !h.IsSentinel() {
			mw, mth, mtl = h.HadronicW().Mass(), h.HadronicTop().Mass(), h.LeptonicTop().Mass()
		}
		c.MWHad = append(c.MWHad, mw)
		c.MTopHad = append(c.MTopHad, mth)
		c.MTopLep = append(c.MTopLep, mtl)
	}
	return c
}

// Len returns the common length of the collections.
func (c Columns) Len() int { return len(c.Status) }
