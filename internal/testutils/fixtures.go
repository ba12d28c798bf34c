// Package testutils provides fixtures and test doubles shared by the
// package tests.
package testutils

import (
	"fmt"

	"github.com/ahrav/hitrank/internal/domain"
)

// Jet type tags in role order: LightQ, LightQBar, HadB, LepB.
var roleTags = [domain.NumRoles]int{
	domain.TagLightQ, domain.TagLightQBar, domain.TagHadB, domain.TagLepB,
}

// NewEvent builds an event with nJets jets, and nLeptons leptons and nMETs
// MET objects. Jet i carries a distinct, decreasing transverse momentum.
func NewEvent(id string, nJets, nLeptons, nMETs int) domain.Event {
	ev := domain.Event{ID: id}
	for i := range nJets {
		pt := 100.0 - 10.0*float64(i)
		ev.Jets = append(ev.Jets, domain.Jet{
			P4: domain.FourVector{Px: pt, Py: 0, Pz: float64(i), E: pt + 5},
		})
	}
	for i := range nLeptons {
		ev.Leptons = append(ev.Leptons, domain.Lepton{
			P4:     domain.FourVector{Px: 0, Py: 40 + float64(i), Pz: 10, E: 45 + float64(i)},
			Charge: -1,
		})
	}
	for i := range nMETs {
		ev.METs = append(ev.METs, domain.MET{
			P4: domain.FourVector{Px: -30 - float64(i), Py: -20, Pz: 0, E: 36},
		})
	}
	return ev
}

// NewFitResult builds a permutation result over jetCount jets with cost chi2.
// roleJets gives the jet index of each role in role order; the remaining jets
// are tagged unassigned. The fitted four-vectors are derived from the jet
// index so each can be traced back to its input position.
func NewFitResult(chi2 float64, jetCount int, roleJets [domain.NumRoles]int) domain.FitResult {
	jets := make([]domain.FittedJet, jetCount)
	for i := range jets {
		jets[i] = domain.FittedJet{P4: FittedP4(i), Type: domain.TagUnassigned}
	}
	for role, idx := range roleJets {
		if idx >= 0 && idx < jetCount {
			jets[idx].Type = roleTags[role]
		}
	}
	return domain.FitResult{
		Chi2:         chi2,
		Jets:         jets,
		Lepton:       domain.FourVector{Px: 1, Py: 41, Pz: 10, E: 46},
		MET:          domain.FourVector{Px: -31, Py: -21, Pz: 5, E: 38},
		TopMass:      172.5 + chi2,
		TopMassSigma: 1.5,
		Permutation:  fmt.Sprintf("%d%d%d%d", roleJets[0], roleJets[1], roleJets[2], roleJets[3]),
	}
}

// FittedP4 is the fitted four-vector NewFitResult gives to jet index i.
func FittedP4(i int) domain.FourVector {
	f := float64(i)
	return domain.FourVector{Px: 10 + f, Py: 20 + f, Pz: 30 + f, E: 100 + f}
}

// ResultsWithCosts builds one result per cost over jetCount jets, cycling
// through distinct role assignments among the first four jets. Results keep
// the order of costs.
func ResultsWithCosts(jetCount int, costs ...float64) []domain.FitResult {
	assignments := [][domain.NumRoles]int{
		{0, 1, 2, 3},
		{0, 1, 3, 2},
		{0, 2, 1, 3},
		{0, 2, 3, 1},
		{1, 2, 0, 3},
		{1, 2, 3, 0},
	}
	results := make([]domain.FitResult, len(costs))
	for i, c := range costs {
		results[i] = NewFitResult(c, jetCount, assignments[i%len(assignments)])
	}
	return results
}
