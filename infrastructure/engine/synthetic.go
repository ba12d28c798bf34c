package engine

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// SyntheticOptions shapes a generated data set.
type SyntheticOptions struct {
	// Events is the number of events to generate.
	Events int
	// Seed makes the data set reproducible.
	Seed uint64
	// FittedJets caps the jets the recorded permutations assign roles to.
	FittedJets int
	// NonConverged is the fraction of permutations recorded as failed fits.
	NonConverged float64
	// ShortEvents is the fraction of events generated with only three jets.
	ShortEvents float64
	// Settings are stamped on every recording.
	Settings ports.FitSettings
}

// DefaultSyntheticOptions returns options for a small mixed data set.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Events:       100,
		Seed:         1,
		FittedJets:   5,
		NonConverged: 0.3,
		ShortEvents:  0.1,
	}
}

// GenerateSynthetic builds events together with the recordings a replay
// engine needs to rank them. Every permutation assigns the four roles to
// distinct jets among the leading FittedJets; the light-quark pair is only
// enumerated in one order.
func GenerateSynthetic(opts SyntheticOptions) ([]domain.Event, []Recording) {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	fitted := max(domain.NumRoles, opts.FittedJets)
	opts.Events = max(0, opts.Events)

	events := make([]domain.Event, 0, opts.Events)
	recordings := make([]Recording, 0, opts.Events)
	for i := range opts.Events {
		nJets := 4 + rng.IntN(5)
		if rng.Float64() < opts.ShortEvents {
			nJets = 3
		}

		ev := domain.Event{
			ID:      fmt.Sprintf("synthetic-%06d", i),
			Jets:    syntheticJets(rng, nJets),
			Leptons: []domain.Lepton{{P4: syntheticP4(rng, 25, 0.000511), Charge: 1 - 2*rng.IntN(2)}},
			METs:    []domain.MET{{P4: syntheticP4(rng, 20, 0)}},
		}
		events = append(events, ev)

		if nJets < domain.NumRoles {
			continue
		}
		recordings = append(recordings, Recording{
			EventID:  ev.ID,
			Settings: opts.Settings,
			Lepton:   ev.Leptons[0],
			Jets:     ev.Jets,
			MET:      ev.METs[0],
			Results:  syntheticResults(rng, ev, min(fitted, nJets), opts.NonConverged),
		})
	}
	return events, recordings
}

// syntheticJets returns n jets ordered by falling transverse momentum.
func syntheticJets(rng *rand.Rand, n int) []domain.Jet {
	jets := make([]domain.Jet, n)
	pt := 150 + 100*rng.Float64()
	for i := range jets {
		jets[i] = domain.Jet{
			P4:             syntheticP4WithPt(rng, pt, 5+5*rng.Float64()),
			BDiscriminator: rng.Float64(),
		}
		pt *= 0.6 + 0.3*rng.Float64()
	}
	return jets
}

func syntheticP4(rng *rand.Rand, minPt, mass float64) domain.FourVector {
	return syntheticP4WithPt(rng, minPt+rng.ExpFloat64()*30, mass)
}

func syntheticP4WithPt(rng *rand.Rand, pt, mass float64) domain.FourVector {
	phi := 2 * math.Pi * rng.Float64()
	eta := 4*rng.Float64() - 2
	px, py, pz := pt*math.Cos(phi), pt*math.Sin(phi), pt*math.Sinh(eta)
	return domain.FourVector{
		Px: px, Py: py, Pz: pz,
		E: math.Sqrt(px*px + py*py + pz*pz + mass*mass),
	}
}

// syntheticResults enumerates the role assignments over the first n jets.
func syntheticResults(rng *rand.Rand, ev domain.Event, n int, nonConverged float64) []domain.FitResult {
	var results []domain.FitResult
	for q := range n {
		for qbar := q + 1; qbar < n; qbar++ {
			for hadB := range n {
				for lepB := range n {
					if hadB == q || hadB == qbar || lepB == q || lepB == qbar || lepB == hadB {
						continue
					}
					results = append(results, syntheticResult(rng, ev, [domain.NumRoles]int{q, qbar, hadB, lepB}, nonConverged))
				}
			}
		}
	}
	return results
}

func syntheticResult(rng *rand.Rand, ev domain.Event, roles [domain.NumRoles]int, nonConverged float64) domain.FitResult {
	tags := [domain.NumRoles]int{domain.TagLightQ, domain.TagLightQBar, domain.TagHadB, domain.TagLepB}

	jets := make([]domain.FittedJet, len(ev.Jets))
	for i, j := range ev.Jets {
		jets[i] = domain.FittedJet{P4: smear(rng, j.P4, 0.05), Type: domain.TagUnassigned}
	}
	for role, idx := range roles {
		jets[idx].Type = tags[role]
	}

	chi2 := rng.ExpFloat64() * 8
	if rng.Float64() < nonConverged {
		chi2 = -1
	}

	return domain.FitResult{
		Chi2:         chi2,
		Jets:         jets,
		Lepton:       smear(rng, ev.Leptons[0].P4, 0.01),
		MET:          smear(rng, ev.METs[0].P4, 0.2),
		TopMass:      172.5 + rng.NormFloat64()*8,
		TopMassSigma: 2 + 3*rng.Float64(),
		Permutation:  fmt.Sprintf("%d%d%d%d", roles[0], roles[1], roles[2], roles[3]),
	}
}

func smear(rng *rand.Rand, v domain.FourVector, width float64) domain.FourVector {
	f := 1 + width*rng.NormFloat64()
	return domain.FourVector{Px: v.Px * f, Py: v.Py * f, Pz: v.Pz * f, E: v.E * f}
}
