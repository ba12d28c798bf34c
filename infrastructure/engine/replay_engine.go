package engine

import (
	"context"
	"errors"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.FitEngine = (*ReplayEngine)(nil)

// ErrIncompleteInput is returned when FitAllPermutations is called before a
// lepton and a MET object were supplied.
var ErrIncompleteInput = errors.New("engine needs a lepton and a MET object")

// ReplayEngine is a FitEngine that serves recorded fit output from a shared
// Catalogue. Only recordings made under the engine's settings are served.
// Like any engine it accumulates the inputs of one event, so an instance
// must not be used by two goroutines at once.
type ReplayEngine struct {
	catalogue *Catalogue
	settings  ports.FitSettings

	lepton *domain.Lepton
	jets   []domain.Jet
	met    *domain.MET
}

// NewReplayEngine creates an engine backed by catalogue that fits with
// settings.
func NewReplayEngine(catalogue *Catalogue, settings ports.FitSettings) *ReplayEngine {
	return &ReplayEngine{catalogue: catalogue, settings: settings}
}

// Factory returns a ports.EngineFactory producing engines that share
// catalogue and settings.
func Factory(catalogue *Catalogue, settings ports.FitSettings) ports.EngineFactory {
	return func() (ports.FitEngine, error) {
		if catalogue == nil {
			return nil, errors.New("replay engine needs a catalogue")
		}
		return NewReplayEngine(catalogue, settings), nil
	}
}

// Settings returns the fit settings the engine serves recordings for.
func (e *ReplayEngine) Settings() ports.FitSettings { return e.settings }

// Clear drops the accumulated inputs.
func (e *ReplayEngine) Clear() {
	e.lepton = nil
	e.jets = e.jets[:0]
	e.met = nil
}

// AddLepton sets the lepton. Only one lepton is fitted; a second call
// replaces the first.
func (e *ReplayEngine) AddLepton(lepton domain.Lepton) { e.lepton = &lepton }

// AddJet appends a jet.
func (e *ReplayEngine) AddJet(jet domain.Jet) { e.jets = append(e.jets, jet) }

// SetMET sets the MET object.
func (e *ReplayEngine) SetMET(met domain.MET) { e.met = &met }

// FitAllPermutations looks up the recording for the accumulated inputs.
func (e *ReplayEngine) FitAllPermutations(ctx context.Context) ([]domain.FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.lepton == nil || e.met == nil {
		return nil, ErrIncompleteInput
	}
	return e.catalogue.Lookup(e.settings, *e.lepton, e.jets, *e.met)
}
