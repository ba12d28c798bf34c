package units

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Unit = (*FitUnit)(nil)

// FitUnit drives the external fit engine for one event. It owns a stateful
// engine, so a FitUnit must not be shared between goroutines; parallel
// processing builds one unit per engine.
type FitUnit struct {
	name   string
	config FitConfig
	engine ports.FitEngine
	tracer trace.Tracer
}

// FitConfig defines the configuration parameters for the FitUnit.
type FitConfig struct {
	// MaxJets is how many leading jets are handed to the engine. MaxJetsAll
	// (-1) hands over every jet; other values must be at least 4.
	MaxJets int `yaml:"max_jets" json:"max_jets" validate:"maxjets"`
}

// DefaultFitConfig returns a FitConfig that considers every jet.
func DefaultFitConfig() FitConfig {
	return FitConfig{MaxJets: MaxJetsAll}
}

// NewFitUnit creates a new FitUnit bound to engine.
func NewFitUnit(name string, config FitConfig, engine ports.FitEngine) (*FitUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if engine == nil {
		return nil, ErrNilEngine
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &FitUnit{
		name:   name,
		config: config,
		engine: engine,
		tracer: otel.Tracer("fit-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (fu *FitUnit) Name() string { return fu.name }

// JetsConsidered returns how many of available jets are handed to the engine.
func (fu *FitUnit) JetsConsidered(available int) int {
	if fu.config.MaxJets == MaxJetsAll || fu.config.MaxJets > available {
		return available
	}
	return fu.config.MaxJets
}

// Execute clears the engine, feeds it the event's first lepton, its leading
// jets and its first MET object, and stores every permutation result.
// Events already routed to the fallback policy pass through untouched.
func (fu *FitUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if domain.FallbackReasonOf(state) != domain.FallbackNone {
		return state, nil
	}

	ev, ok := domain.Get(state, domain.KeyEvent)
	if !ok {
		return state, fmt.Errorf("unit %s: %w", fu.name, domain.MissingKey(domain.KeyEvent))
	}
	if len(ev.Leptons) == 0 || len(ev.METs) == 0 {
		return state, fmt.Errorf("unit %s: event %s reached the fit without lepton or MET", fu.name, ev.ID)
	}

	nJets := fu.JetsConsidered(len(ev.Jets))
	ctx, span := fu.tracer.Start(ctx, "FitUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeFit),
			attribute.String("unit.id", fu.name),
			attribute.String("event.id", ev.ID),
			attribute.Int("config.max_jets", fu.config.MaxJets),
			attribute.Int("fit.jets", nJets),
		),
	)
	defer span.End()

	state = domain.WithPhase(state, domain.PhaseFitting)
	start := time.Now()

	fu.engine.Clear()
	fu.engine.AddLepton(ev.Leptons[0])
	for _, jet := range ev.Jets[:nJets] {
		fu.engine.AddJet(jet)
	}
	fu.engine.SetMET(ev.METs[0])

	results, err := fu.engine.FitAllPermutations(ctx)
	if err != nil {
		err = fmt.Errorf("unit %s: %w", fu.name, ports.NewFitError(ev.ID, nJets, err))
		span.RecordError(err)
		return state, err
	}

	span.SetAttributes(
		attribute.Int("fit.permutations", len(results)),
		attribute.Int64("fit.latency_ms", time.Since(start).Milliseconds()),
	)

	state = domain.With(state, domain.KeyJetCount, nJets)
	return domain.With(state, domain.KeyFitResults, results), nil
}

// Validate checks if the unit is properly configured and ready for execution.
func (fu *FitUnit) Validate() error {
	if fu.engine == nil {
		return ErrNilEngine
	}
	if err := validate.Struct(fu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes and validates YAML parameters into the unit's
// configuration. Omitted fields keep their current values.
func (fu *FitUnit) UnmarshalParameters(params yaml.Node) error {
	config := fu.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	fu.config = config
	return nil
}

// CreateFitUnit is a factory function that creates a FitUnit from a
// configuration map. The engine is injected under the "fit_engine" key.
func CreateFitUnit(id string, config map[string]any) (*FitUnit, error) {
	engine, ok := config["fit_engine"].(ports.FitEngine)
	if !ok || engine == nil {
		return nil, ErrNilEngine
	}

	cfg := DefaultFitConfig()
	if n, ok := intParam(config, "max_jets"); ok {
		cfg.MaxJets = n
	}
	return NewFitUnit(id, cfg, engine)
}
