package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Unit = (*PreconditionUnit)(nil)

// PreconditionUnit decides whether an event can be fitted at all. An event
// without a lepton, without a MET object, or with fewer jets than partons is
// routed to the fallback policy and the fit engine is never invoked.
type PreconditionUnit struct {
	name   string
	config PreconditionConfig
}

// PreconditionConfig defines the configuration parameters for the PreconditionUnit.
type PreconditionConfig struct {
	// MinJets is the smallest jet multiplicity that can be fitted. It can be
	// raised above the number of partons but never lowered below it.
	MinJets int `yaml:"min_jets" json:"min_jets" validate:"min=4"`
}

// DefaultPreconditionConfig returns a PreconditionConfig requiring one jet
// per parton.
func DefaultPreconditionConfig() PreconditionConfig {
	return PreconditionConfig{MinJets: domain.NumRoles}
}

// NewPreconditionUnit creates a new PreconditionUnit with the given configuration.
func NewPreconditionUnit(name string, config PreconditionConfig) (*PreconditionUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &PreconditionUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (pu *PreconditionUnit) Name() string { return pu.name }

// Check reports the fallback reason for ev, or domain.FallbackNone when the
// event can be fitted.
func (pu *PreconditionUnit) Check(ev domain.Event) domain.FallbackReason {
	if len(ev.Leptons) == 0 || len(ev.METs) == 0 || len(ev.Jets) < pu.config.MinJets {
		return domain.FallbackPrecondition
	}
	return domain.FallbackNone
}

// Execute records the precondition verdict in the state.
func (pu *PreconditionUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	ev, ok := domain.Get(state, domain.KeyEvent)
	if !ok {
		return state, fmt.Errorf("unit %s: %w", pu.name, domain.MissingKey(domain.KeyEvent))
	}

	state = domain.WithPhase(state, domain.PhasePreconditionCheck)
	if reason := pu.Check(ev); reason != domain.FallbackNone {
		state = domain.With(state, domain.KeyFallbackReason, reason)
		state = domain.WithPhase(state, domain.PhaseFallback)
	}
	return state, nil
}

// Validate checks if the unit is properly configured and ready for execution.
func (pu *PreconditionUnit) Validate() error {
	if err := validate.Struct(pu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters decodes and validates YAML parameters into the unit's
// configuration. Omitted fields keep their current values.
func (pu *PreconditionUnit) UnmarshalParameters(params yaml.Node) error {
	config := pu.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	pu.config = config
	return nil
}

// CreatePreconditionUnit is a factory function that creates a
// PreconditionUnit from a configuration map.
func CreatePreconditionUnit(id string, config map[string]any) (*PreconditionUnit, error) {
	cfg := DefaultPreconditionConfig()
	if n, ok := intParam(config, "min_jets"); ok {
		cfg.MinJets = n
	}
	return NewPreconditionUnit(id, cfg)
}
