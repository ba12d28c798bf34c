package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/hitrank/infrastructure/units"
	"github.com/ahrav/hitrank/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// ConfigKeyFitEngine is the configuration key under which the fit engine is
// handed to the fit stage factory.
const ConfigKeyFitEngine = "fit_engine"

// DefaultUnitRegistry implements the UnitRegistry interface providing
// a factory for creating stage units based on type and configuration.
// It supports dynamic registration of unit factories. The registry holds no
// engine; the fit stage receives one through its configuration map.
type DefaultUnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultUnitRegistry creates a new unit registry with every built-in
// stage type registered.
func NewDefaultUnitRegistry() *DefaultUnitRegistry {
	registry := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
	}

	registry.registerBuiltinFactories()

	return registry
}

// registerBuiltinFactories registers the processing stages.
func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	r.factories[units.TypePrecondition] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreatePreconditionUnit(id, config)
	}

	r.factories[units.TypeFit] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateFitUnit(id, config)
	}

	r.factories[units.TypeHypothesisBuilder] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateHypothesisBuilderUnit(id, config)
	}

	r.factories[units.TypeConvergenceFilter] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateConvergenceFilterUnit(id, config)
	}

	r.factories[units.TypeRank] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateRankUnit(id, config)
	}

	r.factories[units.TypeFallback] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateFallbackUnit(id, config)
	}
}

// CreateUnit creates a new unit instance based on the provided type,
// identifier, and configuration. An unknown type yields an error naming the
// closest registered type.
func (r *DefaultUnitRegistry) CreateUnit(
	unitType string,
	id string,
	config map[string]any,
) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %w", unknownStageError(unitType, r.GetSupportedTypes()))
	}

	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}

	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}

	return unit, nil
}

// RegisterUnitFactory registers a new factory function for a specific unit
// type, replacing any existing one.
func (r *DefaultUnitRegistry) RegisterUnitFactory(
	unitType string,
	factory ports.UnitFactory,
) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[unitType] = factory
	return nil
}

// GetSupportedTypes returns the registered unit types in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	slices.Sort(types)

	return types
}
