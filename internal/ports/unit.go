// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/hitrank/internal/domain"
)

// Unit is one stage of per-event processing. Each Unit reads what earlier
// stages left in the State and returns a successor State with its own
// results added.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, tracing and metrics labels.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// The original State must not be modified. Expected per-event outcomes
	// such as failed preconditions or non-converged fits are recorded in the
	// returned State; an error means the event could not be processed.
	//
	// Example:
	//
	//	next, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return state, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks if the unit is properly configured and ready for execution.
	Validate() error
}

// UnitFactory builds a unit from its identifier and a loosely typed
// parameter map, typically decoded from YAML.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry creates stage units by type name.
type UnitRegistry interface {
	// CreateUnit builds a unit of the registered type.
	CreateUnit(unitType string, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for unitType.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes lists the registered unit types.
	GetSupportedTypes() []string
}
