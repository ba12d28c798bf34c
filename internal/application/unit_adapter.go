package application

import (
	"context"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// UnitAdapter wraps a ports.Unit to implement the ports.Executable
// interface, so stage units can be placed in a Pipeline.
type UnitAdapter struct {
	// unit is the underlying stage unit.
	unit ports.Unit
	// id is the unique identifier for this adapter within its pipeline.
	id string
}

// NewUnitAdapter creates a new adapter for unit.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{
		unit: unit,
		id:   id,
	}
}

// Execute delegates to the underlying unit's Execute method.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return ua.unit.Execute(ctx, state)
}

// ID returns the unique string identifier for this adapter.
func (ua *UnitAdapter) ID() string { return ua.id }
