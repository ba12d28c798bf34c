package ports

import (
	"context"

	"github.com/ahrav/hitrank/internal/domain"
)

// Executable is anything that can run inside a processing pipeline.
type Executable interface {
	// Execute processes the given state and returns the updated state.
	// The input state is immutable; use domain.With to derive a new one.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the unique identifier of this executable within its
	// pipeline.
	ID() string
}

// Pipeline runs executables in strict order, feeding each one the state
// returned by the previous.
type Pipeline interface {
	Executable

	// Add appends an executable to the end of the pipeline. It returns an
	// error for nil executables or duplicate IDs.
	Add(exec Executable) error

	// Executables returns the ordered executables. The returned slice must
	// not be modified by callers.
	Executables() []Executable
}
