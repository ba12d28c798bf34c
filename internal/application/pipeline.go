package application

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Pipeline = (*Pipeline)(nil)

// StageFailure reports the stage at which a pipeline stopped.
type StageFailure struct {
	Pipeline string
	Stage    string
	// Position is the zero-based index of the stage in the pipeline.
	Position int
	Err      error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("pipeline %s: stage %d (%s) failed: %v", e.Pipeline, e.Position, e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// Pipeline runs the stages of one event in insertion order. Each stage
// receives the state produced by the one before it.
type Pipeline struct {
	id string

	mu     sync.RWMutex
	stages []ports.Executable
	ids    map[string]struct{}
}

// NewPipeline creates an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{id: id, ids: make(map[string]struct{})}
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends a stage. Stage IDs must be unique within the pipeline.
func (p *Pipeline) Add(stage ports.Executable) error {
	if stage == nil {
		return fmt.Errorf("pipeline %s: cannot add nil executable", p.id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.ids[stage.ID()]; dup {
		return fmt.Errorf("pipeline %s: executable with ID %s already exists", p.id, stage.ID())
	}
	p.stages = append(p.stages, stage)
	p.ids[stage.ID()] = struct{}{}
	return nil
}

// Executables returns a copy of the stages in execution order.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.stages)
}

// Execute runs every stage. Cancellation is checked before each stage. On
// failure the last good state is returned together with a *StageFailure.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	for i, stage := range p.Executables() {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		next, err := stage.Execute(ctx, state)
		if err != nil {
			return state, &StageFailure{Pipeline: p.id, Stage: stage.ID(), Position: i, Err: err}
		}
		state = next
	}
	return state, nil
}
