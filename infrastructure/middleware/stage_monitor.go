// Package middleware provides cross-cutting concerns for the processing
// stages. It wraps units to add tracing and metrics while keeping the stage
// logic free of observability code.
package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ ports.Unit = (*StageMonitor)(nil)

// StageObserver provides observability hooks around a stage execution.
type StageObserver interface {
	// PreStage is called before the stage runs. The returned context is
	// passed to the stage and to PostStage.
	PreStage(ctx context.Context, stage string, state domain.State) context.Context

	// PostStage is called after the stage with the input and output states,
	// the elapsed time and the stage error.
	PostStage(ctx context.Context, stage string, before, after domain.State, elapsed time.Duration, err error)
}

// StageMonitor wraps a unit and reports each execution to an observer. It
// holds no per-execution state and is safe for concurrent use when the
// wrapped unit is.
type StageMonitor struct {
	next     ports.Unit
	observer StageObserver
}

// NewStageMonitor wraps next. A nil observer turns the monitor into a
// pass-through.
func NewStageMonitor(next ports.Unit, observer StageObserver) *StageMonitor {
	if next == nil {
		panic("stage monitor: next unit is required")
	}
	return &StageMonitor{next: next, observer: observer}
}

// Name returns the wrapped unit's name so the monitor is transparent in
// pipelines and logs.
func (sm *StageMonitor) Name() string { return sm.next.Name() }

// Unwrap returns the wrapped unit.
func (sm *StageMonitor) Unwrap() ports.Unit { return sm.next }

// Execute runs the wrapped unit between the observer hooks.
func (sm *StageMonitor) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if sm.observer == nil {
		return sm.next.Execute(ctx, state)
	}

	stage := sm.next.Name()
	ctx = sm.observer.PreStage(ctx, stage, state)

	start := time.Now()
	newState, err := sm.next.Execute(ctx, state)
	sm.observer.PostStage(ctx, stage, state, newState, time.Since(start), err)

	return newState, err
}

// Validate checks the wrapped unit.
func (sm *StageMonitor) Validate() error {
	if sm.next == nil {
		return fmt.Errorf("stage monitor: next unit is required")
	}
	return sm.next.Validate()
}

// Decorator returns a function that wraps a unit in a StageMonitor
// reporting to observer.
func Decorator(observer StageObserver) func(ports.Unit) ports.Unit {
	return func(u ports.Unit) ports.Unit { return NewStageMonitor(u, observer) }
}
