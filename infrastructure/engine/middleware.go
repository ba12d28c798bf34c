package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// Middleware wraps a FitEngine to add behaviour around FitAllPermutations.
type Middleware func(ports.FitEngine) ports.FitEngine

// Chain wraps e with mws. The first middleware is the outermost.
func Chain(e ports.FitEngine, mws ...Middleware) ports.FitEngine {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](e)
	}
	return e
}

// WithMiddleware returns a factory whose engines are wrapped with mws.
func WithMiddleware(factory ports.EngineFactory, mws ...Middleware) ports.EngineFactory {
	return func() (ports.FitEngine, error) {
		e, err := factory()
		if err != nil {
			return nil, err
		}
		return Chain(e, mws...), nil
	}
}

// wrapped forwards the input methods to the inner engine.
type wrapped struct{ next ports.FitEngine }

func (w wrapped) Clear()                         { w.next.Clear() }
func (w wrapped) AddLepton(lepton domain.Lepton) { w.next.AddLepton(lepton) }
func (w wrapped) AddJet(jet domain.Jet)          { w.next.AddJet(jet) }
func (w wrapped) SetMET(met domain.MET)          { w.next.SetMET(met) }

type timeoutEngine struct {
	wrapped
	timeout time.Duration
}

// TimeoutMiddleware bounds every FitAllPermutations call by timeout. A
// non-positive timeout leaves the engine unchanged.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.FitEngine) ports.FitEngine {
		if timeout <= 0 {
			return next
		}
		return &timeoutEngine{wrapped: wrapped{next}, timeout: timeout}
	}
}

func (t *timeoutEngine) FitAllPermutations(ctx context.Context) ([]domain.FitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.FitAllPermutations(ctx)
}

type metricsEngine struct {
	wrapped
	collector ports.MetricsCollector
}

// MetricsMiddleware records the latency and outcome of every fit.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next ports.FitEngine) ports.FitEngine {
		if collector == nil {
			return next
		}
		return &metricsEngine{wrapped: wrapped{next}, collector: collector}
	}
}

func (m *metricsEngine) FitAllPermutations(ctx context.Context) ([]domain.FitResult, error) {
	start := time.Now()
	results, err := m.next.FitAllPermutations(ctx)

	labels := map[string]string{"stage": "engine", "status": fitStatus(err)}
	m.collector.RecordLatency(ports.MetricEngineFit, time.Since(start), labels)
	m.collector.RecordCounter(ports.MetricEngineCalls, 1, labels)

	return results, err
}

func fitStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrNoRecording):
		return "no_recording"
	default:
		return "error"
	}
}
