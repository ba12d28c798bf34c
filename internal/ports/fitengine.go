package ports

import (
	"context"
	"time"

	"github.com/ahrav/hitrank/internal/domain"
)

// FitEngine is the external constrained kinematic fitter. An engine is
// stateful: it accumulates the objects of one event until Clear is called,
// so a single instance must never serve two events at once.
//
// Typical use per event:
//
//	engine.Clear()
//	engine.AddLepton(event.Leptons[0])
//	for _, jet := range jets {
//	    engine.AddJet(jet)
//	}
//	engine.SetMET(event.METs[0])
//	results, err := engine.FitAllPermutations(ctx)
type FitEngine interface {
	// Clear drops all accumulated objects and previous fit results.
	Clear()

	// AddLepton adds the charged lepton of the event.
	AddLepton(lepton domain.Lepton)

	// AddJet adds one jet. Jets are indexed in the order they are added.
	AddJet(jet domain.Jet)

	// SetMET sets the missing transverse energy object.
	SetMET(met domain.MET)

	// FitAllPermutations enumerates the jet permutations consistent with the
	// semi-leptonic topology, fits each of them, and returns one FitResult
	// per permutation. The call is synchronous and CPU-bound.
	FitAllPermutations(ctx context.Context) ([]domain.FitResult, error)
}

// FitSettings are the constraints and resolutions an engine fits with. Two
// engines give the same output for the same inputs only when their settings
// are equal.
type FitSettings struct {
	// WMass is the W boson mass constraint in GeV.
	WMass float64 `yaml:"w_mass" json:"w_mass"`
	// TopMass is the top quark mass constraint in GeV; zero leaves it free.
	TopMass float64 `yaml:"top_mass" json:"top_mass"`
	// LeptonFlavour is electron or muon, lower case.
	LeptonFlavour string `yaml:"lepton_flavour" json:"lepton_flavour"`
	// Resolutions maps object kinds to resolution file paths.
	Resolutions map[string]string `yaml:"resolutions,omitempty" json:"resolutions,omitempty"`
}

// EngineFactory creates independent FitEngine instances, one per worker
// when events are processed in parallel.
type EngineFactory func() (FitEngine, error)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Metric names recorded through MetricsCollector by the producer and the
// stage monitor.
const (
	// MetricStageLatency is the latency operation of one stage execution.
	MetricStageLatency = "stage_execution"
	// MetricEvents counts processed events, labelled by "outcome".
	MetricEvents = "events_total"
	// MetricFallbacks counts sentinel emissions, labelled by "reason".
	MetricFallbacks = "fallbacks_total"
	// MetricPermutations counts fit permutations, labelled by "verdict".
	MetricPermutations = "permutations_total"
	// MetricHypothesesEmitted observes the output length of each event.
	MetricHypothesesEmitted = "hypotheses_emitted"
	// MetricEngineFit times FitAllPermutations, labelled by "status".
	MetricEngineFit = "engine_fit"
	// MetricEngineCalls counts FitAllPermutations calls, labelled by "status".
	MetricEngineCalls = "engine_calls_total"
)
