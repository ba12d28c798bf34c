package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/infrastructure/units"
	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
	"github.com/ahrav/hitrank/internal/testutils"
)

func testConfig(maxHypotheses int) *Config {
	cfg := DefaultConfig()
	cfg.Ranking.MaxHypotheses = maxHypotheses
	return &cfg
}

func newTestProducer(t *testing.T, cfg *Config, engine ports.FitEngine, opts ...ProducerOption) *Producer {
	t.Helper()
	p, err := NewProducer(cfg, NewDefaultUnitRegistry(), engine, opts...)
	require.NoError(t, err)
	return p
}

func chi2s(hs []domain.Hypothesis) []float64 {
	out := make([]float64, len(hs))
	for i, h := range hs {
		out[i] = h.FitCost
	}
	return out
}

func assertSentinelOutput(t *testing.T, res domain.EventResult, reason domain.FallbackReason) {
	t.Helper()
	require.Len(t, res.Hypotheses, 1)
	h := res.Hypotheses[0]
	assert.Equal(t, domain.StatusFallback, h.Status)
	assert.Equal(t, -1.0, h.FitCost)
	assert.Equal(t, -1.0, h.Probability)
	assert.Equal(t, -1.0, h.TopMass)
	assert.Equal(t, -1.0, h.TopMassSigma)
	assert.Equal(t, domain.JetIndices{-1, -1, -1, -1}, h.JetIndices)
	assert.Equal(t, reason, h.FallbackReason)
	assert.Equal(t, reason, res.FallbackReason)
	assert.Equal(t, domain.PhaseFallbackOutput, res.Outcome)
}

func TestProducer_Scenarios(t *testing.T) {
	t.Run("A: three jets fall back without touching the engine", func(t *testing.T) {
		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(4, 1.0)...)
		p := newTestProducer(t, testConfig(0), engine)

		res, err := p.Produce(context.Background(), testutils.NewEvent("A", 3, 1, 1))
		require.NoError(t, err)

		assertSentinelOutput(t, res, domain.FallbackPrecondition)
		assert.Zero(t, engine.FitCalls())
		assert.Zero(t, engine.ClearCalls())
		assert.Equal(t, []domain.Phase{
			domain.PhaseAwaitingInput,
			domain.PhasePreconditionCheck,
			domain.PhaseFallback,
			domain.PhaseFallbackOutput,
			domain.PhaseEmitted,
		}, res.Phases)
	})

	t.Run("B: ranked and truncated to two", func(t *testing.T) {
		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(5, 4.0, 1.5, 9.0)...)
		p := newTestProducer(t, testConfig(2), engine)

		res, err := p.Produce(context.Background(), testutils.NewEvent("B", 5, 1, 1))
		require.NoError(t, err)

		assert.Equal(t, []float64{1.5, 4.0}, chi2s(res.Hypotheses))
		assert.Equal(t, domain.PhaseRankedOutput, res.Outcome)
		assert.Empty(t, res.FallbackReason)
		assert.Len(t, engine.Jets(), 5)
		assert.Equal(t, domain.PermutationStats{Total: 3, Converged: 3}, res.Permutations)
		assert.Equal(t, []domain.Phase{
			domain.PhaseAwaitingInput,
			domain.PhasePreconditionCheck,
			domain.PhaseFitting,
			domain.PhaseRankedOutput,
			domain.PhaseEmitted,
		}, res.Phases)
	})

	t.Run("C: nothing converges", func(t *testing.T) {
		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(5, -4.0, -1.5, -9.0)...)
		p := newTestProducer(t, testConfig(2), engine)

		res, err := p.Produce(context.Background(), testutils.NewEvent("C", 5, 1, 1))
		require.NoError(t, err)

		assertSentinelOutput(t, res, domain.FallbackNoConvergence)
		assert.Equal(t, 1, engine.FitCalls())
		assert.Equal(t, domain.PermutationStats{Total: 3, NonConverged: 3}, res.Permutations)

		a, err := newTestProducer(t, testConfig(2), testutils.NewMockFitEngine()).
			Produce(context.Background(), testutils.NewEvent("A", 3, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, a.Columns().Len(), res.Columns().Len())
		assert.Equal(t, a.Columns().Chi2, res.Columns().Chi2)
		assert.Equal(t, a.Columns().JetCombi, res.Columns().JetCombi)
		assert.Equal(t, a.Columns().Status, res.Columns().Status)
	})

	t.Run("D: unbounded emits every converged hypothesis", func(t *testing.T) {
		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(5, 7.0, 3.0, 5.0, 1.0, 2.0)...)
		p := newTestProducer(t, testConfig(0), engine)

		res, err := p.Produce(context.Background(), testutils.NewEvent("D", 5, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, []float64{1.0, 2.0, 3.0, 5.0, 7.0}, chi2s(res.Hypotheses))
	})
}

func TestProducer_PreconditionFailures(t *testing.T) {
	tests := []struct {
		name  string
		event domain.Event
	}{
		{"no lepton", testutils.NewEvent("l", 6, 0, 1)},
		{"no MET", testutils.NewEvent("m", 6, 1, 0)},
		{"no jets", testutils.NewEvent("j", 0, 1, 1)},
		{"nothing", domain.Event{ID: "n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(4, 1.0)...)
			res, err := newTestProducer(t, testConfig(0), engine).Produce(context.Background(), tt.event)
			require.NoError(t, err)
			assertSentinelOutput(t, res, domain.FallbackPrecondition)
			assert.Zero(t, engine.FitCalls())
		})
	}
}

func TestProducer_OutputProperties(t *testing.T) {
	costs := []float64{3.2, -1, 0.4, 8.8, 0, 2.2, 5.5, math.NaN(), 1.1, 0.4, 6.1, -7}
	for _, limit := range []int{-1, 0, 1, 2, 3, 5, 50} {
		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(6, costs...)...)
		res, err := newTestProducer(t, testConfig(limit), engine).
			Produce(context.Background(), testutils.NewEvent("p", 6, 1, 1))
		require.NoError(t, err)

		hs := res.Hypotheses
		converged := 8
		if limit > 0 {
			assert.LessOrEqual(t, len(hs), max(1, limit), "limit %d", limit)
		} else {
			assert.Len(t, hs, converged, "limit %d", limit)
		}

		for i, h := range hs {
			assert.Equal(t, domain.StatusValid, h.Status)
			assert.Greater(t, h.FitCost, 0.0)
			assert.InDelta(t, math.Exp(-h.FitCost/2), h.Probability, 1e-12)
			if i > 0 {
				assert.LessOrEqual(t, hs[i-1].FitCost, h.FitCost)
			}

			seen := map[int]bool{}
			for _, idx := range h.JetIndices {
				assert.False(t, seen[idx], "jet %d used twice", idx)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, 6)
				seen[idx] = true
			}
		}

		cols := res.Columns()
		assert.Equal(t, len(hs), cols.Len())
		assert.Len(t, cols.PartonsHadP, len(hs))
		assert.Len(t, cols.Neutrinos, len(hs))
		assert.Len(t, cols.JetCombi, len(hs))
	}
}

func TestProducer_Idempotent(t *testing.T) {
	engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(5, 4.0, 1.5, 1.5, 9.0, -2.0)...)
	ids := []string{"run-1", "run-2"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		ids = ids[1:]
		return id
	}
	p := newTestProducer(t, testConfig(3), engine, WithIDGenerator(next))
	ev := testutils.NewEvent("same", 5, 1, 1)

	first, err := p.Produce(context.Background(), ev)
	require.NoError(t, err)
	second, err := p.Produce(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, first.Hypotheses, second.Hypotheses)
	assert.Equal(t, first.Columns(), second.Columns())
	assert.Equal(t, "run-1", first.ExecutionID)
	assert.Equal(t, "run-2", second.ExecutionID)
	assert.Equal(t, 2, engine.ClearCalls(), "the engine is cleared before every event")
}

func TestProducer_MaxJets(t *testing.T) {
	engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(4, 2.0)...)
	cfg := testConfig(0)
	cfg.Ranking.MaxJets = 4

	res, err := newTestProducer(t, cfg, engine).Produce(context.Background(), testutils.NewEvent("mj", 7, 1, 1))
	require.NoError(t, err)
	assert.Len(t, engine.Jets(), 4)
	assert.Equal(t, []float64{2.0}, chi2s(res.Hypotheses))
}

func TestProducer_MalformedPermutations(t *testing.T) {
	results := []domain.FitResult{
		testutils.NewFitResult(3.0, 5, [domain.NumRoles]int{0, 1, 2, 3}),
		testutils.NewFitResult(1.0, 5, [domain.NumRoles]int{0, 1, 2, -1}),
	}
	// An unknown tag on the spectator jet of the first permutation.
	results[0].Jets[4].Type = 42

	t.Run("ignore", func(t *testing.T) {
		engine := testutils.NewMockFitEngine(results...)
		res, err := newTestProducer(t, testConfig(0), engine).Produce(context.Background(), testutils.NewEvent("m", 5, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, []float64{3.0}, chi2s(res.Hypotheses))
		assert.Equal(t, domain.PermutationStats{Total: 2, Converged: 1, Malformed: 1}, res.Permutations)
	})

	t.Run("reject", func(t *testing.T) {
		cfg := testConfig(0)
		cfg.Ranking.UnmappedTagPolicy = domain.UnmappedReject
		engine := testutils.NewMockFitEngine(results...)
		res, err := newTestProducer(t, cfg, engine).Produce(context.Background(), testutils.NewEvent("m", 5, 1, 1))
		require.NoError(t, err)
		assertSentinelOutput(t, res, domain.FallbackNoConvergence)
		assert.Equal(t, 2, res.Permutations.Malformed)
	})
}

func TestProducer_EngineFailure(t *testing.T) {
	boom := errors.New("minuit failed")
	engine := testutils.NewMockFitEngine()
	engine.Err = boom

	core, logs := observer.New(zapcore.DebugLevel)
	metrics := &recordingMetrics{}
	p := newTestProducer(t, testConfig(0), engine, WithLogger(zap.New(core)), WithMetrics(metrics))

	res, err := p.Produce(context.Background(), testutils.NewEvent("boom", 5, 1, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ports.ErrEngineFailure)

	assert.True(t, res.Failed())
	assert.Equal(t, "boom", res.EventID)
	assert.Empty(t, res.Hypotheses)
	assert.Contains(t, res.Error, "minuit failed")

	var fitErr *ports.FitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, "boom", fitErr.EventID)

	failed := logs.FilterMessage("event processing failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, units.TypeFit, failed[0].ContextMap()["stage"])
	assert.Equal(t, 1.0, metrics.counter(ports.MetricEvents, "outcome", "failed"))
}

func TestProducer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProducer(t, testConfig(0), testutils.NewMockFitEngine()).
		Produce(ctx, testutils.NewEvent("c", 5, 1, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ports.ErrEngineFailure)
}

func TestProducer_Observability(t *testing.T) {
	results := append(testutils.ResultsWithCosts(5, 2.0, -1.0),
		testutils.NewFitResult(1.0, 5, [domain.NumRoles]int{0, 0, 2, 3}))
	engine := testutils.NewMockFitEngine(results...)

	core, logs := observer.New(zapcore.DebugLevel)
	metrics := &recordingMetrics{}
	p := newTestProducer(t, testConfig(0), engine, WithLogger(zap.New(core)), WithMetrics(metrics))

	_, err := p.Produce(context.Background(), testutils.NewEvent("obs", 5, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 1.0, metrics.counter(ports.MetricEvents, "outcome", string(domain.PhaseRankedOutput)))
	assert.Equal(t, 1.0, metrics.counter(ports.MetricPermutations, "verdict", VerdictConverged))
	assert.Equal(t, 1.0, metrics.counter(ports.MetricPermutations, "verdict", VerdictNonConverged))
	assert.Equal(t, 1.0, metrics.counter(ports.MetricPermutations, "verdict", VerdictMalformed))
	assert.Equal(t, []float64{1}, metrics.histograms[ports.MetricHypothesesEmitted])

	assert.Equal(t, 1, logs.FilterMessage("dropped malformed permutations").Len())
	ranked := logs.FilterMessage("ranked hypotheses").All()
	require.Len(t, ranked, 1)
	assert.Equal(t, "obs", ranked[0].ContextMap()["event_id"])

	_, err = p.Produce(context.Background(), testutils.NewEvent("short", 2, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, metrics.counter(ports.MetricFallbacks, "reason", string(domain.FallbackPrecondition)))
	assert.Equal(t, 1, logs.FilterMessage("emitted fallback hypothesis").Len())
}

func TestProducer_StageDecoratorAndOrder(t *testing.T) {
	var wrapped []string
	decorate := func(u ports.Unit) ports.Unit {
		wrapped = append(wrapped, u.Name())
		return u
	}

	p := newTestProducer(t, testConfig(0), testutils.NewMockFitEngine(), WithUnitDecorator(decorate))
	assert.Equal(t, StageOrder, wrapped)
	assert.Equal(t, StageOrder, p.Stages())
}

func TestProducer_StageParameters(t *testing.T) {
	node := func(src string) yaml.Node {
		var doc yaml.Node
		require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
		return *doc.Content[0]
	}

	t.Run("min jets raised", func(t *testing.T) {
		cfg := testConfig(0)
		cfg.Stages = map[string]yaml.Node{units.TypePrecondition: node("min_jets: 6")}

		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(5, 1.0)...)
		res, err := newTestProducer(t, cfg, engine).Produce(context.Background(), testutils.NewEvent("e", 5, 1, 1))
		require.NoError(t, err)
		assertSentinelOutput(t, res, domain.FallbackPrecondition)
	})

	t.Run("empty override keeps ranking settings", func(t *testing.T) {
		cfg := testConfig(1)
		cfg.Stages = map[string]yaml.Node{units.TypeRank: node("{}")}

		engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(5, 2.0, 1.0)...)
		res, err := newTestProducer(t, cfg, engine).Produce(context.Background(), testutils.NewEvent("e", 5, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, []float64{1.0}, chi2s(res.Hypotheses))
	})

	t.Run("invalid parameters", func(t *testing.T) {
		cfg := testConfig(0)
		cfg.Stages = map[string]yaml.Node{units.TypeFit: node("max_jets: 1")}
		_, err := NewProducer(cfg, NewDefaultUnitRegistry(), testutils.NewMockFitEngine())
		assert.Error(t, err)
	})

	t.Run("stage without parameters", func(t *testing.T) {
		cfg := testConfig(0)
		cfg.Stages = map[string]yaml.Node{units.TypeFallback: node("x: 1")}
		_, err := NewProducer(cfg, NewDefaultUnitRegistry(), testutils.NewMockFitEngine())
		assert.ErrorContains(t, err, "takes no parameters")
	})
}

func TestNewProducer_Errors(t *testing.T) {
	_, err := NewProducer(nil, NewDefaultUnitRegistry(), testutils.NewMockFitEngine())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewProducer(testConfig(0), NewDefaultUnitRegistry(), nil)
	assert.ErrorIs(t, err, units.ErrNilEngine)
}

// recordingMetrics is a ports.MetricsCollector that keeps every value.
type recordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

var _ ports.MetricsCollector = (*recordingMetrics)(nil)

func (m *recordingMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (m *recordingMetrics) RecordGauge(string, float64, map[string]string)         {}

func (m *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	for k, v := range labels {
		m.counters[metric+"|"+k+"="+v] += value
	}
}

func (m *recordingMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.histograms == nil {
		m.histograms = make(map[string][]float64)
	}
	m.histograms[metric] = append(m.histograms[metric], value)
}

func (m *recordingMetrics) counter(metric, label, value string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metric+"|"+label+"="+value]
}

func BenchmarkProducer_Produce(b *testing.B) {
	costs := make([]float64, 180)
	for i := range costs {
		costs[i] = float64((i*37)%101) - 20
	}
	engine := testutils.NewMockFitEngine(testutils.ResultsWithCosts(6, costs...)...)
	p, err := NewProducer(testConfig(10), NewDefaultUnitRegistry(), engine)
	require.NoError(b, err)
	ev := testutils.NewEvent("bench", 6, 1, 1)

	b.ReportAllocs()
	for b.Loop() {
		if _, err := p.Produce(context.Background(), ev); err != nil {
			b.Fatal(err)
		}
	}
}
