package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/hitrank/infrastructure/units"
	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

// StageOrder is the fixed order in which the processing stages run.
var StageOrder = []string{
	units.TypePrecondition,
	units.TypeFit,
	units.TypeHypothesisBuilder,
	units.TypeConvergenceFilter,
	units.TypeRank,
	units.TypeFallback,
}

// Permutation verdict labels used for the permutations metric.
const (
	VerdictConverged    = "converged"
	VerdictNonConverged = "non_converged"
	VerdictMalformed    = "malformed"
)

// parameterUnmarshaler is implemented by stages that accept YAML parameters.
type parameterUnmarshaler interface {
	UnmarshalParameters(params yaml.Node) error
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics ports.MetricsCollector) ProducerOption {
	return func(p *Producer) { p.metrics = metrics }
}

// WithUnitDecorator wraps every stage before it is placed in the pipeline,
// typically with a tracing or metrics middleware.
func WithUnitDecorator(decorate func(ports.Unit) ports.Unit) ProducerOption {
	return func(p *Producer) { p.decorate = decorate }
}

// WithIDGenerator replaces the execution ID generator.
func WithIDGenerator(newID func() string) ProducerOption {
	return func(p *Producer) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// Producer ranks the fit hypotheses of one event at a time. It owns its fit
// engine exclusively, so a Producer must not be shared between goroutines;
// parallel processing uses one Producer per engine.
type Producer struct {
	pipeline *Pipeline
	engine   ports.FitEngine
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	decorate func(ports.Unit) ports.Unit
	newID    func() string
}

// NewProducer builds the stage pipeline from config through registry and
// binds it to engine.
func NewProducer(
	config *Config,
	registry ports.UnitRegistry,
	engine ports.FitEngine,
	opts ...ProducerOption,
) (*Producer, error) {
	if config == nil {
		return nil, fmt.Errorf("producer: %w", domain.ErrInvalidConfiguration)
	}
	if engine == nil {
		return nil, fmt.Errorf("producer: %w", units.ErrNilEngine)
	}

	p := &Producer{
		engine: engine,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}

	pipeline := NewPipeline("event")
	for _, stageType := range StageOrder {
		unit, err := p.createStage(config, registry, stageType)
		if err != nil {
			return nil, err
		}
		if p.decorate != nil {
			unit = p.decorate(unit)
		}
		if err := pipeline.Add(NewUnitAdapter(unit, stageType)); err != nil {
			return nil, fmt.Errorf("failed to add stage %s: %w", stageType, err)
		}
	}
	p.pipeline = pipeline

	return p, nil
}

// createStage builds one stage from the ranking settings and applies its
// optional stage parameters.
func (p *Producer) createStage(config *Config, registry ports.UnitRegistry, stageType string) (ports.Unit, error) {
	params := map[string]any{}
	switch stageType {
	case units.TypeFit:
		params["max_jets"] = config.Ranking.MaxJets
		params[ConfigKeyFitEngine] = p.engine
	case units.TypeHypothesisBuilder:
		if config.Ranking.UnmappedTagPolicy != "" {
			params["unmapped_tag_policy"] = string(config.Ranking.UnmappedTagPolicy)
		}
	case units.TypeRank:
		params["max_hypotheses"] = config.Ranking.MaxHypotheses
	}

	unit, err := registry.CreateUnit(stageType, stageType, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage %s: %w", stageType, err)
	}

	if node, ok := config.Stages[stageType]; ok && node.Kind != 0 {
		u, ok := unit.(parameterUnmarshaler)
		if !ok {
			return nil, fmt.Errorf("stage %s takes no parameters", stageType)
		}
		if err := u.UnmarshalParameters(node); err != nil {
			return nil, fmt.Errorf("stage %s: %w", stageType, err)
		}
	}

	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", stageType, err)
	}
	return unit, nil
}

// Stages returns the stage names in execution order.
func (p *Producer) Stages() []string {
	execs := p.pipeline.Executables()
	names := make([]string, len(execs))
	for i, e := range execs {
		names[i] = e.ID()
	}
	return names
}

// Produce runs every stage for ev and returns its ranked hypotheses.
// Failed preconditions, non-converged fits and malformed permutations are
// reported in the result. An error is returned only when the engine or a
// stage fails, or ctx is cancelled; the result then has the failed outcome.
func (p *Producer) Produce(ctx context.Context, ev domain.Event) (domain.EventResult, error) {
	start := time.Now()
	execID := p.newID()
	logger := p.logger.With(zap.String("event_id", ev.ID), zap.String("execution_id", execID))

	state := domain.NewState()
	state = domain.With(state, domain.KeyEvent, ev)
	state = domain.With(state, domain.KeyExecutionID, execID)
	state = domain.WithPhase(state, domain.PhaseAwaitingInput)

	out, err := p.pipeline.Execute(ctx, state)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var failure *StageFailure
		if errors.As(err, &failure) {
			fields = append(fields, zap.String("stage", failure.Stage))
		}
		logger.Error("event processing failed", fields...)
		p.record(ports.MetricEvents, 1, map[string]string{"outcome": string(domain.PhaseFailed)})
		failed := domain.EventResult{
			EventID:     ev.ID,
			ExecutionID: execID,
			Outcome:     domain.PhaseFailed,
			Duration:    time.Since(start),
			Error:       err.Error(),
		}
		return failed, fmt.Errorf("event %s: %w", ev.ID, err)
	}

	out = domain.WithPhase(out, domain.PhaseEmitted)
	result, err := p.buildResult(ev, execID, out)
	if err != nil {
		return domain.EventResult{}, err
	}
	result.Duration = time.Since(start)

	p.observe(result)
	p.log(logger, result)

	return result, nil
}

// buildResult extracts the emitted output from the final state.
func (p *Producer) buildResult(ev domain.Event, execID string, state domain.State) (domain.EventResult, error) {
	hypotheses, _ := domain.Get(state, domain.KeyHypotheses)
	if len(hypotheses) == 0 {
		return domain.EventResult{}, fmt.Errorf("event %s: no hypotheses emitted", ev.ID)
	}

	phases, _ := domain.Get(state, domain.KeyPhases)
	stats, _ := domain.Get(state, domain.KeyPermutationStats)

	outcome := domain.PhaseRankedOutput
	reason := domain.FallbackReasonOf(state)
	if reason != domain.FallbackNone {
		outcome = domain.PhaseFallbackOutput
	}

	return domain.EventResult{
		EventID:        ev.ID,
		ExecutionID:    execID,
		Outcome:        outcome,
		FallbackReason: reason,
		Phases:         phases,
		Permutations:   stats,
		Hypotheses:     hypotheses,
	}, nil
}

func (p *Producer) observe(result domain.EventResult) {
	if p.metrics == nil {
		return
	}

	p.metrics.RecordCounter(ports.MetricEvents, 1, map[string]string{"outcome": string(result.Outcome)})
	if result.FallbackReason != domain.FallbackNone {
		p.metrics.RecordCounter(ports.MetricFallbacks, 1, map[string]string{"reason": string(result.FallbackReason)})
	}

	stats := result.Permutations
	for verdict, n := range map[string]int{
		VerdictConverged:    stats.Converged,
		VerdictNonConverged: stats.NonConverged,
		VerdictMalformed:    stats.Malformed,
	} {
		if n > 0 {
			p.metrics.RecordCounter(ports.MetricPermutations, float64(n), map[string]string{"verdict": verdict})
		}
	}

	p.metrics.RecordHistogram(ports.MetricHypothesesEmitted, float64(len(result.Hypotheses)),
		map[string]string{"outcome": string(result.Outcome)})
}

func (p *Producer) record(metric string, value float64, labels map[string]string) {
	if p.metrics != nil {
		p.metrics.RecordCounter(metric, value, labels)
	}
}

func (p *Producer) log(logger *zap.Logger, result domain.EventResult) {
	if result.Permutations.Malformed > 0 {
		logger.Debug("dropped malformed permutations",
			zap.Int("malformed", result.Permutations.Malformed),
			zap.Int("total", result.Permutations.Total),
		)
	}

	if result.FallbackReason != domain.FallbackNone {
		logger.Debug("emitted fallback hypothesis",
			zap.String("reason", string(result.FallbackReason)),
			zap.Int("permutations", result.Permutations.Total),
		)
		return
	}

	best := result.Best()
	logger.Debug("ranked hypotheses",
		zap.Int("emitted", len(result.Hypotheses)),
		zap.Int("converged", result.Permutations.Converged),
		zap.Float64("best_chi2", best.FitCost),
		zap.Float64("best_prob", best.Probability),
		zap.Duration("duration", result.Duration),
	)
}
