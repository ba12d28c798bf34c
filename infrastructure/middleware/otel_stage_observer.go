package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/hitrank/internal/domain"
	"github.com/ahrav/hitrank/internal/ports"
)

var _ StageObserver = (*OTelStageObserver)(nil)

// OTelStageObserver traces every stage with an OpenTelemetry span and
// records its latency through a MetricsCollector. The span travels in the
// context, so one observer can serve concurrent pipelines.
type OTelStageObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelStageObserver creates an observer. metrics may be nil.
func NewOTelStageObserver(metrics ports.MetricsCollector) *OTelStageObserver {
	return &OTelStageObserver{
		metrics: metrics,
		tracer:  otel.Tracer("stage-monitor"),
	}
}

// PreStage starts the stage span.
func (o *OTelStageObserver) PreStage(ctx context.Context, stage string, state domain.State) context.Context {
	attrs := []attribute.KeyValue{attribute.String("stage", stage)}
	if ev, ok := domain.Get(state, domain.KeyEvent); ok {
		attrs = append(attrs,
			attribute.String("event.id", ev.ID),
			attribute.Int("event.jets", len(ev.Jets)),
		)
	}
	if id, ok := domain.Get(state, domain.KeyExecutionID); ok {
		attrs = append(attrs, attribute.String("execution.id", id))
	}
	if candidates, ok := domain.Get(state, domain.KeyCandidates); ok {
		attrs = append(attrs, attribute.Int("hypotheses.in", len(candidates)))
	}

	ctx, _ = o.tracer.Start(ctx, "Stage."+stage, trace.WithAttributes(attrs...))
	return ctx
}

// PostStage finishes the span and records the stage latency.
func (o *OTelStageObserver) PostStage(
	ctx context.Context,
	stage string,
	before, after domain.State,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if candidates, ok := domain.Get(after, domain.KeyCandidates); ok {
		span.SetAttributes(attribute.Int("hypotheses.candidates", len(candidates)))
	}
	if hypotheses, ok := domain.Get(after, domain.KeyHypotheses); ok {
		span.SetAttributes(attribute.Int("hypotheses.out", len(hypotheses)))
	}

	if reason := domain.FallbackReasonOf(after); reason != domain.FallbackReasonOf(before) {
		span.AddEvent("event.fallback", trace.WithAttributes(
			attribute.String("fallback.reason", string(reason)),
		))
	}

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if o.metrics != nil {
		o.metrics.RecordLatency(ports.MetricStageLatency, elapsed, map[string]string{
			"stage":  stage,
			"status": status,
		})
	}
}
