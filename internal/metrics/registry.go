package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the engine
type Registry struct {
	meter metric.Meter

	// Scheduler metrics
	TickDuration            metric.Float64Histogram
	TickCounter             metric.Int64Counter
	ExerciseFailureCounter  metric.Int64Counter
	ActiveExercises         metric.Int64ObservableGauge

	// Publishing metrics
	PublishSuccessCounter  metric.Int64Counter
	PublishConflictCounter metric.Int64Counter
	PublishFailureCounter  metric.Int64Counter
	SideEffectCounter      metric.Int64Counter

	// Escalation pipeline metrics
	CycleCounter         metric.Int64Counter
	StageDuration        metric.Float64Histogram
	StageTimeoutCounter  metric.Int64Counter
	StageRejectedCounter metric.Int64Counter

	// API metrics
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter

	mu              sync.RWMutex
	activeExercises int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	var err error
	if r.TickDuration, err = r.meter.Float64Histogram(
		"scheduler.tick.duration",
		metric.WithDescription("Duration of one scheduler poll tick"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if r.TickCounter, err = r.meter.Int64Counter(
		"scheduler.ticks",
		metric.WithDescription("Total scheduler poll ticks"),
	); err != nil {
		return nil, err
	}
	if r.ExerciseFailureCounter, err = r.meter.Int64Counter(
		"scheduler.exercise.failures",
		metric.WithDescription("Per-exercise evaluation failures, isolated per tick"),
	); err != nil {
		return nil, err
	}
	if r.ActiveExercises, err = r.meter.Int64ObservableGauge(
		"scheduler.exercises.active",
		metric.WithDescription("Running exercises in the current working set"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.activeExercises)
			return nil
		}),
	); err != nil {
		return nil, err
	}

	if r.PublishSuccessCounter, err = r.meter.Int64Counter(
		"publish.success",
		metric.WithDescription("Events published"),
	); err != nil {
		return nil, err
	}
	if r.PublishConflictCounter, err = r.meter.Int64Counter(
		"publish.conflicts",
		metric.WithDescription("Publish attempts that found the pair already terminal"),
	); err != nil {
		return nil, err
	}
	if r.PublishFailureCounter, err = r.meter.Int64Counter(
		"publish.failures",
		metric.WithDescription("Publish attempts that failed and rolled back"),
	); err != nil {
		return nil, err
	}
	if r.SideEffectCounter, err = r.meter.Int64Counter(
		"publish.side_effects",
		metric.WithDescription("Incident and media records created by publishes"),
	); err != nil {
		return nil, err
	}

	if r.CycleCounter, err = r.meter.Int64Counter(
		"escalation.cycles",
		metric.WithDescription("Analysis cycles started"),
	); err != nil {
		return nil, err
	}
	if r.StageDuration, err = r.meter.Float64Histogram(
		"escalation.stage.duration",
		metric.WithDescription("Duration of one analysis pipeline stage"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if r.StageTimeoutCounter, err = r.meter.Int64Counter(
		"escalation.stage.timeouts",
		metric.WithDescription("Stages that exceeded their bounded timeout"),
	); err != nil {
		return nil, err
	}
	if r.StageRejectedCounter, err = r.meter.Int64Counter(
		"escalation.stage.rejected",
		metric.WithDescription("Generator outputs rejected by validation"),
	); err != nil {
		return nil, err
	}

	if r.APIRequestDuration, err = r.meter.Float64Histogram(
		"api.request.duration",
		metric.WithDescription("REST request duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if r.APIRequestCounter, err = r.meter.Int64Counter(
		"api.requests",
		metric.WithDescription("REST requests served"),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// SetActiveExercises records the size of the scheduler's working set.
func (r *Registry) SetActiveExercises(n int) {
	r.mu.Lock()
	r.activeExercises = int64(n)
	r.mu.Unlock()
}

// RecordTick records one completed scheduler tick.
func (r *Registry) RecordTick(ctx context.Context, d time.Duration) {
	r.TickCounter.Add(ctx, 1)
	r.TickDuration.Record(ctx, float64(d.Milliseconds()))
}

// RecordRequest records one served REST request under its route pattern.
func (r *Registry) RecordRequest(ctx context.Context, method, pattern string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("pattern", pattern))
	r.APIRequestCounter.Add(ctx, 1, attrs)
	r.APIRequestDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordStage records one pipeline stage completion.
func (r *Registry) RecordStage(ctx context.Context, stage string, d time.Duration) {
	r.StageDuration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.String("stage", stage)))
}
