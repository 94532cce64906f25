package internal

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "acmeflow"

// Telemetry groups the logger, tracer and meter of a component.
type Telemetry struct {
	kind string
	name string

	l *Logger

	tracer trace.Tracer
	meter  metric.Meter
}

func NewTelemetry(kind, name string) *Telemetry {
	return &Telemetry{
		kind: kind,
		name: name,

		l: NewLogger(kind, name),

		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
	}
}

func (t *Telemetry) Logger() *Logger {
	return t.l
}

func (t *Telemetry) SetVerbose(verbose bool) {
	t.l.SetVerbose(verbose)
}

func (t *Telemetry) LogDebug(msg string, args ...any) {
	t.l.Debug(msg, args...)
}

func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.l.Info(msg, args...)
}

func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.l.Warn(msg, args...)
}

func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.l.Error(msg, err, args...)
}

func (t *Telemetry) setDefaultAttributes(span trace.Span) {
	span.SetAttributes(
		attribute.String("acmeflow.component_kind", t.kind),
		attribute.String("acmeflow.component_name", t.name),
	)
}

func (t *Telemetry) NewTrace(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, spanName, opts...)
	t.setDefaultAttributes(span)
	return ctx, span
}

func (t *Telemetry) getMeterName(name string) string {
	return fmt.Sprintf("%s_%s_%s", t.kind, t.name, name)
}

// NewCounter registers an observable counter reading its value from the callback.
func (t *Telemetry) NewCounter(name string, callback func() int64) {
	counterName := t.getMeterName(name)

	_, err := t.meter.Int64ObservableCounter(counterName,
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(callback())
			return nil
		}),
	)
	if err != nil {
		t.LogError("failed to create counter", err, "name", counterName)
	}
}

// NewUpDownCounter registers an observable up/down counter reading its value from the callback.
func (t *Telemetry) NewUpDownCounter(name string, callback func() int64) {
	counterName := t.getMeterName(name)

	_, err := t.meter.Int64ObservableUpDownCounter(counterName,
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(callback())
			return nil
		}),
	)
	if err != nil {
		t.LogError("failed to create up/down counter", err, "name", counterName)
	}
}

func (t *Telemetry) NewHistogram(name, unit string) metric.Float64Histogram {
	histName := t.getMeterName(name)

	hist, err := t.meter.Float64Histogram(histName, metric.WithUnit(unit))
	if err != nil {
		t.LogError("failed to create histogram", err, "name", histName)
		return noop.Float64Histogram{}
	}

	return hist
}
