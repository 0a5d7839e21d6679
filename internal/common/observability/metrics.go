package observability

import (
	"context"
	"time"

	"app-deployer/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	roundCounter  otelmetric.Int64Counter
	roundDuration otelmetric.Float64Histogram
	stepDuration  otelmetric.Float64Histogram
}

// New wires an OpenTelemetry meter provider exporting through the
// Prometheus default registry. On exporter failure it returns a no-op value.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	roundCounter, _ := meter.Int64Counter(
		"rounds.processed",
		otelmetric.WithDescription("Number of rounds processed"),
	)

	roundDuration, _ := meter.Float64Histogram(
		"rounds.duration",
		otelmetric.WithDescription("Round processing duration"),
		otelmetric.WithUnit("ms"),
	)

	stepDuration, _ := meter.Float64Histogram(
		"rounds.step.duration",
		otelmetric.WithDescription("Duration of a single pipeline step"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		roundCounter:  roundCounter,
		roundDuration: roundDuration,
		stepDuration:  stepDuration,
	}
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordRoundProcessed(ctx context.Context, round int, status string) {
	if o == nil || o.roundCounter == nil {
		return
	}
	o.roundCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.Int("round", round),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordRoundDuration(ctx context.Context, round int, duration time.Duration, status string) {
	if o == nil || o.roundDuration == nil {
		return
	}
	o.roundDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.Int("round", round),
		attribute.String("status", status),
	))
}

// RecordStep records how long one pipeline step took.
func (o *Observability) RecordStep(ctx context.Context, step string, duration time.Duration, ok bool) {
	if o == nil || o.stepDuration == nil {
		return
	}
	o.stepDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("step", step),
		attribute.Bool("ok", ok),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
