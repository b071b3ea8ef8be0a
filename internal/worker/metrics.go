package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/thebtf/inkingi-ussd/internal/worker"

// requestMetrics holds the gateway instruments. Without a MeterProvider
// installed by the host they are no-ops.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newRequestMetrics() *requestMetrics {
	meter := otel.Meter(instrumentationName)
	m := &requestMetrics{}
	var err error
	if m.requests, err = meter.Int64Counter("ussd.requests",
		metric.WithDescription("USSD gateway requests by outcome")); err != nil {
		otel.Handle(err)
	}
	if m.duration, err = meter.Float64Histogram("ussd.request.duration",
		metric.WithDescription("Time to compute a USSD reply"),
		metric.WithUnit("ms")); err != nil {
		otel.Handle(err)
	}
	return m
}

func (m *requestMetrics) record(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}
