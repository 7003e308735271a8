package embedding

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/thebtf/e5sim/internal/embedding"

// pipelineMetrics holds the instruments recorded by a Pipeline.
// Instruments come from the global meter provider, a no-op unless the binary installs one.
type pipelineMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	attrs    metric.MeasurementOption
}

func newPipelineMetrics(v Variant) *pipelineMetrics {
	meter := otel.Meter(meterName)
	m := &pipelineMetrics{
		attrs: metric.WithAttributes(attribute.String("variant", string(v))),
	}

	var err error
	if m.requests, err = meter.Int64Counter("e5sim.similarity.requests",
		metric.WithDescription("Similarity computations requested")); err != nil {
		log.Warn().Err(err).Msg("Failed to create requests counter")
	}
	if m.errors, err = meter.Int64Counter("e5sim.similarity.errors",
		metric.WithDescription("Similarity computations that failed")); err != nil {
		log.Warn().Err(err).Msg("Failed to create errors counter")
	}
	if m.duration, err = meter.Float64Histogram("e5sim.similarity.duration",
		metric.WithDescription("Similarity computation latency"),
		metric.WithUnit("s")); err != nil {
		log.Warn().Err(err).Msg("Failed to create duration histogram")
	}
	return m
}

func (m *pipelineMetrics) record(start time.Time, err error) {
	ctx := context.Background()
	if m.requests != nil {
		m.requests.Add(ctx, 1, m.attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, m.attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, time.Since(start).Seconds(), m.attrs)
	}
}
