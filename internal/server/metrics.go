package server

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the request-level instruments. A nil *metrics (instrument
// creation failed) disables recording without touching the handlers.
type metrics struct {
	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	decodeFailures metric.Int64Counter
}

func newMetrics(log *slog.Logger) *metrics {
	meter := otel.Meter("github.com/recitelabs/whisperd/server")
	m := &metrics{}
	var err error

	m.requests, err = meter.Int64Counter("whisperd.transcribe.requests",
		metric.WithDescription("Transcription requests by outcome"))
	if err != nil {
		log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		return nil
	}
	m.duration, err = meter.Float64Histogram("whisperd.transcribe.duration",
		metric.WithDescription("Transcription request processing time"),
		metric.WithUnit("s"))
	if err != nil {
		log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		return nil
	}
	m.decodeFailures, err = meter.Int64Counter("whisperd.decode.failures",
		metric.WithDescription("Uploads that no decode strategy could handle"))
	if err != nil {
		log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		return nil
	}
	return m
}

func (m *metrics) recordRequest(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *metrics) recordDecodeFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.decodeFailures.Add(ctx, 1)
}
