package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// TimeStartRecording starts a timer and returns a function that records the
// elapsed time to the given histogram metric when called.
func TimeStartRecording(
	ctx context.Context,
	m metric.Float64Histogram,
	unit time.Duration,
	opts ...metric.RecordOption,
) func() {
	start := time.Now()
	return func() {
		switch unit {
		case time.Nanosecond:
			m.Record(ctx, float64(time.Since(start).Nanoseconds()), opts...)
		case time.Microsecond:
			m.Record(ctx, float64(time.Since(start).Microseconds()), opts...)
		case time.Millisecond:
			m.Record(ctx, float64(time.Since(start).Milliseconds()), opts...)
		default:
			m.Record(ctx, time.Since(start).Seconds(), opts...)
		}
	}
}
