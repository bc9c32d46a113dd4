package debounce

import (
	"context"
	"time"

	"github.com/Darkness4/debounce-go/telemetry/metrics"
	"go.opentelemetry.io/otel/metric"
)

func gateAttributes(name string) metric.MeasurementOption {
	return metric.WithAttributes(metrics.GateAttribute(name))
}

func notifyMetrics(ctx context.Context, name string) {
	metrics.Gates.Notifies.Add(ctx, 1, gateAttributes(name))
}

func scheduleErrorMetrics(ctx context.Context, name string) {
	metrics.Gates.ScheduleErrors.Add(ctx, 1, gateAttributes(name))
}

func standDownMetrics(ctx context.Context, name string) {
	metrics.Gates.StandDowns.Add(ctx, 1, gateAttributes(name))
}

func actionTimer(ctx context.Context, name string) func() {
	return metrics.TimeStartRecording(
		ctx,
		metrics.Gates.ActionTime,
		time.Second,
		gateAttributes(name),
	)
}

// runMetrics records a completed run. wait is the time between the opening
// of the cycle and the start of the action.
func runMetrics(ctx context.Context, name string, forced bool, wait time.Duration, err error) {
	attrs := gateAttributes(name)
	metrics.Gates.Runs.Add(ctx, 1, attrs)
	metrics.Gates.CycleTime.Record(ctx, wait.Seconds(), attrs)
	if forced {
		metrics.Gates.Forced.Add(ctx, 1, attrs)
	}
	if err != nil {
		metrics.Gates.Errors.Add(ctx, 1, attrs)
	}
}
