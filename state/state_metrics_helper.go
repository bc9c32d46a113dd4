package state

import (
	"context"

	"github.com/Darkness4/debounce-go/telemetry/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// setStateMetrics demuxes the state to the metrics.
func setStateMetrics(
	ctx context.Context,
	gate string,
	status GateStatus,
	labels map[string]string,
) {
	attrs := make([]attribute.KeyValue, 0, len(labels)+1)
	attrs = append(attrs, metrics.GateAttribute(gate))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	m := metrics.Gates.State
	m.Record(
		ctx,
		1,
		metric.WithAttributes(append(attrs, attribute.String("state", status.String()))...),
	)
	// Remove the rest of the states from the metrics.
	for i := GateStatusUnspecified; i <= GateStatusStopped; i++ {
		if i != status {
			m.Record(
				ctx,
				0,
				metric.WithAttributes(append(attrs, attribute.String("state", i.String()))...),
			)
		}
	}
}
