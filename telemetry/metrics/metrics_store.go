// Package metrics provides a way to record metrics.
package metrics

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/darkness4/debounce-go"

var (
	// Gates metrics
	Gates struct {
		// Notifies is the number of accepted calls.
		Notifies metric.Int64Counter
		// Runs is the number of action runs.
		Runs metric.Int64Counter
		// Forced is the number of runs forced by the max wait.
		Forced metric.Int64Counter
		// StandDowns is the number of superseded invocations that did not run.
		StandDowns metric.Int64Counter
		// Errors is the number of failed action runs.
		Errors metric.Int64Counter
		// ScheduleErrors is the number of invocations rejected by the scheduler.
		ScheduleErrors metric.Int64Counter
		// ActionTime is the time taken by the action.
		ActionTime metric.Float64Histogram
		// CycleTime is the time between the opening of a cycle and the run.
		CycleTime metric.Float64Histogram
		// State is the current state of the gate.
		State metric.Int64Gauge
	}

	// Watcher metrics
	Watcher struct {
		// Events is the number of filesystem events received.
		Events metric.Int64Counter
		// Filtered is the number of filesystem events dropped by filters.
		Filtered metric.Int64Counter
		// Errors is the number of watcher errors.
		Errors metric.Int64Counter
	}
)

func init() {
	// Instruments are usable before InitMetrics is called.
	InitMetrics(noop.NewMeterProvider())
}

// GateAttribute is the attribute identifying a gate.
func GateAttribute(name string) attribute.KeyValue {
	return attribute.String("gate", name)
}

// InitMetrics initializes the metrics. Must be called as soon as possible.
func InitMetrics(provider metric.MeterProvider) {
	meter := provider.Meter(meterName)

	var err error
	Gates.Notifies, err = meter.Int64Counter(
		"gates.notifies",
		metric.WithDescription("Number of accepted calls"),
	)
	if err != nil {
		panic(err)
	}
	Gates.Runs, err = meter.Int64Counter(
		"gates.runs",
		metric.WithDescription("Number of action runs"),
	)
	if err != nil {
		panic(err)
	}
	Gates.Forced, err = meter.Int64Counter(
		"gates.forced",
		metric.WithDescription("Number of action runs forced by the max wait"),
	)
	if err != nil {
		panic(err)
	}
	Gates.StandDowns, err = meter.Int64Counter(
		"gates.stand_downs",
		metric.WithDescription("Number of superseded invocations that stood down"),
	)
	if err != nil {
		panic(err)
	}
	Gates.Errors, err = meter.Int64Counter(
		"gates.errors",
		metric.WithDescription("Number of failed action runs"),
	)
	if err != nil {
		panic(err)
	}
	Gates.ScheduleErrors, err = meter.Int64Counter(
		"gates.schedule_errors",
		metric.WithDescription("Number of invocations rejected by the scheduler"),
	)
	if err != nil {
		panic(err)
	}
	Gates.ActionTime, err = meter.Float64Histogram(
		"gates.action.time",
		metric.WithDescription("Time taken by the action"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Gates.CycleTime, err = meter.Float64Histogram(
		"gates.cycle.time",
		metric.WithDescription("Time between the opening of a cycle and the action run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Gates.State, err = meter.Int64Gauge(
		"gates.state",
		metric.WithDescription("Current state of the gate"),
	)
	if err != nil {
		panic(err)
	}

	// Watcher
	Watcher.Events, err = meter.Int64Counter(
		"watcher.events",
		metric.WithDescription("Number of filesystem events received"),
	)
	if err != nil {
		panic(err)
	}
	Watcher.Filtered, err = meter.Int64Counter(
		"watcher.filtered",
		metric.WithDescription("Number of filesystem events dropped by filters"),
	)
	if err != nil {
		panic(err)
	}
	Watcher.Errors, err = meter.Int64Counter(
		"watcher.errors",
		metric.WithDescription("Number of watcher errors"),
	)
	if err != nil {
		panic(err)
	}
}
