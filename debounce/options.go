package debounce

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Darkness4/debounce-go/debounce"

// Option configures a Gate.
type Option func(*options)

type options struct {
	name      string
	scheduler Scheduler
	clock     Clock
	logger    *zerolog.Logger
	observer  any
	ctx       context.Context
	tracer    trace.Tracer
}

// WithName sets the name used in logs, metrics and observer events.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithScheduler sets the scheduler. Defaults to DefaultScheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithClock sets the clock used to measure cycles.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver sets the observer. New fails if obs does not observe the
// payload type of the gate.
func WithObserver[T any](obs Observer[T]) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithContext sets the context passed to the action.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithTracer sets the tracer used to trace action runs.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		name:      "default",
		scheduler: DefaultScheduler,
		clock:     SystemClock,
		logger:    &log.Logger,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}
