// Package debounce coalesces bursts of calls into a single action run.
//
// A Gate runs its action once the calls have been quiet for the configured
// delay. If calls keep arriving faster than the delay, the action is still
// forced to run once the current cycle is older than the max wait.
package debounce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Action is the debounced business logic.
type Action[T any] func(ctx context.Context, payload T) error

// ActionFunc adapts a function without error to an Action.
func ActionFunc[T any](fn func(payload T)) Action[T] {
	return func(_ context.Context, payload T) error {
		fn(payload)
		return nil
	}
}

// Stats are the counters of a gate since its creation.
type Stats struct {
	Notifies       uint64    `json:"notifies"`
	Runs           uint64    `json:"runs"`
	Forced         uint64    `json:"forced"`
	StandDowns     uint64    `json:"standDowns"`
	Failures       uint64    `json:"failures"`
	ScheduleErrors uint64    `json:"scheduleErrors"`
	LastRun        time.Time `json:"lastRun"`
}

// Gate debounces calls to an action. It is safe for concurrent use.
type Gate[T any] struct {
	name    string
	delay   time.Duration
	maxWait time.Duration

	action    Action[T]
	scheduler Scheduler
	clock     Clock
	observer  Observer[T]
	log       zerolog.Logger
	ctx       context.Context
	tracer    trace.Tracer

	// mu guards the cycle, latest, stopped and stats, as well as every
	// invocation created by this gate.
	mu         sync.Mutex
	cycleStart time.Time
	cycleOpen  bool
	latest     *invocation[T]
	stopped    bool
	stats      Stats

	// runMu serializes action runs of this gate.
	runMu sync.Mutex
	// running counts the runs decided under mu and not finished yet.
	running sync.WaitGroup
}

// New creates a gate running action at most once per cycle.
//
// delay and maxWait must be positive. A delay greater than or equal to
// maxWait is accepted: every fired invocation then tends to run.
func New[T any](
	action Action[T],
	delay, maxWait time.Duration,
	opts ...Option,
) (*Gate[T], error) {
	if delay <= 0 {
		return nil, &ConfigError{Field: "delay", Value: delay, Err: ErrInvalidDelay}
	}
	if maxWait <= 0 {
		return nil, &ConfigError{Field: "maxWait", Value: maxWait, Err: ErrInvalidMaxWait}
	}
	o := applyOptions(opts)

	var observer Observer[T] = NopObserver[T]{}
	if o.observer != nil {
		obs, ok := o.observer.(Observer[T])
		if !ok {
			return nil, fmt.Errorf("debounce: observer %T does not observe %T", o.observer, *new(T))
		}
		observer = obs
	}

	return &Gate[T]{
		name:      o.name,
		delay:     delay,
		maxWait:   maxWait,
		action:    action,
		scheduler: o.scheduler,
		clock:     o.clock,
		observer:  observer,
		log:       o.logger.With().Str("gate", o.name).Logger(),
		ctx:       o.ctx,
		tracer:    o.tracer,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew[T any](
	action Action[T],
	delay, maxWait time.Duration,
	opts ...Option,
) *Gate[T] {
	g, err := New(action, delay, maxWait, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the name of the gate.
func (g *Gate[T]) Name() string {
	return g.name
}

// Delay returns the quiet period.
func (g *Gate[T]) Delay() time.Duration {
	return g.delay
}

// MaxWait returns the max wait.
func (g *Gate[T]) MaxWait() time.Duration {
	return g.maxWait
}

// Notify supersedes the pending invocation, if any, and schedules a new one
// carrying payload. It never waits for the action.
//
// If the scheduler rejects the invocation, the gate is left as it was before
// the call and the error wraps ErrSchedule.
func (g *Gate[T]) Notify(payload T) error {
	if err := g.notify(payload); err != nil {
		return err
	}
	notifyMetrics(g.ctx, g.name)
	g.observer.OnNotify(g.name, payload)
	return nil
}

func (g *Gate[T]) notify(payload T) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return ErrStopped
	}

	prev := g.latest
	live := g.hasLive()
	var prevSuperseded bool
	if prev != nil {
		prevSuperseded = prev.superseded
		prev.markSuperseded()
	}

	inv := &invocation[T]{payload: payload, gate: g}
	handle, err := g.scheduler.AfterFunc(g.delay, inv.fire)
	if err != nil {
		if prev != nil {
			prev.superseded = prevSuperseded
		}
		g.stats.ScheduleErrors++
		scheduleErrorMetrics(g.ctx, g.name)
		g.log.Error().Err(err).Msg("failed to schedule invocation")
		return fmt.Errorf("%w: %w", ErrSchedule, err)
	}
	inv.handle = handle

	// A cycle without a live invocation has nothing left to close it.
	if !g.cycleOpen || !live {
		g.cycleOpen = true
		g.cycleStart = g.clock.Now()
	}
	g.latest = inv
	g.stats.Notifies++
	return nil
}

// fire decides whether inv runs the action or stands down.
func (g *Gate[T]) fire(inv *invocation[T]) {
	g.mu.Lock()
	if g.stopped || inv.fired {
		g.mu.Unlock()
		return
	}
	inv.fired = true

	now := g.clock.Now()
	if inv.superseded && !g.hasLive() {
		// Straggler of a cycle already closed by a run or a flush.
		g.stats.StandDowns++
		g.mu.Unlock()

		standDownMetrics(g.ctx, g.name)
		g.log.Trace().Msg("superseded after the cycle closed, standing down")
		g.observer.OnStandDown(g.name, inv.payload)
		return
	}
	if !g.cycleOpen {
		g.cycleOpen = true
		g.cycleStart = now
	}
	if inv.superseded && now.Sub(g.cycleStart) < g.maxWait {
		g.stats.StandDowns++
		g.mu.Unlock()

		standDownMetrics(g.ctx, g.name)
		g.log.Trace().Dur("elapsed", now.Sub(g.cycleStart)).Msg("superseded, standing down")
		g.observer.OnStandDown(g.name, inv.payload)
		return
	}

	forced := inv.superseded
	cycleStart := g.closeCycle(now, forced)
	g.mu.Unlock()

	g.run(inv.payload, forced, cycleStart)
}

// hasLive reports whether latest is still waiting to fire. It must be called
// with mu held.
func (g *Gate[T]) hasLive() bool {
	return g.latest != nil && !g.latest.fired && !g.latest.superseded
}

// closeCycle must be called with mu held. The caller must then call run.
func (g *Gate[T]) closeCycle(now time.Time, forced bool) time.Time {
	g.running.Add(1)
	cycleStart := g.cycleStart
	g.cycleOpen = false
	g.cycleStart = time.Time{}
	g.stats.Runs++
	if forced {
		g.stats.Forced++
	}
	g.stats.LastRun = now
	return cycleStart
}

func (g *Gate[T]) run(payload T, forced bool, cycleStart time.Time) {
	defer g.running.Done()
	g.runMu.Lock()
	defer g.runMu.Unlock()

	ctx, span := g.tracer.Start(g.ctx, "debounce.run", trace.WithAttributes(
		attribute.String("gate", g.name),
		attribute.Bool("forced", forced),
	))
	defer span.End()

	startedAt := g.clock.Now()
	done := actionTimer(ctx, g.name)
	err := g.invoke(ctx, payload)
	done()
	elapsed := g.clock.Now().Sub(startedAt)
	runMetrics(ctx, g.name, forced, startedAt.Sub(cycleStart), err)

	if err != nil {
		g.mu.Lock()
		g.stats.Failures++
		g.mu.Unlock()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.log.Error().Err(err).Bool("forced", forced).Msg("action failed")
	} else {
		g.log.Debug().Bool("forced", forced).Dur("elapsed", elapsed).Msg("action ran")
	}

	g.observer.OnRun(g.name, Run[T]{
		Payload:    payload,
		Forced:     forced,
		CycleStart: cycleStart,
		StartedAt:  startedAt,
		Elapsed:    elapsed,
		Err:        err,
	})
}

func (g *Gate[T]) invoke(ctx context.Context, payload T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()
	return g.action(ctx, payload)
}

// Flush runs the action right away with the payload of the pending
// invocation, if any, and closes the cycle. The pending invocation will not
// run again when its timer expires.
func (g *Gate[T]) Flush() bool {
	g.mu.Lock()
	inv := g.latest
	if g.stopped || inv == nil || inv.fired || inv.superseded {
		g.mu.Unlock()
		return false
	}
	inv.markSuperseded()
	inv.fired = true
	if inv.handle != nil {
		inv.handle.Stop()
	}
	cycleStart := g.closeCycle(g.clock.Now(), false)
	g.mu.Unlock()

	g.run(inv.payload, false, cycleStart)
	return true
}

// Stop supersedes the pending invocation and rejects further calls to
// Notify. Invocations already handed to the scheduler are ignored when they
// fire. Stop returns once the runs already started are finished, so it must
// not be called from the action.
func (g *Gate[T]) Stop() {
	g.mu.Lock()
	if !g.stopped {
		g.stopped = true
		if g.latest != nil {
			g.latest.markSuperseded()
			if g.latest.handle != nil {
				g.latest.handle.Stop()
			}
			g.latest = nil
		}
		g.cycleOpen = false
		g.cycleStart = time.Time{}
	}
	g.mu.Unlock()

	g.running.Wait()
}

// Pending reports whether a live invocation is waiting for its timer.
func (g *Gate[T]) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasLive()
}

// CycleOpen reports whether a cycle is in progress.
func (g *Gate[T]) CycleOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cycleOpen
}

// Stats returns a copy of the counters.
func (g *Gate[T]) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
