package debounce_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/Darkness4/debounce-go/debounce/debouncetest"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type call struct {
	at      time.Duration
	payload int
}

type recorder struct {
	mu    sync.Mutex
	clock *debouncetest.Clock
	calls []call
	err   error
}

func (r *recorder) action(_ context.Context, payload int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var at time.Duration
	if r.clock != nil {
		at = r.clock.Now().Sub(epoch)
	}
	r.calls = append(r.calls, call{at: at, payload: payload})
	return r.err
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type runObserver struct {
	debounce.NopObserver[int]
	mu   sync.Mutex
	runs []debounce.Run[int]
}

func (o *runObserver) OnRun(_ string, run debounce.Run[int]) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, run)
}

func (o *runObserver) Runs() []debounce.Run[int] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]debounce.Run[int](nil), o.runs...)
}

func newTestGate(
	t *testing.T,
	delay, maxWait time.Duration,
	opts ...debounce.Option,
) (*debounce.Gate[int], *debouncetest.Clock, *recorder) {
	t.Helper()
	clock := debouncetest.NewClock(epoch)
	rec := &recorder{clock: clock}
	opts = append([]debounce.Option{
		debounce.WithName(t.Name()),
		debounce.WithClock(clock),
		debounce.WithScheduler(clock),
	}, opts...)
	g, err := debounce.New(rec.action, delay, maxWait, opts...)
	require.NoError(t, err)
	return g, clock, rec
}

func TestNewRejectsNonPositiveDurations(t *testing.T) {
	tests := []struct {
		name    string
		delay   time.Duration
		maxWait time.Duration
		field   string
		err     error
	}{
		{"zero delay", 0, time.Second, "delay", debounce.ErrInvalidDelay},
		{"negative delay", -time.Second, time.Second, "delay", debounce.ErrInvalidDelay},
		{"zero max wait", time.Second, 0, "maxWait", debounce.ErrInvalidMaxWait},
		{"negative max wait", time.Second, -1, "maxWait", debounce.ErrInvalidMaxWait},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := debounce.New(debounce.ActionFunc(func(int) {}), tt.delay, tt.maxWait)
			require.ErrorIs(t, err, tt.err)
			var cfgErr *debounce.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewRejectsMismatchedObserver(t *testing.T) {
	_, err := debounce.New(
		debounce.ActionFunc(func(int) {}),
		time.Second,
		time.Second,
		debounce.WithObserver[string](debounce.NopObserver[string]{}),
	)
	require.Error(t, err)
}

func TestMustNewPanics(t *testing.T) {
	require.Panics(t, func() {
		debounce.MustNew(debounce.ActionFunc(func(int) {}), 0, time.Second)
	})
}

func TestSingleNotifyRunsAfterDelay(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 2*time.Second)

	// Act
	require.NoError(t, g.Notify(42))
	require.True(t, g.Pending())
	clock.Advance(time.Second - time.Nanosecond)

	// Assert
	require.Empty(t, rec.Calls())
	clock.Advance(time.Nanosecond)
	require.Equal(t, []call{{at: time.Second, payload: 42}}, rec.Calls())
	require.False(t, g.Pending())
	require.False(t, g.CycleOpen())
}

func TestBurstWithinDelayRunsOnceWithLastPayload(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 10*time.Second)

	// Act
	for i := range 10 {
		require.NoError(t, g.Notify(i))
		clock.Advance(50 * time.Millisecond)
	}
	clock.Advance(time.Minute)

	// Assert
	require.Equal(t, []call{{at: 1450 * time.Millisecond, payload: 9}}, rec.Calls())
	stats := g.Stats()
	require.EqualValues(t, 10, stats.Notifies)
	require.EqualValues(t, 1, stats.Runs)
	require.EqualValues(t, 0, stats.Forced)
	require.EqualValues(t, 9, stats.StandDowns)
}

func TestMaxWaitForcesRunDuringStream(t *testing.T) {
	// Arrange
	obs := &runObserver{}
	g, clock, rec := newTestGate(t, time.Second, 2*time.Second, debounce.WithObserver[int](obs))

	// Act: 20 calls, 100ms apart.
	for i := range 20 {
		require.NoError(t, g.Notify(i))
		clock.Advance(100 * time.Millisecond)
	}

	// Assert: exactly one run in [0, 2100ms], forced by the max wait and
	// carrying the payload of the invocation scheduled at 1000ms.
	require.Equal(t, []call{{at: 2 * time.Second, payload: 10}}, rec.Calls())

	// The trailing invocation closes the stream.
	clock.Advance(time.Second)
	require.Equal(t, []call{
		{at: 2 * time.Second, payload: 10},
		{at: 2900 * time.Millisecond, payload: 19},
	}, rec.Calls())

	runs := obs.Runs()
	require.Len(t, runs, 2)
	require.True(t, runs[0].Forced)
	require.Equal(t, epoch, runs[0].CycleStart)
	require.False(t, runs[1].Forced)

	stats := g.Stats()
	require.EqualValues(t, 20, stats.Notifies)
	require.EqualValues(t, 2, stats.Runs)
	require.EqualValues(t, 1, stats.Forced)
	require.EqualValues(t, 18, stats.StandDowns)
	require.False(t, g.CycleOpen())
	require.Zero(t, clock.Pending())
}

func TestContinuousStreamIsNeverStarved(t *testing.T) {
	// Arrange
	const (
		delay   = time.Second
		maxWait = 2 * time.Second
		gap     = 100 * time.Millisecond
	)
	g, clock, rec := newTestGate(t, delay, maxWait)

	// Act: a stream that never pauses for 10s.
	for i := range 100 {
		require.NoError(t, g.Notify(i))
		clock.Advance(gap)
	}

	// Assert
	calls := rec.Calls()
	require.NotEmpty(t, calls)
	require.LessOrEqual(t, calls[0].at, maxWait+delay)
	for i := 1; i < len(calls); i++ {
		require.LessOrEqual(t, calls[i].at-calls[i-1].at, maxWait+delay)
		require.Greater(t, calls[i].payload, calls[i-1].payload)
	}
}

func TestDelayGreaterThanMaxWaitIsAccepted(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 100*time.Millisecond)

	// Act
	for i := range 5 {
		require.NoError(t, g.Notify(i))
		clock.Advance(200 * time.Millisecond)
	}
	clock.Advance(time.Second)

	// Assert: invocations run at almost every fire.
	require.GreaterOrEqual(t, len(rec.Calls()), 2)
	require.Equal(t, 4, rec.Calls()[len(rec.Calls())-1].payload)
}

func TestSeparateBurstsRunSeparately(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 5*time.Second)

	// Act
	require.NoError(t, g.Notify(1))
	require.NoError(t, g.Notify(2))
	clock.Advance(3 * time.Second)
	require.NoError(t, g.Notify(3))
	clock.Advance(3 * time.Second)

	// Assert
	require.Equal(t, []call{
		{at: time.Second, payload: 2},
		{at: 4 * time.Second, payload: 3},
	}, rec.Calls())
}

func TestScheduleFailureLeavesGateConsistent(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 5*time.Second)
	boom := errors.New("executor shut down")
	require.NoError(t, g.Notify(1))

	// Act
	clock.FailWith(boom)
	err := g.Notify(2)
	clock.FailWith(nil)
	clock.Advance(time.Second)

	// Assert: the previous invocation is still live.
	require.ErrorIs(t, err, debounce.ErrSchedule)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []call{{at: time.Second, payload: 1}}, rec.Calls())
	stats := g.Stats()
	require.EqualValues(t, 1, stats.ScheduleErrors)
	require.EqualValues(t, 1, stats.Notifies)
	require.EqualValues(t, 0, stats.StandDowns)
}

func TestActionErrorDoesNotBreakTheGate(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 5*time.Second)
	rec.err = errors.New("boom")

	// Act
	require.NoError(t, g.Notify(1))
	clock.Advance(time.Second)
	rec.err = nil
	require.NoError(t, g.Notify(2))
	clock.Advance(time.Second)

	// Assert
	require.Len(t, rec.Calls(), 2)
	stats := g.Stats()
	require.EqualValues(t, 2, stats.Runs)
	require.EqualValues(t, 1, stats.Failures)
	require.False(t, g.CycleOpen())
}

func TestActionPanicIsRecovered(t *testing.T) {
	// Arrange
	clock := debouncetest.NewClock(epoch)
	obs := &runObserver{}
	g, err := debounce.New(
		func(context.Context, int) error { panic("kaboom") },
		time.Second,
		time.Second,
		debounce.WithClock(clock),
		debounce.WithScheduler(clock),
		debounce.WithObserver[int](obs),
	)
	require.NoError(t, err)

	// Act
	require.NoError(t, g.Notify(1))
	require.NotPanics(t, func() { clock.Advance(time.Second) })

	// Assert
	runs := obs.Runs()
	require.Len(t, runs, 1)
	require.ErrorIs(t, runs[0].Err, debounce.ErrActionPanic)
	require.EqualValues(t, 1, g.Stats().Failures)
	require.False(t, g.CycleOpen())
}

func TestFlushRunsPendingPayload(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 5*time.Second)
	require.NoError(t, g.Notify(1))
	require.NoError(t, g.Notify(2))

	// Act
	flushed := g.Flush()
	clock.Advance(time.Minute)

	// Assert
	require.True(t, flushed)
	require.Equal(t, []call{{at: 0, payload: 2}}, rec.Calls())
	require.False(t, g.Flush())
	require.False(t, g.Pending())
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	g, _, rec := newTestGate(t, time.Second, 5*time.Second)

	require.False(t, g.Flush())
	require.Empty(t, rec.Calls())
}

func TestStopDropsPendingInvocation(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 5*time.Second)
	require.NoError(t, g.Notify(1))

	// Act
	g.Stop()
	clock.Advance(time.Minute)

	// Assert
	require.Empty(t, rec.Calls())
	require.ErrorIs(t, g.Notify(2), debounce.ErrStopped)
	require.False(t, g.CycleOpen())
	g.Stop()
}

func TestStopWaitsForRunningAction(t *testing.T) {
	// Arrange
	clock := debouncetest.NewClock(epoch)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	g, err := debounce.New(
		debounce.ActionFunc(func(int) {
			close(started)
			<-release
			finished.Store(true)
		}),
		time.Second,
		5*time.Second,
		debounce.WithClock(clock),
		debounce.WithScheduler(clock),
	)
	require.NoError(t, err)
	require.NoError(t, g.Notify(1))
	go clock.Advance(time.Second)
	<-started

	// Act
	stopped := make(chan struct{})
	go func() {
		g.Stop()
		close(stopped)
	}()

	// Assert
	require.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)
	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, finished.Load())
}

func TestStandDownLeavesCycleOpenUntilLatestFires(t *testing.T) {
	// Arrange
	g, clock, rec := newTestGate(t, time.Second, 5*time.Second)
	require.NoError(t, g.Notify(1))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, g.Notify(2))

	// Act: the first invocation stands down.
	clock.Advance(500 * time.Millisecond)

	// Assert
	require.Empty(t, rec.Calls())
	require.True(t, g.CycleOpen())
	require.True(t, g.Pending())

	// The live invocation always closes the cycle.
	clock.Advance(500 * time.Millisecond)
	require.Equal(t, []call{{at: 1500 * time.Millisecond, payload: 2}}, rec.Calls())
	require.False(t, g.CycleOpen())
}

func TestConcurrentNotifyWithTimers(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	var payloads []int
	scheduler := debounce.NewTimerScheduler()
	g, err := debounce.New(
		debounce.ActionFunc(func(p int) {
			mu.Lock()
			defer mu.Unlock()
			payloads = append(payloads, p)
		}),
		100*time.Millisecond,
		time.Minute,
		debounce.WithScheduler(scheduler),
	)
	require.NoError(t, err)

	// Act
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				require.NoError(t, g.Notify(w*1000+i))
			}
		}()
	}
	wg.Wait()

	// Assert
	require.Eventually(t, func() bool {
		return g.Stats().Runs == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return g.Stats().StandDowns == 399
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	require.EqualValues(t, 400, g.Stats().Notifies)
}

func TestClosedSchedulerRejectsNotify(t *testing.T) {
	scheduler := debounce.NewTimerScheduler()
	g, err := debounce.New(
		debounce.ActionFunc(func(int) {}),
		time.Second,
		time.Second,
		debounce.WithScheduler(scheduler),
	)
	require.NoError(t, err)

	scheduler.Close()

	err = g.Notify(1)
	require.ErrorIs(t, err, debounce.ErrSchedule)
	require.ErrorIs(t, err, debounce.ErrSchedulerClosed)
	require.False(t, g.Pending())
}
