package debounce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handle is a scheduled unit of work. Stop prevents it from running if it
// has not started yet and reports whether it did.
type Handle interface {
	Stop() bool
}

// Scheduler runs f once after d has elapsed, on a goroutine that is not the
// caller's. Implementations must never invoke f synchronously from AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (Handle, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// TimerScheduler schedules each unit of work on its own runtime timer.
type TimerScheduler struct {
	mu     sync.RWMutex
	closed bool
}

// NewTimerScheduler returns a scheduler backed by time.AfterFunc.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// AfterFunc implements Scheduler.
func (s *TimerScheduler) AfterFunc(d time.Duration, f func()) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	return time.AfterFunc(d, f), nil
}

// Close rejects further submissions. Timers already armed still fire.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// DefaultScheduler is shared by gates created without WithScheduler.
var DefaultScheduler Scheduler = NewTimerScheduler()

// PoolScheduler arms runtime timers but hands expired work to a fixed set of
// workers, so actions of many gates share a bounded number of goroutines.
type PoolScheduler struct {
	jobs chan func()
	done chan struct{}
	g    *errgroup.Group

	mu     sync.RWMutex
	closed bool
	armed  sync.WaitGroup
}

// NewPoolScheduler starts size workers. size <= 0 means one worker.
func NewPoolScheduler(size int) *PoolScheduler {
	if size <= 0 {
		size = 1
	}
	s := &PoolScheduler{
		jobs: make(chan func()),
		done: make(chan struct{}),
		g:    &errgroup.Group{},
	}
	for range size {
		s.g.Go(func() error {
			for {
				select {
				case job := <-s.jobs:
					job()
				case <-s.done:
					return nil
				}
			}
		})
	}
	return s
}

type poolHandle struct {
	timer *time.Timer
	armed *sync.WaitGroup
}

func (h *poolHandle) Stop() bool {
	if h.timer.Stop() {
		h.armed.Done()
		return true
	}
	return false
}

// AfterFunc implements Scheduler.
func (s *PoolScheduler) AfterFunc(d time.Duration, f func()) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	s.armed.Add(1)
	t := time.AfterFunc(d, func() {
		defer s.armed.Done()
		select {
		case s.jobs <- f:
		case <-s.done:
		}
	})
	return &poolHandle{timer: t, armed: &s.armed}, nil
}

// Close stops accepting work and waits until the armed timers have been
// handed over to the workers and the workers are idle. If ctx is done first,
// timers expiring afterwards are dropped.
func (s *PoolScheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.armed.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	close(s.done)
	if werr := s.g.Wait(); werr != nil {
		return werr
	}
	return err
}
