// Package debouncetest provides a manual clock and scheduler to drive gates
// deterministically in tests.
package debouncetest

import (
	"sort"
	"sync"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
)

// Clock is a manual clock that also implements debounce.Scheduler. Scheduled
// functions only run during Advance, on the goroutine calling Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*Timer
	err    error
}

var (
	_ debounce.Clock     = (*Clock)(nil)
	_ debounce.Scheduler = (*Clock)(nil)
)

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Timer is a function scheduled on a Clock.
type Timer struct {
	c        *Clock
	deadline time.Time
	seq      uint64
	f        func()
	stopped  bool
}

// Stop implements debounce.Handle.
func (t *Timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.c.remove(t)
	return true
}

// Now implements debounce.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements debounce.Scheduler.
func (c *Clock) AfterFunc(d time.Duration, f func()) (debounce.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.seq++
	t := &Timer{c: c, deadline: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t, nil
}

// FailWith makes AfterFunc return err. A nil err restores the default.
func (c *Clock) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Pending returns the number of timers not fired yet.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward by d. Timers due in that window fire in
// deadline order, with the clock set to their deadline while they run.
// Timers armed by a firing timer fire in the same call if they are due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.next(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.stopped = true
		c.remove(next)
		c.now = next.deadline
		c.mu.Unlock()

		next.f()
	}
}

// next must be called with mu held.
func (c *Clock) next(target time.Time) *Timer {
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

// remove must be called with mu held.
func (c *Clock) remove(t *Timer) {
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}
