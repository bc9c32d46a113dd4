package debounce

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidDelay is returned when the delay is not strictly positive.
	ErrInvalidDelay = errors.New("debounce: delay must be positive")
	// ErrInvalidMaxWait is returned when the max wait is not strictly positive.
	ErrInvalidMaxWait = errors.New("debounce: max wait must be positive")
	// ErrSchedule is returned by Notify when the scheduler rejected the invocation.
	ErrSchedule = errors.New("debounce: failed to schedule invocation")
	// ErrSchedulerClosed is returned by a closed scheduler.
	ErrSchedulerClosed = errors.New("debounce: scheduler closed")
	// ErrStopped is returned by Notify once the gate is stopped.
	ErrStopped = errors.New("debounce: gate stopped")
	// ErrActionPanic wraps a recovered panic of an action.
	ErrActionPanic = errors.New("debounce: action panicked")
)

// ConfigError is returned by New when a duration is invalid.
type ConfigError struct {
	Field string
	Value time.Duration
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
