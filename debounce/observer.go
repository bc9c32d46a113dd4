package debounce

import "time"

// Run describes one execution of the action.
type Run[T any] struct {
	Payload T
	// Forced is true when the invocation was superseded but the cycle had
	// already exceeded the max wait.
	Forced     bool
	CycleStart time.Time
	StartedAt  time.Time
	Elapsed    time.Duration
	Err        error
}

// Observer receives the lifecycle events of a gate. Callbacks are invoked
// outside of the gate lock and must not block for long.
type Observer[T any] interface {
	OnNotify(gate string, payload T)
	OnStandDown(gate string, payload T)
	OnRun(gate string, run Run[T])
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver[T any] struct{}

func (NopObserver[T]) OnNotify(string, T)    {}
func (NopObserver[T]) OnStandDown(string, T) {}
func (NopObserver[T]) OnRun(string, Run[T])  {}

// Observers fans events out to each observer in order.
type Observers[T any] []Observer[T]

func (o Observers[T]) OnNotify(gate string, payload T) {
	for _, obs := range o {
		obs.OnNotify(gate, payload)
	}
}

func (o Observers[T]) OnStandDown(gate string, payload T) {
	for _, obs := range o {
		obs.OnStandDown(gate, payload)
	}
}

func (o Observers[T]) OnRun(gate string, run Run[T]) {
	for _, obs := range o {
		obs.OnRun(gate, run)
	}
}
