package debounce

// invocation is one scheduled attempt to run the action. All fields are
// guarded by the owning gate's mu.
type invocation[T any] struct {
	payload    T
	superseded bool
	fired      bool
	handle     Handle

	// gate is only used to call back into fire.
	gate *Gate[T]
}

func (inv *invocation[T]) markSuperseded() {
	inv.superseded = true
}

// fire is the unit of work handed to the scheduler.
func (inv *invocation[T]) fire() {
	inv.gate.fire(inv)
}
