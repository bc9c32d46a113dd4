package state

import (
	"fmt"

	"github.com/Darkness4/debounce-go/debounce"
)

// Observer records the events of the gates of type string into the state.
type Observer struct {
	state  *State
	labels map[string]string
}

var _ debounce.Observer[string] = (*Observer)(nil)

// Observer returns a debounce.Observer updating s. labels are attached to
// every gate observed.
func (s *State) Observer(labels map[string]string) *Observer {
	return &Observer{state: s, labels: labels}
}

// OnNotify implements debounce.Observer.
func (o *Observer) OnNotify(gate string, payload string) {
	o.state.update(gate, func(g *GateState) {
		g.Labels = o.labels
		g.GateStatus = GateStatusPending
		g.LastPayload = payload
		g.Counters.Notifies++
	})
}

// OnStandDown implements debounce.Observer.
func (o *Observer) OnStandDown(gate string, _ string) {
	o.state.update(gate, func(g *GateState) {
		g.Counters.StandDowns++
	})
}

// OnRun implements debounce.Observer.
func (o *Observer) OnRun(gate string, run debounce.Run[string]) {
	o.state.update(gate, func(g *GateState) {
		g.Counters.Runs++
		if run.Forced {
			g.Counters.Forced++
		}
		g.LastRun = run.StartedAt
		switch {
		case run.Err != nil:
			g.Counters.Failures++
			g.GateStatus = GateStatusFailed
		case run.Forced:
			// The trailing invocation of the stream is still pending.
			g.GateStatus = GateStatusPending
		default:
			g.GateStatus = GateStatusIdle
		}
	})
	if run.Err != nil {
		o.state.SetGateError(gate, fmt.Errorf("payload %q: %w", run.Payload, run.Err))
	}
}
