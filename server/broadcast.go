package server

import (
	"sync"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
)

// EventType is the kind of an Event.
type EventType string

const (
	// EventNotify is sent when a gate accepts a call.
	EventNotify EventType = "notify"
	// EventStandDown is sent when a superseded invocation does not run.
	EventStandDown EventType = "standDown"
	// EventRun is sent after an action run.
	EventRun EventType = "run"
)

// Event is a gate event streamed to the websocket clients.
type Event struct {
	Type    EventType     `json:"type"`
	Gate    string        `json:"gate"`
	Payload string        `json:"payload"`
	Forced  bool          `json:"forced,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
	Time    time.Time     `json:"time"`
}

// subscriberBuffer is the number of events buffered per subscriber. Events
// are dropped for slow subscribers.
const subscriberBuffer = 64

// Broadcaster fans the events of the gates out to the subscribers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	now  func() time.Time
}

var _ debounce.Observer[string] = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan Event]struct{}),
		now:  time.Now,
	}
}

// Subscribe returns a channel of events and a function to unsubscribe.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (b *Broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// OnNotify implements debounce.Observer.
func (b *Broadcaster) OnNotify(gate string, payload string) {
	b.publish(Event{Type: EventNotify, Gate: gate, Payload: payload, Time: b.now()})
}

// OnStandDown implements debounce.Observer.
func (b *Broadcaster) OnStandDown(gate string, payload string) {
	b.publish(Event{Type: EventStandDown, Gate: gate, Payload: payload, Time: b.now()})
}

// OnRun implements debounce.Observer.
func (b *Broadcaster) OnRun(gate string, run debounce.Run[string]) {
	e := Event{
		Type:    EventRun,
		Gate:    gate,
		Payload: run.Payload,
		Forced:  run.Forced,
		Elapsed: run.Elapsed,
		Time:    run.StartedAt,
	}
	if run.Err != nil {
		e.Error = run.Err.Error()
	}
	b.publish(e)
}
