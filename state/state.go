// Package state implements state for debugging.
package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// maxErrors is the number of errors kept per gate.
const maxErrors = 100

// State represents the state of the program.
type State struct {
	Gates map[string]*GateState `json:"gates"`

	mu sync.RWMutex
}

// GateState represents the state of a gate.
type GateState struct {
	GateStatus  GateStatus        `json:"state"`
	Labels      map[string]string `json:"labels,omitempty"`
	LastPayload string            `json:"lastPayload,omitempty"`
	Counters    Counters          `json:"counters"`
	LastRun     time.Time         `json:"lastRun"`
	Errors      []GateError       `json:"errors_log"`
}

// Counters are the events observed for a gate.
type Counters struct {
	Notifies   uint64 `json:"notifies"`
	Runs       uint64 `json:"runs"`
	Forced     uint64 `json:"forced"`
	StandDowns uint64 `json:"standDowns"`
	Failures   uint64 `json:"failures"`
}

// GateError represents a failed action run.
type GateError struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

// GateStatus represents the status of a gate.
type GateStatus int

const (
	// GateStatusUnspecified is used when the status is unspecified.
	GateStatusUnspecified GateStatus = iota
	// GateStatusIdle is used when no invocation is pending.
	GateStatusIdle
	// GateStatusPending is used when an invocation waits for its delay.
	GateStatusPending
	// GateStatusFailed is used when the last action run failed.
	GateStatusFailed
	// GateStatusStopped is used when the gate was stopped.
	GateStatusStopped
)

// String returns a string representation of a GateStatus.
func (d GateStatus) String() string {
	switch d {
	case GateStatusUnspecified:
		return "UNSPECIFIED"
	case GateStatusIdle:
		return "IDLE"
	case GateStatusPending:
		return "PENDING"
	case GateStatusFailed:
		return "FAILED"
	case GateStatusStopped:
		return "STOPPED"
	}
	return "UNSPECIFIED"
}

// GateStatusFromString returns a GateStatus from a string.
func GateStatusFromString(s string) GateStatus {
	switch s {
	default:
		return GateStatusUnspecified
	case "IDLE":
		return GateStatusIdle
	case "PENDING":
		return GateStatusPending
	case "FAILED":
		return GateStatusFailed
	case "STOPPED":
		return GateStatusStopped
	}
}

// MarshalJSON marshals a GateStatus into a string.
func (d GateStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON unmarshals a string into a GateStatus.
func (d *GateStatus) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	*d = GateStatusFromString(s)

	return nil
}

var (
	// DefaultState is the default state.
	DefaultState = New()
)

// New returns an empty state.
func New() *State {
	return &State{
		Gates: make(map[string]*GateState),
	}
}

// GetGateStatus returns the status of a gate.
func (s *State) GetGateStatus(name string) GateStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.Gates[name]; ok {
		return g.GateStatus
	}
	return GateStatusUnspecified
}

// get must be called with mu held.
func (s *State) get(name string) *GateState {
	g, ok := s.Gates[name]
	if !ok {
		g = &GateState{
			Errors: make([]GateError, 0),
		}
		s.Gates[name] = g
	}
	return g
}

// SetGateStatus sets the status of a gate.
func (s *State) SetGateStatus(name string, status GateStatus, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.get(name)
	g.GateStatus = status
	if labels != nil {
		g.Labels = labels
	}
	setStateMetrics(context.Background(), name, status, g.Labels)
}

// SetGateError appends an error to the log of a gate.
func (s *State) SetGateError(name string, err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.get(name)
	g.Errors = append(g.Errors, GateError{
		Timestamp: time.Now().UTC().String(),
		Error:     err.Error(),
	})
	if len(g.Errors) > maxErrors {
		g.Errors = g.Errors[len(g.Errors)-maxErrors:]
	}
}

// Remove forgets a gate.
func (s *State) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Gates, name)
}

// ReadState returns a deep copy of the current state.
func (s *State) ReadState() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := New()
	for name, g := range s.Gates {
		c := *g
		c.Errors = append([]GateError(nil), g.Errors...)
		if g.Labels != nil {
			c.Labels = make(map[string]string, len(g.Labels))
			for k, v := range g.Labels {
				c.Labels[k] = v
			}
		}
		out.Gates[name] = &c
	}
	return out
}

func (s *State) update(name string, fn func(g *GateState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.get(name)
	before := g.GateStatus
	fn(g)
	if g.GateStatus != before {
		setStateMetrics(context.Background(), name, g.GateStatus, g.Labels)
	}
}
