package state

import (
	"errors"
	"os"

	"github.com/shamaton/msgpack/v2"
)

// Save writes a msgpack snapshot of the state to path.
func (s *State) Save(path string) error {
	snapshot := s.ReadState()
	data, err := msgpack.Marshal(snapshot.Gates)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load restores a snapshot written by Save. Restored gates are marked idle
// since no invocation survives a restart. A missing file is not an error.
func (s *State) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	gates := make(map[string]*GateState)
	if err := msgpack.Unmarshal(data, &gates); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, g := range gates {
		if g.Errors == nil {
			g.Errors = make([]GateError, 0)
		}
		if g.GateStatus == GateStatusPending {
			g.GateStatus = GateStatusIdle
		}
		s.Gates[name] = g
	}
	return nil
}
