// Package engine holds the process-wide on/off switch for auto-commenting.
package engine

import (
	"sync/atomic"
	"time"
)

// State is the engine activation flag. It is written by operator commands and
// read once per post event; the zero value is inactive.
type State struct {
	active  atomic.Bool
	changed atomic.Int64
}

// New returns a State with the given initial activation.
func New(active bool) *State {
	s := &State{}
	s.set(active)
	return s
}

// Activate turns the engine on. It reports whether the state changed.
func (s *State) Activate() bool { return s.set(true) }

// Deactivate turns the engine off. It reports whether the state changed.
func (s *State) Deactivate() bool { return s.set(false) }

// Active is a snapshot read of the flag.
func (s *State) Active() bool { return s.active.Load() }

// ChangedAt is when the flag last flipped (or was initialised).
func (s *State) ChangedAt() time.Time {
	return time.Unix(0, s.changed.Load())
}

func (s *State) set(active bool) bool {
	if s.active.Swap(active) == active && s.changed.Load() != 0 {
		return false
	}
	s.changed.Store(time.Now().UnixNano())
	return true
}
