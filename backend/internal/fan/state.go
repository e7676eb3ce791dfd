// Package fan holds the process-wide fan state and the rules for changing it.
package fan

import (
	"sync/atomic"
)

// State is the operational state of the cave fan.
type State uint32

const (
	Off State = iota
	On
	// Failed is terminal: once entered, the fan never leaves it.
	Failed
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case On:
		return "on"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// commandTargets are the states a remote caller may request.
var commandTargets = map[string]State{
	"off": Off,
	"on":  On,
}

// ParseTarget maps an exact, case-sensitive state name to a commandable State.
// "failed" is not commandable.
func ParseTarget(s string) (State, bool) {
	st, ok := commandTargets[s]
	return st, ok
}

// Register is a concurrency-safe holder for the current State. The zero value holds Off.
type Register struct {
	v atomic.Uint32
}

// Load returns the current state.
func (r *Register) Load() State {
	return State(r.v.Load())
}

// Set moves the register to s unless it has already failed.
// It reports whether the state was written.
func (r *Register) Set(s State) bool {
	for {
		cur := r.v.Load()
		if State(cur) == Failed {
			return false
		}

		if r.v.CompareAndSwap(cur, uint32(s)) {
			return true
		}
	}
}

// Fail moves the register to Failed.
func (r *Register) Fail() {
	r.v.Store(uint32(Failed))
}
