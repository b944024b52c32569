// Package scheduler owns the discovery Runner lifecycle and the retention reaper.
//
// Runner state graph:
//
//	IDLE ──start──► RUNNING ──stop──► IDLE
//
// start while RUNNING and stop while IDLE are no-ops, not transitions.
package scheduler

import "fmt"

// State is the Runner's lifecycle state as reported by Status.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StateIdle:    {StateRunning},
	StateRunning: {StateIdle},
}

// ParseState converts a raw string to a State, returning an error for
// unknown values.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateIdle, StateRunning:
		return st, nil
	}
	return "", fmt.Errorf("unknown runner state %q", s)
}

// IsTransitionAllowed returns true when moving from → to changes the Runner state.
func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
