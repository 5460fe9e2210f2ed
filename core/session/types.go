// Package session orchestrates one task lifecycle: memory load, context
// resolution, execution hand-off, and memory commit. A Controller owns its
// budget tracker and is used once; the catalog index, resolver, and memory
// store it consumes are shared across sessions.
package session

import (
	"errors"
)

// =============================================================================
// Session State
// =============================================================================

// State represents the lifecycle state of a session.
type State int

const (
	// StateInit indicates the session has been created but nothing loaded.
	StateInit State = iota
	// StateMemoryLoaded indicates memory has been read for all scopes.
	StateMemoryLoaded
	// StateContextResolved indicates the load plan is frozen.
	StateContextResolved
	// StateExecuting indicates the bundle has been handed to the collaborator.
	StateExecuting
	// StateMemoryCommitted indicates collaborator deltas have been flushed.
	StateMemoryCommitted
	// StateClosed is terminal; the budget has been released.
	StateClosed
)

// String returns the string representation of a session state.
func (s State) String() string {
	if name, ok := stateStrings()[s]; ok {
		return name
	}
	return "unknown"
}

type stateStringMap map[State]string

func stateStrings() stateStringMap {
	return stateStringMap{
		StateInit:            "init",
		StateMemoryLoaded:    "memory_loaded",
		StateContextResolved: "context_resolved",
		StateExecuting:       "executing",
		StateMemoryCommitted: "memory_committed",
		StateClosed:          "closed",
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Next returns the sole legal successor state. The session lifecycle is a
// straight line; no transition may be skipped.
func (s State) Next() (State, bool) {
	if s >= StateInit && s < StateClosed {
		return s + 1, true
	}
	return s, false
}

// CanTransitionTo returns true if target is the immediate successor.
func (s State) CanTransitionTo(target State) bool {
	next, ok := s.Next()
	return ok && next == target
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidTransition indicates an out-of-order lifecycle call. This is
	// a caller contract violation, never recovered from.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrClosed indicates use of a closed session.
	ErrClosed = errors.New("session is closed")

	// ErrNoScopes indicates a session declared no memory scopes.
	ErrNoScopes = errors.New("session declares no memory scopes")
)
