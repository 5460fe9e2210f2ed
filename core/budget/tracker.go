// Package budget provides admission control for context loading. A Tracker
// owns the token and file allowance for a single session and is consulted by
// the resolver before every load-plan entry is admitted.
package budget

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultMaxTokens is the default token ceiling for a session.
	DefaultMaxTokens = 8000

	// DefaultMaxFiles is the default file-count ceiling for a session.
	DefaultMaxFiles = 12
)

// =============================================================================
// Tracker
// =============================================================================

// Tracker is a depletable counter of the remaining token and file allowance
// for one session. Reservations are all-or-nothing: a refused reservation
// leaves the counters untouched. Safe for concurrent use, though a session
// normally consults it from a single goroutine.
type Tracker struct {
	mu sync.Mutex

	maxTokens int
	maxFiles  int

	spentTokens int
	spentFiles  int

	released atomic.Bool
}

// Config holds the ceilings for a new Tracker.
type Config struct {
	MaxTokens int
	MaxFiles  int
}

// NewTracker creates a Tracker with the given ceilings. Non-positive ceilings
// fall back to the defaults.
func NewTracker(config Config) *Tracker {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = DefaultMaxFiles
	}
	return &Tracker{
		maxTokens: config.MaxTokens,
		maxFiles:  config.MaxFiles,
	}
}

// TryReserve atomically checks whether costTokens and costFiles fit within the
// remaining allowance and, if so, commits the reservation. Returns false
// without any partial reservation otherwise. A released Tracker refuses all
// reservations.
func (t *Tracker) TryReserve(costTokens, costFiles int) bool {
	if t.released.Load() {
		return false
	}
	if costTokens < 0 || costFiles < 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.spentTokens+costTokens > t.maxTokens {
		return false
	}
	if t.spentFiles+costFiles > t.maxFiles {
		return false
	}

	t.spentTokens += costTokens
	t.spentFiles += costFiles
	return true
}

// Fits reports whether a reservation of costTokens and costFiles would
// currently succeed, without committing it.
func (t *Tracker) Fits(costTokens, costFiles int) bool {
	if t.released.Load() || costTokens < 0 || costFiles < 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spentTokens+costTokens <= t.maxTokens && t.spentFiles+costFiles <= t.maxFiles
}

// RemainingTokens returns the unreserved token allowance.
func (t *Tracker) RemainingTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxTokens - t.spentTokens
}

// RemainingFiles returns the unreserved file allowance.
func (t *Tracker) RemainingFiles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxFiles - t.spentFiles
}

// SpentTokens returns the tokens reserved so far.
func (t *Tracker) SpentTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spentTokens
}

// SpentFiles returns the files reserved so far.
func (t *Tracker) SpentFiles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spentFiles
}

// MaxTokens returns the token ceiling.
func (t *Tracker) MaxTokens() int {
	return t.maxTokens
}

// MaxFiles returns the file ceiling.
func (t *Tracker) MaxFiles() int {
	return t.maxFiles
}

// Release marks the Tracker as spent. Further reservations are refused.
// Called by the session controller when the session closes; idempotent.
func (t *Tracker) Release() {
	t.released.Store(true)
}

// Released reports whether the Tracker has been released.
func (t *Tracker) Released() bool {
	return t.released.Load()
}
