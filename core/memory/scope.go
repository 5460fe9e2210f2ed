// Package memory provides durable, scoped knowledge persistence across
// sessions, backed by SQLite. Entries are keyed by (owner, project,
// category, key); merges are staged per session and committed atomically per
// scope.
package memory

import (
	"errors"
	"time"
)

// =============================================================================
// Scope
// =============================================================================

// Scope identifies one independent memory namespace. Commits to different
// scopes never block or affect each other.
type Scope struct {
	// OwnerID identifies the agent or skill that owns the entries.
	OwnerID string

	// ProjectID isolates memory per project.
	ProjectID string

	// Category groups entries by kind, e.g. "conventions" or "review-log".
	Category string
}

// String returns the owner/project/category path form of the scope.
func (s Scope) String() string {
	return s.OwnerID + "/" + s.ProjectID + "/" + s.Category
}

// Valid reports whether all three scope components are set.
func (s Scope) Valid() bool {
	return s.OwnerID != "" && s.ProjectID != "" && s.Category != ""
}

// =============================================================================
// Entry
// =============================================================================

// Entry is one persisted piece of knowledge. Entries are never silently
// deleted: stale entries persist until explicitly superseded or pruned.
type Entry struct {
	Scope     Scope
	Key       string
	Value     string
	UpdatedAt time.Time
	Origin    string
}

// Delta is one staged memory change produced by a session's collaborator.
type Delta struct {
	Key      string
	Value    string
	Strategy Strategy
	Origin   string
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidScope indicates a scope with a missing component.
	ErrInvalidScope = errors.New("scope requires owner, project, and category")

	// ErrEmptyKey indicates a delta without a key.
	ErrEmptyKey = errors.New("memory delta requires a key")

	// ErrStrategyRequired indicates a merge whose strategy conflicts with
	// the strategy configured as required for the category.
	ErrStrategyRequired = errors.New("category requires a specific merge strategy")

	// ErrStoreClosed indicates use of a closed store.
	ErrStoreClosed = errors.New("memory store is closed")
)
