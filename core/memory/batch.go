package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Batch
// =============================================================================

// Batch stages one session's memory merges. Merges accumulate in call order
// per scope and are flushed by Commit, one transaction per scope. A Batch is
// owned by a single session and is not safe for concurrent use.
type Batch struct {
	store  *Store
	staged map[Scope][]Delta
}

// NewBatch creates an empty staging batch over the store.
func (s *Store) NewBatch() *Batch {
	return &Batch{
		store:  s,
		staged: make(map[Scope][]Delta),
	}
}

// Merge stages one delta. The scope must be fully qualified, the key
// non-empty, and the strategy must match the category's required strategy
// when one is configured. A mismatch is a configuration defect, reported
// here rather than at commit time.
func (b *Batch) Merge(scope Scope, delta Delta) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}
	if delta.Key == "" {
		return ErrEmptyKey
	}
	if required, ok := b.store.RequiredStrategy(scope.Category); ok && required != delta.Strategy {
		return fmt.Errorf("%w: category %q requires %s, got %s",
			ErrStrategyRequired, scope.Category, required, delta.Strategy)
	}

	b.staged[scope] = append(b.staged[scope], delta)
	return nil
}

// Len returns the number of staged deltas across all scopes.
func (b *Batch) Len() int {
	total := 0
	for _, deltas := range b.staged {
		total += len(deltas)
	}
	return total
}

// Scopes returns the scopes with staged deltas, sorted.
func (b *Batch) Scopes() []Scope {
	scopes := make([]Scope, 0, len(b.staged))
	for scope := range b.staged {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool {
		return scopes[i].String() < scopes[j].String()
	})
	return scopes
}

// Commit flushes all staged deltas, one transaction per scope. Scopes are
// independent: a failure in one neither blocks nor rolls back the others.
// On any failure the returned error is a *CommitError naming exactly the
// scopes that failed; their deltas stay staged so the caller can retry just
// those scopes. Successful scopes are cleared.
func (b *Batch) Commit(ctx context.Context) error {
	failed := make(map[Scope]error)

	for _, scope := range b.Scopes() {
		if err := b.store.applyScope(ctx, scope, b.staged[scope]); err != nil {
			failed[scope] = err
			continue
		}
		delete(b.staged, scope)
	}

	if len(failed) > 0 {
		return &CommitError{Failed: failed}
	}
	return nil
}

// =============================================================================
// CommitError
// =============================================================================

// CommitError reports per-scope commit failures. Scopes absent from Failed
// committed successfully.
type CommitError struct {
	Failed map[Scope]error
}

func (e *CommitError) Error() string {
	scopes := e.FailedScopes()
	names := make([]string, len(scopes))
	for i, scope := range scopes {
		names[i] = fmt.Sprintf("%s: %v", scope, e.Failed[scope])
	}
	return "memory commit failed for " + strings.Join(names, "; ")
}

// FailedScopes returns the failed scopes, sorted.
func (e *CommitError) FailedScopes() []Scope {
	scopes := make([]Scope, 0, len(e.Failed))
	for scope := range e.Failed {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool {
		return scopes[i].String() < scopes[j].String()
	})
	return scopes
}
