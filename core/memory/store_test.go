package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helpers
// =============================================================================

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "memory.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testScope(category string) Scope {
	return Scope{OwnerID: "engineer", ProjectID: "proj-1", Category: category}
}

func commitOne(t *testing.T, store *Store, scope Scope, key, value string, strategy Strategy) {
	t.Helper()
	batch := store.NewBatch()
	require.NoError(t, batch.Merge(scope, Delta{Key: key, Value: value, Strategy: strategy, Origin: "test"}))
	require.NoError(t, batch.Commit(context.Background()))
}

// =============================================================================
// Read
// =============================================================================

func TestRead_EmptyScope(t *testing.T) {
	store := openTestStore(t, Options{})

	entries, err := store.Read(context.Background(), testScope("conventions"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_InvalidScope(t *testing.T) {
	store := openTestStore(t, Options{})

	_, err := store.Read(context.Background(), Scope{OwnerID: "a"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestRead_Idempotent(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("conventions")
	commitOne(t, store, scope, "style", `"tabs"`, Replace)

	first, err := store.Read(context.Background(), scope)
	require.NoError(t, err)
	second, err := store.Read(context.Background(), scope)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRead_OrderedByKey(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("conventions")
	commitOne(t, store, scope, "zeta", `"z"`, Replace)
	commitOne(t, store, scope, "alpha", `"a"`, Replace)

	entries, err := store.Read(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Key)
	assert.Equal(t, "zeta", entries[1].Key)
}

// =============================================================================
// Batch commit
// =============================================================================

func TestCommit_WritesEntryWithOrigin(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("conventions")

	batch := store.NewBatch()
	require.NoError(t, batch.Merge(scope, Delta{
		Key: "style", Value: `"tabs"`, Strategy: Replace, Origin: "session-42",
	}))
	require.NoError(t, batch.Commit(context.Background()))

	entry, ok, err := store.Get(context.Background(), scope, "style")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"tabs"`, entry.Value)
	assert.Equal(t, "session-42", entry.Origin)
	assert.False(t, entry.UpdatedAt.IsZero())
}

func TestCommit_ReplaceOverwrites(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("settings")
	commitOne(t, store, scope, "model", `"X"`, Replace)
	commitOne(t, store, scope, "model", `"Y"`, Replace)

	entry, ok, err := store.Get(context.Background(), scope, "model")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"Y"`, entry.Value)
}

func TestCommit_AppendLogAcrossSessions(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("review-log")
	commitOne(t, store, scope, "entries", `[1]`, AppendLog)
	commitOne(t, store, scope, "entries", `[2]`, AppendLog)

	entry, ok, err := store.Get(context.Background(), scope, "entries")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, entry.Value)
}

func TestCommit_MergeObjectAcrossSessions(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("profile")
	commitOne(t, store, scope, "prefs", `{"a":1}`, MergeObject)
	commitOne(t, store, scope, "prefs", `{"b":2}`, MergeObject)

	entry, ok, err := store.Get(context.Background(), scope, "prefs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1,"b":2}`, entry.Value)
}

func TestCommit_ScopeIsolationOnFailure(t *testing.T) {
	store := openTestStore(t, Options{})
	bad := testScope("review-log")
	good := testScope("conventions")

	// Poison the bad scope: stored value is not a JSON array.
	commitOne(t, store, bad, "entries", `"plain"`, Replace)

	batch := store.NewBatch()
	require.NoError(t, batch.Merge(bad, Delta{Key: "entries", Value: `[1]`, Strategy: AppendLog}))
	require.NoError(t, batch.Merge(good, Delta{Key: "style", Value: `"tabs"`, Strategy: Replace}))

	err := batch.Commit(context.Background())
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	require.Len(t, commitErr.FailedScopes(), 1)
	assert.Equal(t, bad, commitErr.FailedScopes()[0])

	// The good scope committed despite the bad scope's failure.
	entry, ok, getErr := store.Get(context.Background(), good, "style")
	require.NoError(t, getErr)
	require.True(t, ok)
	assert.Equal(t, `"tabs"`, entry.Value)

	// Failed scope stays staged for a scoped retry.
	assert.Equal(t, 1, batch.Len())
	assert.Equal(t, []Scope{bad}, batch.Scopes())
}

func TestCommit_AtomicPerScope(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("review-log")
	commitOne(t, store, scope, "entries", `"plain"`, Replace)

	// First delta would succeed, second fails; neither must be visible.
	batch := store.NewBatch()
	require.NoError(t, batch.Merge(scope, Delta{Key: "fresh", Value: `"v"`, Strategy: Replace}))
	require.NoError(t, batch.Merge(scope, Delta{Key: "entries", Value: `[1]`, Strategy: AppendLog}))

	err := batch.Commit(context.Background())
	require.Error(t, err)

	_, ok, getErr := store.Get(context.Background(), scope, "fresh")
	require.NoError(t, getErr)
	assert.False(t, ok)
}

func TestMerge_RequiredStrategyEnforced(t *testing.T) {
	store := openTestStore(t, Options{
		RequiredStrategies: map[string]Strategy{"review-log": AppendLog},
	})

	batch := store.NewBatch()
	err := batch.Merge(testScope("review-log"), Delta{Key: "entries", Value: `"x"`, Strategy: Replace})
	assert.ErrorIs(t, err, ErrStrategyRequired)

	assert.NoError(t, batch.Merge(testScope("review-log"), Delta{Key: "entries", Value: `[1]`, Strategy: AppendLog}))
	assert.NoError(t, batch.Merge(testScope("other"), Delta{Key: "k", Value: `"x"`, Strategy: Replace}))
}

func TestMerge_Validation(t *testing.T) {
	store := openTestStore(t, Options{})
	batch := store.NewBatch()

	assert.ErrorIs(t, batch.Merge(Scope{}, Delta{Key: "k", Value: `"v"`}), ErrInvalidScope)
	assert.ErrorIs(t, batch.Merge(testScope("c"), Delta{Value: `"v"`}), ErrEmptyKey)
}

// =============================================================================
// Prune and staleness
// =============================================================================

func TestPrune_KeepsMostRecent(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("conventions")

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"old", "mid", "new"} {
		stamp := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return stamp }
		commitOne(t, store, scope, key, `"v"`, Replace)
	}
	store.now = func() time.Time { return base.Add(24 * time.Hour) }

	removed, err := store.Prune(context.Background(), scope, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, removed)

	entries, err := store.Read(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPrune_UnderLimitNoop(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("conventions")
	commitOne(t, store, scope, "only", `"v"`, Replace)

	removed, err := store.Prune(context.Background(), scope, 10)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestStale_ReportsOldEntries(t *testing.T) {
	store := openTestStore(t, Options{})
	scope := testScope("conventions")

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	commitOne(t, store, scope, "ancient", `"v"`, Replace)
	store.now = func() time.Time { return base.Add(30 * 24 * time.Hour) }
	commitOne(t, store, scope, "recent", `"v"`, Replace)

	stale, err := store.Stale(context.Background(), scope, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "ancient", stale[0].Key)

	// Staleness is reported only; the entry is still readable.
	entries, err := store.Read(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestCommit_ConcurrentDifferentScopes(t *testing.T) {
	store := openTestStore(t, Options{})

	done := make(chan error, 2)
	for _, category := range []string{"a", "b"} {
		go func(category string) {
			batch := store.NewBatch()
			if err := batch.Merge(testScope(category), Delta{Key: "k", Value: `"v"`, Strategy: Replace}); err != nil {
				done <- err
				return
			}
			done <- batch.Commit(context.Background())
		}(category)
	}
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}
