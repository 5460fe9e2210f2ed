package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Store
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS memory_entries (
	owner_id   TEXT NOT NULL,
	project_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	origin     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (owner_id, project_id, category, key)
);
CREATE INDEX IF NOT EXISTS idx_memory_scope_updated
	ON memory_entries(owner_id, project_id, category, updated_at);
`

// Options configures a Store.
type Options struct {
	// RequiredStrategies maps a category to the only merge strategy its
	// entries accept. Merging with a different strategy is a configuration
	// defect surfaced at staging time.
	RequiredStrategies map[string]Strategy
}

// Store manages scoped memory entries with SQLite persistence. Safe for
// concurrent sessions: commits serialize per scope, and commits to different
// scopes proceed independently.
type Store struct {
	db       *sql.DB
	required map[string]Strategy

	mu         sync.Mutex
	scopeLocks map[Scope]*sync.Mutex
	closed     bool

	// now is swappable for tests.
	now func() time.Time
}

// Open opens (creating if needed) a memory database at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	store, err := NewStore(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing database connection, creating the schema if
// missing.
func NewStore(db *sql.DB, opts Options) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create memory schema: %w", err)
	}
	required := opts.RequiredStrategies
	if required == nil {
		required = make(map[string]Strategy)
	}
	return &Store{
		db:         db,
		required:   required,
		scopeLocks: make(map[Scope]*sync.Mutex),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

// Read returns all entries for a scope, ordered by key. A nonexistent scope
// yields an empty result, not an error.
func (s *Store) Read(ctx context.Context, scope Scope) ([]Entry, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at, origin
		FROM memory_entries
		WHERE owner_id = ? AND project_id = ? AND category = ?
		ORDER BY key ASC
	`, scope.OwnerID, scope.ProjectID, scope.Category)
	if err != nil {
		return nil, fmt.Errorf("read scope %s: %w", scope, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry := Entry{Scope: scope}
		var updatedAt int64
		if err := rows.Scan(&entry.Key, &entry.Value, &updatedAt, &entry.Origin); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.UpdatedAt = time.Unix(0, updatedAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Get returns a single entry by key.
func (s *Store) Get(ctx context.Context, scope Scope, key string) (Entry, bool, error) {
	if !scope.Valid() {
		return Entry{}, false, ErrInvalidScope
	}

	entry := Entry{Scope: scope, Key: key}
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value, updated_at, origin
		FROM memory_entries
		WHERE owner_id = ? AND project_id = ? AND category = ? AND key = ?
	`, scope.OwnerID, scope.ProjectID, scope.Category, key).
		Scan(&entry.Value, &updatedAt, &entry.Origin)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	entry.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return entry, true, nil
}

// RequiredStrategy returns the merge strategy a category demands, if any.
func (s *Store) RequiredStrategy(category string) (Strategy, bool) {
	strategy, ok := s.required[category]
	return strategy, ok
}

// Prune bounds a scope to its maxEntries most recently updated entries and
// returns the keys it removed. Pruning is an explicit host decision; nothing
// in the engine deletes entries on its own.
func (s *Store) Prune(ctx context.Context, scope Scope, maxEntries int) ([]string, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("prune %s: maxEntries must be positive", scope)
	}

	lock := s.lockScope(scope)
	defer lock.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM memory_entries
		WHERE owner_id = ? AND project_id = ? AND category = ?
		ORDER BY updated_at DESC, key ASC
		LIMIT -1 OFFSET ?
	`, scope.OwnerID, scope.ProjectID, scope.Category, maxEntries)
	if err != nil {
		return nil, fmt.Errorf("prune %s: %w", scope, err)
	}

	var victims []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("prune %s: %w", scope, err)
		}
		victims = append(victims, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("prune %s: %w", scope, err)
	}
	rows.Close()

	for _, key := range victims {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM memory_entries
			WHERE owner_id = ? AND project_id = ? AND category = ? AND key = ?
		`, scope.OwnerID, scope.ProjectID, scope.Category, key)
		if err != nil {
			return victims, fmt.Errorf("prune %s: delete %s: %w", scope, key, err)
		}
	}
	return victims, nil
}

// Stale returns entries not updated within maxAge, oldest first. Staleness
// is reported, never acted on: superseding or pruning is the host's call.
func (s *Store) Stale(ctx context.Context, scope Scope, maxAge time.Duration) ([]Entry, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	cutoff := s.now().Add(-maxAge).UnixNano()
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at, origin
		FROM memory_entries
		WHERE owner_id = ? AND project_id = ? AND category = ? AND updated_at < ?
		ORDER BY updated_at ASC, key ASC
	`, scope.OwnerID, scope.ProjectID, scope.Category, cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale %s: %w", scope, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry := Entry{Scope: scope}
		var updatedAt int64
		if err := rows.Scan(&entry.Key, &entry.Value, &updatedAt, &entry.Origin); err != nil {
			return nil, fmt.Errorf("stale %s: %w", scope, err)
		}
		entry.UpdatedAt = time.Unix(0, updatedAt).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// lockScope returns the locked per-scope mutex. The caller unlocks it.
func (s *Store) lockScope(scope Scope) *sync.Mutex {
	s.mu.Lock()
	lock, ok := s.scopeLocks[scope]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[scope] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock
}

// applyScope applies one scope's deltas in a single transaction. Either all
// of them become visible or none do. Serialized against concurrent commits
// to the same scope; last-write-wins on updated_at against concurrent
// writers that slipped in between.
func (s *Store) applyScope(ctx context.Context, scope Scope, deltas []Delta) error {
	lock := s.lockScope(scope)
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, delta := range deltas {
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT value FROM memory_entries
			WHERE owner_id = ? AND project_id = ? AND category = ? AND key = ?
		`, scope.OwnerID, scope.ProjectID, scope.Category, delta.Key).Scan(&existing)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("load %s: %w", delta.Key, err)
		}

		merged, err := applyStrategy(existing, delta.Value, delta.Strategy)
		if err != nil {
			return fmt.Errorf("merge %s: %w", delta.Key, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO memory_entries (owner_id, project_id, category, key, value, updated_at, origin)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (owner_id, project_id, category, key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at,
				origin = excluded.origin
			WHERE excluded.updated_at >= memory_entries.updated_at
		`, scope.OwnerID, scope.ProjectID, scope.Category, delta.Key,
			merged, s.now().UnixNano(), delta.Origin)
		if err != nil {
			return fmt.Errorf("write %s: %w", delta.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
