package catalog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// =============================================================================
// Watcher
// =============================================================================

// DefaultRebuildDebounce is the default quiet interval before a rebuild is
// signalled after the last file event.
const DefaultRebuildDebounce = 250 * time.Millisecond

var (
	// ErrWatchRootNotDir indicates the watch root is not a directory.
	ErrWatchRootNotDir = errors.New("watch root is not a directory")

	// ErrWatcherClosed indicates the watcher was already stopped.
	ErrWatcherClosed = errors.New("watcher already closed")
)

// WatchOptions configures a catalog watcher.
type WatchOptions struct {
	// Debounce is the quiet interval before OnChange fires. Defaults to
	// DefaultRebuildDebounce.
	Debounce time.Duration

	// ExcludePatterns are glob patterns (relative, slash-separated) for
	// paths whose events are ignored.
	ExcludePatterns []string

	// OnChange receives the batch of changed paths once the debounce
	// interval elapses. The catalog index should be rebuilt in response.
	OnChange func(paths []string)
}

// Watcher monitors a context directory and signals when documents change so
// the host can rebuild the Index. The Index itself stays immutable; a
// rebuild produces a fresh one.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	excludes []glob.Glob
	onChange func([]string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	closed  bool
	done    chan struct{}
}

// NewWatcher creates and starts a watcher over root and all its
// subdirectories.
func NewWatcher(root string, opts WatchOptions) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrWatchRootNotDir
	}

	excludes, err := compilePatterns(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		fsw:      fsw,
		debounce: opts.Debounce,
		excludes: excludes,
		onChange: opts.OnChange,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultRebuildDebounce
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if entry.Name() != filepath.Base(root) && len(entry.Name()) > 0 && entry.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; the next rebuild rescans the
			// whole tree anyway.
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	if matchesAny(w.excludes, filepath.ToSlash(rel)) {
		return
	}

	// New directories need explicit watches.
	if event.Op.Has(fsnotify.Create) {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			w.addRecursive(event.Name)
			return
		}
	}

	if filepath.Ext(event.Name) != ".md" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.pending[event.Name] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.fire)
	} else {
		w.timer.Reset(w.debounce)
	}
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	onChange := w.onChange
	w.mu.Unlock()

	sort.Strings(paths)

	if onChange != nil {
		onChange(paths)
	}
}
