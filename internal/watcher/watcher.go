package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow coalesces bursts of repository writes; deploys
// touch several sibling files (artifact, pom, checksums) in quick
// succession.
const DefaultDebounceWindow = 500 * time.Millisecond

// Watcher observes a repository root recursively and emits debounced
// batches of artifact file events.
type Watcher struct {
	root      string
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
	skip      func(name string) bool

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher over root. skip filters file names that are not
// artifacts (checksums, metadata); nil keeps everything.
func New(root string, window time.Duration, skip func(name string) bool) (*Watcher, error) {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	w := &Watcher{
		root:      root,
		debouncer: NewDebouncer(window),
		fsw:       fsw,
		skip:      skip,
		done:      make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start runs the event loop until the context is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer w.debouncer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(ev)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("watcher_error", slog.String("error", err.Error()))
			}
		}
	}()
}

// Events returns the channel of debounced event batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}

// handle maps one fsnotify event into the debouncer, tracking new
// directories as they appear.
func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				slog.Warn("watch_add_failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			return
		}
	}

	if w.skip(filepath.Base(ev.Name)) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      ev.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// addRecursive registers root and every subdirectory with fsnotify.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}
