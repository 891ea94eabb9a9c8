package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// DefaultSettle is how long a new dump must stay unchanged before it is
// reported.
const DefaultSettle = 250 * time.Millisecond

// Watcher reports dumps as they appear in a directory. Each path is reported
// once until it is removed.
type Watcher struct {
	dir     string
	settle  time.Duration
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*time.Timer
	reported map[string]bool
	ready    chan string
}

// NewWatcher starts watching dir. Events that happen before Run are queued
// by the OS watcher, so files created right after NewWatcher returns are not
// missed.
func NewWatcher(dir string, settle time.Duration) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		settle:   settle,
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
		reported: make(map[string]bool),
		ready:    make(chan string, 16),
	}, nil
}

// Run calls fn for every settled dump until ctx is done, then closes the
// watcher. fn runs on the calling goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(path string)) error {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-w.ready:
			w.mu.Lock()
			seen := w.reported[path]
			w.reported[path] = true
			w.mu.Unlock()
			if !seen {
				fn(path)
			}
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, core.SnapshotExt) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.schedule(ctx, event.Name)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.forget(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				continue
			}
			return fmt.Errorf("watching %s: %w", w.dir, err)
		}
	}
}

// schedule restarts the settle timer of path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	if w.reported[filepath.Clean(path)] {
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- filepath.Clean(path):
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.reported, filepath.Clean(path))
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
