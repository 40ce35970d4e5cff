// Package watch re-runs a callback whenever files under a directory tree
// change, after the changes have settled.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/toyinlola/warden/pkg/scanner"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Config holds configuration for a Watcher.
type Config struct {
	// Root is the directory tree to watch.
	Root string

	// Debounce is the time to wait after the last change before OnChange runs.
	Debounce time.Duration

	// IgnoreDirs lists extra directory base names that are not watched,
	// on top of the directories scanners never descend into.
	IgnoreDirs []string

	// OnChange receives the sorted, slash-separated paths (relative to Root)
	// that changed since the previous call.
	OnChange func(ctx context.Context, changed []string) error

	// OnError is called when watching or OnChange fails.
	OnError func(err error)

	Logger *slog.Logger
}

// Watcher monitors a directory tree with fsnotify.
type Watcher struct {
	config   Config
	watcher  *fsnotify.Watcher
	ignore   map[string]bool
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
}

// New creates a watcher. Call Start or Run to begin watching.
func New(config Config) (*Watcher, error) {
	if config.Root == "" {
		return nil, errors.New("watch: root is required")
	}
	if config.OnChange == nil {
		return nil, errors.New("watch: OnChange is required")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	ignore := make(map[string]bool, len(config.IgnoreDirs))
	for _, d := range config.IgnoreDirs {
		ignore[d] = true
	}

	return &Watcher{
		config:  config,
		watcher: fsWatcher,
		ignore:  ignore,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start adds every directory under Root and begins the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.config.Root); err != nil {
		close(w.doneCh)
		return err
	}

	go w.watchLoop(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-w.doneCh:
	}
	return w.Stop()
}

// Stop ends the event loop and releases the fsnotify watcher. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		started := w.running
		w.mu.Unlock()

		close(w.stopCh)
		if started {
			<-w.doneCh
		}
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) skip(name string) bool {
	return scanner.SkipDir(name) || w.ignore[name]
}

// addTree watches dir and all of its subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch: adding %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether an event path is outside every ignored directory.
func (w *Watcher) relevant(rel string) bool {
	for dir := filepath.Dir(filepath.FromSlash(rel)); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.skip(filepath.Base(dir)) {
			return false
		}
	}
	return !w.skip(filepath.Base(rel))
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	changed := make(map[string]bool)

	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-w.stopCh:
			stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			rel, err := filepath.Rel(w.config.Root, event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !w.relevant(rel) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Debug("watch: not a directory or vanished", "path", rel, "error", err)
				}
			}

			changed[rel] = true
			stopTimer()
			debounceTimer = time.NewTimer(w.config.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(changed)

			w.logger.Debug("change detected", "paths", len(paths))
			if err := w.config.OnChange(ctx, paths); err != nil {
				w.reportError(err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.config.OnError != nil {
		w.config.OnError(err)
		return
	}
	w.logger.Warn("watch error", "error", err)
}
