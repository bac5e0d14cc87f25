// Package watch re-runs a callback when sql files under a directory change
package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory tree for sql file changes
type Watcher struct {
	root     string
	callback func() error
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	done     chan struct{}
}

// NewWatcher creates a watcher for root (a directory, or a single file whose directory is watched)
//
// logger may be nil
func NewWatcher(root string, callback func() error, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	absPath, err := filepath.Abs(root)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	w := &Watcher{
		root:     absPath,
		callback: callback,
		watcher:  watcher,
		logger:   logger,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	if err = w.addTree(absPath); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return w, nil
}

// WithDebounce sets the quiet period after the last change before the callback runs
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

func (w *Watcher) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path && !d.IsDir() {
			return w.watcher.Add(filepath.Dir(p))
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

// Start runs the callback once and then again after each (debounced) change
func (w *Watcher) Start() error {
	if err := w.callback(); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	var debounceCh <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				// new sub-directories are watched too
				_ = w.addTree(event.Name)
			}
			if w.relevant(event) {
				w.logger.Debug("change detected", "file", event.Name, "op", event.Op.String())
				debounceTimer.Reset(w.debounce)
				debounceCh = debounceTimer.C
			}
		case <-debounceCh:
			if err := w.callback(); err != nil {
				w.logger.Error("watch callback failed", "error", err)
			}
			debounceCh = nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		case <-w.done:
			debounceTimer.Stop()
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".sql")
}

// Stop stops watching
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
