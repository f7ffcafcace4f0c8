package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher triggers a reload whenever files under a content directory change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches root and every directory beneath it. onChange runs at
// most once per debounce window.
func NewWatcher(root string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	return &Watcher{watcher: fw, onChange: onChange, debounce: debounce}, nil
}

// Run dispatches change notifications until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(ev.Name)
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			slog.Debug("catalog change detected", "path", ev.Name, "op", ev.Op.String())
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}
