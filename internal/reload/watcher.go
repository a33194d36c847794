package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a single file, normally the configuration
// file. It watches the file's directory rather than the file itself so that
// editors which save by writing a temp file and renaming it over the
// original keep triggering events after the first save.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for path. Events closer together than
// debounce are collapsed into one change notification.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
	}
}

// Start sets up the watch and returns an error immediately if that fails;
// callers should log it and carry on without file-triggered reloads. On
// success the watch runs in the background until ctx is cancelled, calling
// onChange once per (debounced) modification.
func (w *Watcher) Start(ctx context.Context, onChange func()) error {
	if _, err := os.Stat(w.path); err != nil {
		return fmt.Errorf("watching config file: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watching config directory %s: %w", dir, err)
	}

	w.logger.Info("file watcher started", "path", w.path, "debounce", w.debounce)

	go w.watchLoop(ctx, fw, onChange)
	return nil
}

// watchLoop processes fsnotify events with debouncing.
func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher, onChange func()) {
	defer fw.Close()

	// Editors often write multiple events on save.
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("file watcher stopped", "path", w.path)
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("watched file event", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.logger.Info("watched file changed", "path", w.path)
			onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}
