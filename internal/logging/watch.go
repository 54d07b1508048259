package logging

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig watches the config file at path and calls reload when it
// changes, debouncing rapid write bursts from editors that truncate and
// rewrite. It blocks until ctx is canceled. If fsnotify is unavailable the
// watch is skipped; a restart is then needed to pick up logging changes.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger, reload func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fsnotify unavailable, config changes require restart", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	// Watch the directory: editors replace the file, invalidating a
	// watch on the path itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn("watching config directory failed", "error", err)
		return
	}

	base := filepath.Base(path)
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
			} else if !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(500 * time.Millisecond)
		case <-debounce.C:
			pending = false
			logger.Info("config file changed, reloading logging settings")
			reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}
