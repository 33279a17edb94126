// Package watch re-runs an import whenever files under a source tree change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"forumsync/internal/importer"
)

// DefaultQuietPeriod is how long the tree must be still before a pass runs.
const DefaultQuietPeriod = 2 * time.Second

// IgnoreFunc reports whether a slash-separated path relative to the root is
// excluded from watching.
type IgnoreFunc func(relativePath string) bool

// Watcher watches every directory of a tree and calls back after a burst of
// changes has settled.
type Watcher struct {
	root    string
	ignored IgnoreFunc
	quiet   time.Duration
	logger  importer.Logger
}

// NewWatcher creates a Watcher for root. A nil ignored func watches
// everything; a non-positive quiet period uses DefaultQuietPeriod.
func NewWatcher(root string, ignored IgnoreFunc, quiet time.Duration, logger importer.Logger) *Watcher {
	if ignored == nil {
		ignored = func(string) bool { return false }
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = importer.NewNopLogger()
	}
	return &Watcher{root: root, ignored: ignored, quiet: quiet, logger: logger}
}

// Run watches until ctx is done, calling onChange once per settled burst of
// events. Errors from onChange are logged and watching continues; only a
// failure to set up the watch or a canceled context ends Run.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}

	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handle(fw, event) {
				continue
			}
			pending++
			timer.Reset(w.quiet)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			w.logger.Info("changes settled", "events", pending)
			pending = 0
			if err := onChange(ctx); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				w.logger.Error("import after change failed", "error", err)
			}
		}
	}
}

// handle filters an event and starts watching newly created directories.
// It reports whether the event should trigger a pass.
func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	rel, ok := w.relative(event.Name)
	if !ok || w.ignored(rel) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", rel, "error", err)
			}
		}
	}
	w.logger.Debug("change", "path", rel, "op", event.Op.String())
	return true
}

// addTree adds dir and every non-ignored directory beneath it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(p); ok && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// relative returns p relative to the root with forward slashes. The root
// itself and paths outside it are not relative.
func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
