// Package watch re-runs an action when Python sources under a directory tree
// change, coalescing bursts of file events into one run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// ErrClosed indicates the underlying event stream ended.
var ErrClosed = errors.New("watch: event stream closed")

// Config configures a Watcher.
type Config struct {
	// Root is the directory watched recursively.
	Root string
	// Debounce is the quiet period after the last event before the action runs.
	Debounce time.Duration
	// Match selects the files whose changes trigger the action. Nil matches *.py.
	Match func(path string) bool
	// Ignore lists files whose changes never trigger the action, such as
	// the action's own output.
	Ignore []string

	// Logger is the structured logger. When nil, a discard logger is used.
	Logger *slog.Logger
}

// Watcher watches a directory tree.
type Watcher struct {
	fs       *fsnotify.Watcher
	root     string
	debounce time.Duration
	match    func(string) bool
	ignore   map[string]struct{}
	logger   *slog.Logger
}

// New creates a Watcher and registers every directory under cfg.Root.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsw,
		root:     cfg.Root,
		debounce: cfg.Debounce,
		match:    cfg.Match,
		ignore:   make(map[string]struct{}, len(cfg.Ignore)),
		logger:   cfg.Logger,
	}

	for _, path := range cfg.Ignore {
		w.ignore[absPath(path)] = struct{}{}
	}

	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if w.match == nil {
		w.match = IsPythonSource
	}

	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	err = w.addRecursive(cfg.Root)
	if err != nil {
		return nil, errors.Join(err, fsw.Close())
	}

	return w, nil
}

// IsPythonSource matches .py files.
func IsPythonSource(path string) bool {
	return strings.HasSuffix(path, ".py")
}

// Run calls onChange once per debounced burst of matching events until ctx
// is canceled. A failing onChange is logged and watching continues. Run
// closes the Watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer timer.Stop()

	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return ErrClosed
			}

			if !w.handle(event) {
				continue
			}

			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return ErrClosed
			}

			w.logger.WarnContext(ctx, "watch error", "error", err)

		case <-fire:
			fire = nil

			w.logger.DebugContext(ctx, "sources changed", "root", w.root)

			if err := onChange(ctx); err != nil {
				w.logger.ErrorContext(ctx, "rebuild failed", "error", err)
			}
		}
	}
}

// handle registers new directories and reports whether event should
// trigger the action.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if addErr := w.addRecursive(event.Name); addErr != nil {
				w.logger.Warn("watch new directory", "path", event.Name, "error", addErr)
			}

			return false
		}
	}

	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}

	if _, ok := w.ignore[absPath(event.Name)]; ok {
		return false
	}

	return w.match(event.Name)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if path != root && skipDir(entry.Name()) {
			return filepath.SkipDir
		}

		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}

		w.logger.Debug("watching", "dir", path)

		return nil
	})
}

func skipDir(name string) bool {
	return name == "__pycache__" || strings.HasPrefix(name, ".")
}
