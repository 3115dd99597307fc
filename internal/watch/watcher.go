// Package watch re-runs a callback when source files under a directory
// change. Events within the debounce window are coalesced so the callback
// fires once with the full set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// defaultSkipDirs are never watched.
var defaultSkipDirs = []string{".git", "node_modules", "vendor", "bower_components"}

// Config holds the parameters for a Watcher.
type Config struct {
	// Root is the directory to watch recursively. Empty means ".".
	Root string

	// Debounce is the quiet period after the last event before OnChange
	// fires. Zero or negative values use the default.
	Debounce time.Duration

	// Match selects which files trigger callbacks, given their path relative
	// to Root. Nil matches every file.
	Match func(rel string) bool

	// SkipDirs are directory names skipped at any depth, in addition to
	// hidden directories and the defaults.
	SkipDirs []string

	// OnChange receives the sorted changed paths, each joined onto Root.
	// Deleted files are included; the callback decides what to do with them.
	OnChange func(ctx context.Context, changed []string) error

	Logger *log.Logger
}

// Watcher monitors a directory tree. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	root     string
	absRoot  string
	skip     map[string]bool
	debounce time.Duration
	logger   *log.Logger
	started  atomic.Bool
}

// New registers every non-skipped directory under cfg.Root.
func New(cfg Config) (*Watcher, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	skip := make(map[string]bool, len(defaultSkipDirs)+len(cfg.SkipDirs))
	for _, d := range append(slices.Clone(defaultSkipDirs), cfg.SkipDirs...) {
		skip[d] = true
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		absRoot:  absRoot,
		skip:     skip,
		debounce: debounce,
		logger:   logger,
	}
	if err := w.addDirectories(absRoot); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is canceled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks. A fire
// that lands while the previous callback still runs is rescheduled.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Debug("files changed", "count", len(changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("watch callback failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) && w.maybeAddDir(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			rel, err := filepath.Rel(w.absRoot, evt.Name)
			if err != nil || w.inSkippedDir(rel) {
				continue
			}
			if w.cfg.Match != nil && !w.cfg.Match(rel) {
				continue
			}

			mu.Lock()
			pending[filepath.Join(w.root, rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// isFatal reports resource exhaustion, after which the watcher cannot
// recover: the inotify watch limit or file descriptor limits.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}

func (w *Watcher) skipDir(name string) bool {
	return w.skip[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

func (w *Watcher) inSkippedDir(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts[:len(parts)-1] {
		if w.skipDir(p) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirectories(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.absRoot && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

// maybeAddDir starts watching a directory created after startup, along with
// anything already inside it. It reports whether path was a directory.
func (w *Watcher) maybeAddDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	rel, err := filepath.Rel(w.absRoot, path)
	if err != nil || w.inSkippedDir(rel) || w.skipDir(filepath.Base(path)) {
		return true
	}
	if err := w.addDirectories(path); err != nil {
		w.logger.Warn("watching new directory", "path", path, "err", err)
	}
	return true
}
