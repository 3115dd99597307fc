package polyinject

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jward/polyinject/internal/jsast"
	"github.com/jward/polyinject/internal/store"
)

// Engine runs a Plugin over the files of a project: file discovery, change
// detection, parallel transformation and recording into the usage index.
type Engine struct {
	plugin *Plugin
	store  *store.Store
	logger *log.Logger

	dbPath  string
	outDir  string
	inPlace bool
	baseDir string

	// useParallel enables the parallel transform pipeline.
	useParallel bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithParallel controls parallel transformation. When true (default),
// TransformFiles uses a worker pool for parsing and provider dispatch, with a
// single writer committing batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) EngineOption {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithStore records every transformed file into a SQLite usage index at
// dbPath. Files whose content hash matches the index are skipped.
func WithStore(dbPath string) EngineOption {
	return func(e *Engine) {
		e.dbPath = dbPath
	}
}

// WithOutDir writes every transformed file below dir, mirroring its path
// relative to the base directory.
func WithOutDir(dir string) EngineOption {
	return func(e *Engine) {
		e.outDir = dir
	}
}

// WithWriteInPlace overwrites modified source files with their output.
func WithWriteInPlace() EngineOption {
	return func(e *Engine) {
		e.inPlace = true
	}
}

// WithBaseDir sets the directory output paths are made relative to. The
// default is the working directory; TransformDirectory uses its root.
func WithBaseDir(dir string) EngineOption {
	return func(e *Engine) {
		e.baseDir = dir
	}
}

// WithEngineLogger sets the logger used for per-file progress.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine around p.
func NewEngine(p *Plugin, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		plugin:      p,
		baseDir:     ".",
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if e.outDir != "" && e.inPlace {
		return nil, configErrorf("output", "", "out dir and in-place writing are mutually exclusive")
	}

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("polyinject: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("polyinject: migrate: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the usage index, or nil when none is configured.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Plugin returns the plugin the Engine runs.
func (e *Engine) Plugin() *Plugin {
	return e.plugin
}

// Run is the outcome of one TransformFiles call.
type Run struct {
	// Results holds one entry per transformed file, ordered by path.
	Results []*Result
	// Unchanged lists files skipped because the index already holds them.
	Unchanged []string
}

// Modified returns the results whose output differs from the source.
func (r *Run) Modified() []*Result {
	var out []*Result
	for _, res := range r.Results {
		if res.Modified {
			out = append(out, res)
		}
	}
	return out
}

const fingerprintKey = "config_fingerprint"

// fingerprint identifies the plugin configuration recorded results were
// produced under. A change invalidates every stored content hash.
func (e *Engine) fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n", e.plugin.Method(), e.plugin.SourceType(), e.plugin.Targets().String())
	for _, rp := range e.plugin.providers {
		// %v prints map keys in sorted order.
		fmt.Fprintf(h, "%s %v\n", rp.name, map[string]any(rp.options))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ConfigChanged reports whether the index was built with a different method,
// source type, target set or provider configuration. Returns true when no fingerprint is stored.
func (e *Engine) ConfigChanged() bool {
	if e.store == nil {
		return true
	}
	stored, err := e.store.GetMetadata(fingerprintKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != e.fingerprint()
}

// TransformFiles transforms the given files. Unsupported extensions are
// ignored. Errors on individual files are collected and processing
// continues; the first one is returned wrapped with the error count.
func (e *Engine) TransformFiles(ctx context.Context, paths []string) (*Run, error) {
	force := e.ConfigChanged()

	var run *Run
	var err error
	if e.useParallel {
		run, err = e.transformParallel(ctx, paths, force)
	} else {
		run, err = e.transformSerial(ctx, paths, force)
	}
	if run != nil {
		sort.Slice(run.Results, func(i, j int) bool { return run.Results[i].Path < run.Results[j].Path })
		sort.Strings(run.Unchanged)
	}
	if e.store != nil && force {
		if serr := e.store.SetMetadata(fingerprintKey, e.fingerprint()); serr != nil && err == nil {
			err = serr
		}
	}
	return run, err
}

func (e *Engine) transformSerial(ctx context.Context, paths []string, force bool) (*Run, error) {
	run := &Run{}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		item, skip, err := e.prepareFile(path, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			if item.unchanged {
				run.Unchanged = append(run.Unchanged, path)
			}
			continue
		}
		res, err := e.transformFile(ctx, item)
		if err != nil {
			e.discard(item)
			errs = append(errs, fmt.Errorf("transform %s: %w", path, err))
			continue
		}
		if err := e.commitFile(item, res); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", path, err))
			continue
		}
		run.Results = append(run.Results, res)
	}
	if len(errs) > 0 {
		return run, fmt.Errorf("transform had %d error(s): %w", len(errs), errs[0])
	}
	return run, nil
}

// skipDirs are directory names that are always skipped during filesystem walk.
var skipDirs = map[string]bool{
	"node_modules":     true,
	"vendor":           true,
	"bower_components": true,
}

// TransformDirectory discovers supported files under root and transforms
// them. It tries git ls-files first (respects .gitignore), falling back to a
// filesystem walk. Output paths are relative to root.
func (e *Engine) TransformDirectory(ctx context.Context, root string) (*Run, error) {
	paths, err := ListFiles(root)
	if err != nil {
		return nil, err
	}
	prev := e.baseDir
	e.baseDir = root
	defer func() { e.baseDir = prev }()
	return e.TransformFiles(ctx, paths)
}

// ListFiles returns the supported source files under root.
func ListFiles(root string) ([]string, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
	}
	return paths, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files. Returns an error if root is not inside a git repo.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		if inSkippedDir(line) {
			continue
		}
		if _, ok := jsast.LanguageForFile(line); !ok {
			continue
		}
		abs := filepath.Join(root, line)
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			continue // deleted from the worktree or a submodule
		}
		paths = append(paths, abs)
	}
	return paths, nil
}

func inSkippedDir(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts[:len(parts)-1] {
		if skipDirs[p] {
			return true
		}
	}
	return false
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is unavailable. Skips hidden directories and skipDirs.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := jsast.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// outputPath returns where the output of path is written, or "" when the
// Engine only reports.
func (e *Engine) outputPath(path string) string {
	switch {
	case e.inPlace:
		return path
	case e.outDir == "":
		return ""
	}
	rel, err := filepath.Rel(e.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return filepath.Join(e.outDir, rel)
}
