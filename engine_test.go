package polyinject

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/polyinject/internal/store"
)

// globalInjector injects a side-effect module for every known global it
// sees. It keeps no state, so it is safe for the parallel pipeline.
type globalInjector struct {
	known map[string]bool
}

func (g globalInjector) UsageGlobal(r Report, u *Utils, _ *Anchor) (Outcome, error) {
	if r.Kind != KindGlobal || !g.known[r.Name] {
		return NotApplicable, nil
	}
	u.InjectGlobalImport("core-js/modules/es." + strings.ToLower(r.Name))
	return Handled, nil
}

func newInjectorPlugin(t *testing.T, names ...string) *Plugin {
	t.Helper()
	known := make(map[string]bool)
	for _, n := range names {
		known[n] = true
	}
	return newTestPlugin(t, MethodUsageGlobal, provide("inj", globalInjector{known: known}))
}

func newTestEngine(t *testing.T, p *Plugin, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(p, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const promiseSrc = "Promise.resolve(new Map());\n"

const promiseOut = "import \"core-js/modules/es.promise\";\nimport \"core-js/modules/es.map\";\nPromise.resolve(new Map());\n"

func TestNewEngine_OutputModesConflict(t *testing.T) {
	t.Parallel()
	_, err := NewEngine(newInjectorPlugin(t), WithOutDir(t.TempDir()), WithWriteInPlace())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "output", cfgErr.Field)
}

func TestNewEngine_InvalidDBPath(t *testing.T) {
	t.Parallel()
	_, err := NewEngine(newInjectorPlugin(t), WithStore("/nonexistent/dir/db.sqlite"))
	require.Error(t, err)
}

func TestTransformFiles_ReportOnly(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{true, false} {
		dir := t.TempDir()
		a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)
		b := writeFile(t, filepath.Join(dir, "b.js"), "foo();\n")
		other := writeFile(t, filepath.Join(dir, "README.md"), "# readme\n")

		e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"), WithParallel(parallel))
		run, err := e.TransformFiles(context.Background(), []string{b, other, a})
		require.NoError(t, err)

		require.Len(t, run.Results, 2, "parallel=%v", parallel)
		assert.Equal(t, a, run.Results[0].Path)
		assert.Equal(t, promiseOut, string(run.Results[0].Code))
		assert.False(t, run.Results[1].Modified)
		assert.Len(t, run.Modified(), 1)

		src, err := os.ReadFile(a)
		require.NoError(t, err)
		assert.Equal(t, promiseSrc, string(src), "report-only runs leave sources alone")
	}
}

func TestTransformFiles_OutDir(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	out := t.TempDir()
	a := writeFile(t, filepath.Join(src, "lib", "a.js"), promiseSrc)
	b := writeFile(t, filepath.Join(src, "b.js"), "foo();\n")

	e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"), WithOutDir(out), WithBaseDir(src))
	_, err := e.TransformFiles(context.Background(), []string{a, b})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(out, "lib", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, promiseOut, string(got))

	got, err = os.ReadFile(filepath.Join(out, "b.js"))
	require.NoError(t, err)
	assert.Equal(t, "foo();\n", string(got), "unmodified files are copied too")
}

func TestTransformFiles_StoreRecordsUsages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)
	b := writeFile(t, filepath.Join(dir, "b.js"), "new Map();\n")

	e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"),
		WithStore(filepath.Join(t.TempDir(), "index.db")))
	_, err := e.TransformFiles(context.Background(), []string{a, b})
	require.NoError(t, err)

	f, err := e.Store().FileByPath(a)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "usage-global", f.Method)
	assert.Equal(t, store.ContentHash([]byte(promiseSrc)), f.Hash)

	usages, err := e.Store().UsagesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, usages, 3)
	assert.Equal(t, "property", usages[0].Kind)
	require.NotNil(t, usages[0].Object)
	assert.Equal(t, "Promise", *usages[0].Object)
	assert.Equal(t, "resolve", usages[0].Key)
	assert.Empty(t, usages[0].HandledBy)
	assert.Equal(t, "Promise", usages[1].Name)
	assert.Equal(t, "inj", usages[1].HandledBy)

	injs, err := e.Store().InjectionsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, injs, 2)
	assert.Equal(t, "core-js/modules/es.promise", injs[0].Source)
	assert.Equal(t, "inline", injs[0].Position)

	counts, err := e.Store().ModuleCounts()
	require.NoError(t, err)
	assert.Equal(t, []store.ModuleCount{
		{Source: "core-js/modules/es.map", Files: 2},
		{Source: "core-js/modules/es.promise", Files: 1},
	}, counts)
}

func TestTransformFiles_SkipsUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)
	db := filepath.Join(t.TempDir(), "index.db")

	e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"), WithStore(db))
	run, err := e.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)

	run, err = e.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)
	assert.Empty(t, run.Results)
	assert.Equal(t, []string{a}, run.Unchanged)

	writeFile(t, a, "new Map();\n")
	run, err = e.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)

	f, err := e.Store().FileByPath(a)
	require.NoError(t, err)
	usages, err := e.Store().UsagesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, usages, 1, "old rows are replaced")
	assert.Equal(t, "Map", usages[0].Name)
}

func TestTransformFiles_WriteInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)
	db := filepath.Join(t.TempDir(), "index.db")

	e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"), WithStore(db), WithWriteInPlace())
	_, err := e.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, promiseOut, string(got))

	// The rewritten file is recorded under its new hash and not processed
	// again.
	run, err := e.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)
	assert.Empty(t, run.Results)
	assert.Equal(t, []string{a}, run.Unchanged)
}

func TestTransformFiles_ConfigChangeForcesReprocess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)
	db := filepath.Join(t.TempDir(), "index.db")

	first, err := NewEngine(newInjectorPlugin(t, "Promise"), WithStore(db))
	require.NoError(t, err)
	assert.True(t, first.ConfigChanged())
	_, err = first.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)
	assert.False(t, first.ConfigChanged())
	require.NoError(t, first.Close())

	second := newTestEngine(t, newTestPlugin(t, MethodUsagePure,
		provide("pure", &recorder{})), WithStore(db))
	assert.True(t, second.ConfigChanged())
	run, err := second.TransformFiles(context.Background(), []string{a})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
}

func TestTransformFiles_OptionChangeForcesReprocess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)
	db := filepath.Join(t.TempDir(), "index.db")

	pluginWith := func(sourceType string, opts Options) *Plugin {
		d := provide("inj", globalInjector{known: map[string]bool{"Promise": true}})
		d.Options = opts
		p, err := New(Config{Method: string(MethodUsageGlobal), SourceType: sourceType, Providers: []Descriptor{d}},
			WithTargets(Targets{}))
		require.NoError(t, err)
		return p
	}
	runOnce := func(p *Plugin) (*Run, bool) {
		e, err := NewEngine(p, WithStore(db))
		require.NoError(t, err)
		defer e.Close()
		changed := e.ConfigChanged()
		run, err := e.TransformFiles(context.Background(), []string{a})
		require.NoError(t, err)
		return run, changed
	}

	_, changed := runOnce(pluginWith("", Options{"exclude": []any{"es.map"}, "debugName": "x"}))
	assert.True(t, changed)

	run, changed := runOnce(pluginWith("", Options{"debugName": "x", "exclude": []any{"es.map"}}))
	assert.False(t, changed, "same options in a different order")
	assert.Empty(t, run.Results)

	run, changed = runOnce(pluginWith("", Options{"exclude": []any{"es.promise"}, "debugName": "x"}))
	assert.True(t, changed, "exclude changed")
	require.Len(t, run.Results, 1)

	run, changed = runOnce(pluginWith("script", Options{"exclude": []any{"es.promise"}, "debugName": "x"}))
	assert.True(t, changed, "source type changed")
	require.Len(t, run.Results, 1)
}

func TestTransformFiles_ErrorsCollected(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{true, false} {
		dir := t.TempDir()
		good := writeFile(t, filepath.Join(dir, "good.js"), promiseSrc)
		bad := writeFile(t, filepath.Join(dir, "bad.js"), "const = ;\n")

		e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"),
			WithParallel(parallel), WithStore(filepath.Join(t.TempDir(), "index.db")))
		run, err := e.TransformFiles(context.Background(), []string{good, bad})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 error(s)")
		assert.Contains(t, err.Error(), "bad.js")
		require.Len(t, run.Results, 1)

		f, err := e.Store().FileByPath(bad)
		require.NoError(t, err)
		assert.Nil(t, f, "failed files are not recorded so they are retried")
	}
}

func TestTransformFiles_Canceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.js"), promiseSrc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(t, newInjectorPlugin(t, "Promise"))
	_, err := e.TransformFiles(ctx, []string{a})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformDirectory_WalkSkipsDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.js"), promiseSrc)
	writeFile(t, filepath.Join(root, "src", "b.ts"), "foo();\n")
	writeFile(t, filepath.Join(root, "node_modules", "dep", "index.js"), promiseSrc)
	writeFile(t, filepath.Join(root, ".cache", "c.js"), promiseSrc)
	writeFile(t, filepath.Join(root, "style.css"), "a {}\n")

	paths, err := walkListFiles(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "src", "a.js"),
		filepath.Join(root, "src", "b.ts"),
	}, paths)

	out := t.TempDir()
	e := newTestEngine(t, newInjectorPlugin(t, "Promise", "Map"), WithOutDir(out))
	run, err := e.TransformDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, run.Results, 2)

	got, err := os.ReadFile(filepath.Join(out, "src", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, promiseOut, string(got))
}

func TestInSkippedDir(t *testing.T) {
	t.Parallel()
	assert.True(t, inSkippedDir("node_modules/x/index.js"))
	assert.True(t, inSkippedDir("packages/a/vendor/b.js"))
	assert.False(t, inSkippedDir("src/vendor.js"))
	assert.False(t, inSkippedDir("index.js"))
}
