package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/polyinject"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DefaultMethod, cfg.Method)
	assert.Equal(t, "module", cfg.SourceType)
	assert.Empty(t, cfg.Providers)
	assert.Nil(t, cfg.Targets)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `method: usage-pure
sourceType: unambiguous
debug: true
db: index.db
ignoreBrowserslistConfig: true
targets:
  chrome: "80"
  Firefox: "70"
providers:
  - corejs3-lite
  - [script, {script: providers/mine.risor, extraOption: 1}]
  - name: script
    options:
      compatData: /abs/compat.yaml
`)
	cfg, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, FileName), cfg.File)
	assert.Equal(t, "usage-pure", cfg.Method)
	assert.Equal(t, "unambiguous", cfg.SourceType)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.IgnoreBrowserslistConfig)
	assert.Equal(t, "index.db", cfg.DB)
	assert.Equal(t, map[string]any{"chrome": "80", "Firefox": "70"}, cfg.Targets)

	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, ProviderEntry{Name: "corejs3-lite", Options: map[string]any{}}, cfg.Providers[0])
	assert.Equal(t, "script", cfg.Providers[1].Name)
	assert.Equal(t, filepath.Join(dir, "providers/mine.risor"), cfg.Providers[1].Options["script"])
	assert.Equal(t, 1, cfg.Providers[1].Options["extraOption"])
	assert.Equal(t, "/abs/compat.yaml", cfg.Providers[2].Options["compatData"])
}

func TestLoad_ProviderOptionsReachPlugin(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `method: usage-global
compatData: shared.yaml
targets:
  Chrome: "80"
providers:
  - name: script
    options:
      script: mine.risor
      compatData: own.yaml
      includeAll: true
`)
	cfg, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shared.yaml"), cfg.CompatData)
	assert.Equal(t, map[string]any{"Chrome": "80"}, cfg.Targets)

	pc, err := cfg.PluginConfig()
	require.NoError(t, err)
	require.Len(t, pc.Providers, 1)
	opts := pc.Providers[0].Options
	assert.Equal(t, filepath.Join(dir, "own.yaml"), opts["compatData"])
	assert.Equal(t, true, opts["includeAll"])
	assert.NotContains(t, opts, "compatdata")
	assert.NotContains(t, opts, "includeall")
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: [\"chrome 80\"]\n"), 0o644))

	cfg, err := Load(LoadOptions{ConfigFilePath: path})
	require.NoError(t, err)
	assert.Equal(t, []any{"chrome 80"}, cfg.Targets)

	_, err = Load(LoadOptions{ConfigFilePath: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, "method: usage-pure\ncompatData: compat.yaml\ntargets: {chrome: \"50\"}\n")
	t.Setenv("POLYINJECT_METHOD", "entry-global")
	t.Setenv("POLYINJECT_SOURCE_TYPE", "script")
	t.Setenv("POLYINJECT_DEBUG", "true")
	t.Setenv("POLYINJECT_TARGETS", "chrome 90")

	cfg, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "entry-global", cfg.Method)
	assert.Equal(t, "script", cfg.SourceType)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "chrome 90", cfg.Targets)
	assert.Equal(t, filepath.Join(dir, "compat.yaml"), cfg.CompatData)
}

func TestLoad_InvalidProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"not a list", "providers: corejs3-lite\n"},
		{"map entry", "providers:\n  - {options: {}}\n"},
		{"number entry", "providers:\n  - 3\n"},
		{"long tuple", "providers:\n  - [a, {}, extra]\n"},
		{"tuple options", "providers:\n  - [a, notamap]\n"},
		{"unknown key", "providers:\n  - {name: a, opts: {}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(LoadOptions{Dir: writeConfig(t, tt.content)})
			var cerr *polyinject.ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, "providers", cerr.Field)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{Dir: writeConfig(t, "method: [unclosed\n")})
	var cerr *polyinject.ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestPluginConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Method:     "usage-global",
		SourceType: "module",
		Targets:    "chrome 80",
		CompatData: "/shared/compat.yaml",
		Providers: []ProviderEntry{
			{Name: "corejs3-lite", Options: map[string]any{"exclude": []any{"es.map"}}},
			{Name: "script", Options: map[string]any{"script": "/p.risor", "compatData": "/own.yaml"}},
		},
	}
	pc, err := cfg.PluginConfig()
	require.NoError(t, err)

	assert.Equal(t, "usage-global", pc.Method)
	assert.Equal(t, "chrome 80", pc.Targets)
	require.Len(t, pc.Providers, 2)
	assert.Equal(t, "corejs3-lite", pc.Providers[0].Name)
	assert.NotNil(t, pc.Providers[0].Factory)
	assert.Equal(t, "/shared/compat.yaml", pc.Providers[0].Options["compatData"])
	assert.Equal(t, []any{"es.map"}, pc.Providers[0].Options["exclude"])
	assert.Equal(t, "/own.yaml", pc.Providers[1].Options["compatData"])
}

func TestPluginConfig_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := &Config{Providers: []ProviderEntry{{Name: "nope", Options: map[string]any{}}}}
	_, err := cfg.PluginConfig()
	var cerr *polyinject.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "nope", cerr.Provider)
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "POLYINJECT_METHOD", envName("method"))
	assert.Equal(t, "POLYINJECT_SOURCE_TYPE", envName("sourceType"))
	assert.Equal(t, "POLYINJECT_IGNORE_BROWSERSLIST_CONFIG", envName("ignoreBrowserslistConfig"))
}
