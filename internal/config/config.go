// Package config loads polyinject configuration from a YAML file and
// POLYINJECT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jward/polyinject"
)

const (
	// FileName is the configuration file searched for in the working
	// directory.
	FileName = "polyinject.yaml"
	// EnvPrefix prefixes every environment override, as in POLYINJECT_METHOD.
	EnvPrefix = "POLYINJECT"

	// DefaultMethod is used when no method is configured.
	DefaultMethod = "usage-global"
)

// ProviderEntry is one decoded entry of the providers list.
type ProviderEntry struct {
	Name    string
	Options map[string]any
}

// Config is the decoded configuration file merged with environment
// overrides.
type Config struct {
	Method                   string
	Providers                []ProviderEntry
	Targets                  any
	IgnoreBrowserslistConfig bool
	ConfigPath               string
	SourceType               string
	Debug                    bool
	// CompatData is a path to a compat table handed to every provider that
	// does not set its own compatData option.
	CompatData string
	// DB is the usage index path. Empty disables the index.
	DB string

	// File is the configuration file that was read, or "" when only
	// defaults and environment were used.
	File string
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFilePath is an explicit file. It must exist.
	ConfigFilePath string
	// Dir is searched for FileName when ConfigFilePath is empty.
	Dir string
}

// pathOptions are provider options holding file paths, resolved against the
// configuration file's directory.
var pathOptions = []string{"script", "compatData"}

// envKeys can be overridden from the environment.
var envKeys = []string{"method", "sourceType", "ignoreBrowserslistConfig", "configPath", "debug", "compatData", "db", "targets"}

// Load reads configuration. A missing file in Dir is not an error; an
// explicit ConfigFilePath that does not exist is.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("method", DefaultMethod)
	v.SetDefault("sourceType", "module")
	v.SetDefault("ignoreBrowserslistConfig", false)
	v.SetDefault("configPath", "")
	v.SetDefault("debug", false)
	v.SetDefault("compatData", "")
	v.SetDefault("db", "")
	for _, key := range envKeys {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	path, err := findFile(opts)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &polyinject.ConfigError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
		}
		// Viper lowercases nested map keys in place, so it only sees the
		// scalar settings. Providers and targets are read from raw below.
		scalars := make(map[string]any, len(raw))
		for k, val := range raw {
			if k != "providers" && k != "targets" {
				scalars[k] = val
			}
		}
		if err := v.MergeConfigMap(scalars); err != nil {
			return nil, fmt.Errorf("config: merging %s: %w", path, err)
		}
	}

	cfg := &Config{
		Method:                   v.GetString("method"),
		IgnoreBrowserslistConfig: v.GetBool("ignoreBrowserslistConfig"),
		ConfigPath:               v.GetString("configPath"),
		SourceType:               v.GetString("sourceType"),
		Debug:                    v.GetBool("debug"),
		CompatData:               v.GetString("compatData"),
		DB:                       v.GetString("db"),
		File:                     path,
	}

	if _, fromEnv := os.LookupEnv(envName("targets")); fromEnv {
		cfg.Targets = v.GetString("targets")
	} else if t, ok := raw["targets"]; ok {
		cfg.Targets = t
	}
	if p, ok := raw["providers"]; ok && p != nil {
		if cfg.Providers, err = decodeProviders(p); err != nil {
			return nil, err
		}
	}

	if path != "" {
		base := filepath.Dir(path)
		for _, entry := range cfg.Providers {
			for _, key := range pathOptions {
				if s, ok := entry.Options[key].(string); ok && s != "" && !filepath.IsAbs(s) {
					entry.Options[key] = filepath.Join(base, s)
				}
			}
		}
		_, compatFromEnv := os.LookupEnv(envName("compatData"))
		if cfg.CompatData != "" && !filepath.IsAbs(cfg.CompatData) && !compatFromEnv {
			cfg.CompatData = filepath.Join(base, cfg.CompatData)
		}
	}
	return cfg, nil
}

// envName maps a camel-cased key to its variable: sourceType becomes
// POLYINJECT_SOURCE_TYPE.
func envName(key string) string {
	out := []byte(EnvPrefix + "_")
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			out = append(out, '_', c)
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func findFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if _, err := os.Stat(opts.ConfigFilePath); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return opts.ConfigFilePath, nil
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	for _, name := range []string{FileName, "polyinject.yml"} {
		path := filepath.Join(dir, name)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config: %w", err)
		}
	}
	return "", nil
}

// decodeProviders accepts each entry as "name", ["name", {options}] or
// {name: ..., options: {...}}.
func decodeProviders(v any) ([]ProviderEntry, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, &polyinject.ConfigError{Field: "providers", Msg: fmt.Sprintf("expected a list, got %T", v)}
	}
	out := make([]ProviderEntry, 0, len(list))
	for i, item := range list {
		entry, err := decodeProvider(item)
		if err != nil {
			return nil, &polyinject.ConfigError{Field: "providers", Msg: fmt.Sprintf("entry %d: %v", i, err)}
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeProvider(item any) (ProviderEntry, error) {
	switch x := item.(type) {
	case string:
		if x == "" {
			return ProviderEntry{}, errors.New("empty provider name")
		}
		return ProviderEntry{Name: x, Options: map[string]any{}}, nil
	case []any:
		if len(x) == 0 || len(x) > 2 {
			return ProviderEntry{}, fmt.Errorf("expected [name] or [name, options], got %d elements", len(x))
		}
		name, ok := x[0].(string)
		if !ok || name == "" {
			return ProviderEntry{}, errors.New("provider name must be a string")
		}
		entry := ProviderEntry{Name: name, Options: map[string]any{}}
		if len(x) == 2 && x[1] != nil {
			opts, ok := x[1].(map[string]any)
			if !ok {
				return ProviderEntry{}, fmt.Errorf("options of %s must be a map", name)
			}
			entry.Options = opts
		}
		return entry, nil
	case map[string]any:
		name, ok := x["name"].(string)
		if !ok || name == "" {
			return ProviderEntry{}, errors.New("provider map needs a name")
		}
		for k := range x {
			if k != "name" && k != "options" {
				return ProviderEntry{}, fmt.Errorf("unknown key %q", k)
			}
		}
		entry := ProviderEntry{Name: name, Options: map[string]any{}}
		if o, present := x["options"]; present && o != nil {
			opts, ok := o.(map[string]any)
			if !ok {
				return ProviderEntry{}, fmt.Errorf("options of %s must be a map", name)
			}
			entry.Options = opts
		}
		return entry, nil
	}
	return ProviderEntry{}, fmt.Errorf("unsupported entry of type %T", item)
}

// PluginConfig resolves provider names to factories and returns the library
// configuration.
func (c *Config) PluginConfig() (polyinject.Config, error) {
	descs := make([]polyinject.Descriptor, 0, len(c.Providers))
	for _, entry := range c.Providers {
		factory, ok := polyinject.ProviderFactory(entry.Name)
		if !ok {
			return polyinject.Config{}, &polyinject.ConfigError{Field: "providers", Provider: entry.Name, Msg: "unknown provider"}
		}
		opts := polyinject.Options{}
		for k, val := range entry.Options {
			opts[k] = val
		}
		if _, set := opts["compatData"]; !set && c.CompatData != "" {
			opts["compatData"] = c.CompatData
		}
		descs = append(descs, polyinject.Descriptor{Name: entry.Name, Factory: factory, Options: opts})
	}
	return polyinject.Config{
		Method:                   c.Method,
		Providers:                descs,
		Targets:                  c.Targets,
		IgnoreBrowserslistConfig: c.IgnoreBrowserslistConfig,
		ConfigPath:               c.ConfigPath,
		SourceType:               c.SourceType,
		Debug:                    c.Debug,
	}, nil
}
