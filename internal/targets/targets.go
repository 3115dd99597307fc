// Package targets resolves the set of runtime environments a build supports
// and decides, against per-feature compatibility data, which polyfills those
// environments still need.
package targets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Targets maps an environment name ("chrome", "node", "ios") to the lowest
// version that must be supported. Versions are dotted numbers without a "v"
// prefix. An empty Targets means no constraint: every polyfill is required.
type Targets map[string]string

// String renders the targets as a sorted, comma-separated query list.
func (t Targets) String() string {
	envs := make([]string, 0, len(t))
	for env := range t {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	parts := make([]string, len(envs))
	for i, env := range envs {
		parts[i] = env + " " + t[env]
	}
	return strings.Join(parts, ", ")
}

// add records version for env, keeping the lowest version seen.
func (t Targets) add(env, version string) {
	if cur, ok := t[env]; ok && compareVersions(cur, version) <= 0 {
		return
	}
	t[env] = version
}

// Options selects where targets come from.
type Options struct {
	// Targets is an explicit target list: a query string, a list of query
	// strings, or a map of environment to version.
	Targets any
	// IgnoreBrowserslistConfig disables the environment and file lookups
	// used when Targets is empty.
	IgnoreBrowserslistConfig bool
	// ConfigPath is a browserslist file, or a directory to start the
	// upward search for one from. Defaults to Dir.
	ConfigPath string
	// Dir is the working directory. Defaults to the process working dir.
	Dir string
	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve builds the target set. Explicit targets win; otherwise, unless
// disabled, the BROWSERSLIST environment variable, the BROWSERSLIST_CONFIG
// file, and finally the nearest .browserslistrc, browserslist file or
// package.json "browserslist" field are consulted. Queries this resolver
// cannot evaluate, such as "defaults" or "> 0.5%", are returned as skipped.
func Resolve(opts Options) (Targets, []string, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	out := Targets{}
	if opts.Targets != nil {
		queries, err := explicitQueries(opts.Targets)
		if err != nil {
			return nil, nil, err
		}
		if len(queries) > 0 {
			return out, out.apply(queries), nil
		}
	}
	if opts.IgnoreBrowserslistConfig {
		return out, nil, nil
	}

	env := browserslistEnv(getenv)
	if q := getenv("BROWSERSLIST"); q != "" {
		return out, out.apply(splitQueries(q)), nil
	}
	if p := getenv("BROWSERSLIST_CONFIG"); p != "" {
		queries, err := readConfigFile(p, env)
		if err != nil {
			return nil, nil, err
		}
		return out, out.apply(queries), nil
	}

	start := opts.ConfigPath
	if start == "" {
		start = opts.Dir
	}
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("targets: working directory: %w", err)
		}
		start = wd
	}
	if info, err := os.Stat(start); err == nil && !info.IsDir() {
		queries, err := readConfigFile(start, env)
		if err != nil {
			return nil, nil, err
		}
		return out, out.apply(queries), nil
	}

	queries, err := findConfig(start, env)
	if err != nil {
		return nil, nil, err
	}
	return out, out.apply(queries), nil
}

// explicitQueries converts the accepted shapes of an explicit target value
// into query strings.
func explicitQueries(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return splitQueries(t), nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, q := range t {
			s, ok := q.(string)
			if !ok {
				return nil, fmt.Errorf("targets: query %v is not a string", q)
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]string:
		out := make([]string, 0, len(t))
		for env, version := range t {
			out = append(out, env+" "+version)
		}
		sort.Strings(out)
		return out, nil
	case map[string]any:
		out := make([]string, 0, len(t))
		for env, version := range t {
			out = append(out, fmt.Sprintf("%s %v", env, version))
		}
		sort.Strings(out)
		return out, nil
	}
	return nil, fmt.Errorf("targets: unsupported targets value of type %T", v)
}

// apply evaluates queries into t and returns the ones it could not evaluate.
func (t Targets) apply(queries []string) []string {
	var skipped []string
	for _, q := range queries {
		env, version, ok := parseQuery(q)
		if !ok {
			skipped = append(skipped, strings.TrimSpace(q))
			continue
		}
		t.add(env, version)
	}
	return skipped
}

// browserNames maps browserslist agent names to compat data environments.
var browserNames = map[string]string{
	"and_chr":  "chrome",
	"and_ff":   "firefox",
	"android":  "android",
	"chrome":   "chrome",
	"deno":     "deno",
	"edge":     "edge",
	"electron": "electron",
	"firefox":  "firefox",
	"ie":       "ie",
	"ie_mob":   "ie",
	"ios":      "ios",
	"ios_saf":  "ios",
	"node":     "node",
	"op_mob":   "opera_mobile",
	"opera":    "opera",
	"safari":   "safari",
	"samsung":  "samsung",
	"rhino":    "rhino",
}

// parseQuery evaluates "name version", "name >= version" and
// "name version-version" queries.
func parseQuery(q string) (env, version string, ok bool) {
	fields := strings.Fields(strings.ToLower(q))
	switch {
	case len(fields) == 2:
		env, version = fields[0], fields[1]
	case len(fields) == 3 && fields[1] == ">=":
		env, version = fields[0], fields[2]
	default:
		return "", "", false
	}
	env, ok = browserNames[env]
	if !ok {
		return "", "", false
	}
	if lo, _, found := strings.Cut(version, "-"); found {
		version = lo
	}
	if !semver.IsValid("v" + version) {
		return "", "", false
	}
	return env, version, true
}

// compareVersions compares two dotted versions, treating missing minor and
// patch components as zero.
func compareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

func splitQueries(s string) []string {
	var out []string
	for _, q := range strings.Split(s, ",") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func browserslistEnv(getenv func(string) string) string {
	if env := getenv("BROWSERSLIST_ENV"); env != "" {
		return env
	}
	if env := getenv("NODE_ENV"); env != "" {
		return env
	}
	return "production"
}

// findConfig walks up from dir to the filesystem root looking for a
// browserslist configuration. No configuration yields no queries.
func findConfig(dir, env string) ([]string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	for {
		for _, name := range []string{".browserslistrc", "browserslist"} {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return readConfigFile(p, env)
			}
		}
		if queries, ok, err := readPackageJSON(filepath.Join(dir, "package.json"), env); err != nil {
			return nil, err
		} else if ok {
			return queries, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}
