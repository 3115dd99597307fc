package targets

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Support maps an environment to the first version that implements a
// feature natively. An environment absent from the map never implements it.
type Support map[string]string

// CompatData maps polyfill names to their native support.
type CompatData map[string]Support

// Names returns the polyfill names in sorted order.
func (c CompatData) Names() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadCompatData reads a YAML compatibility table of the form
//
//	es.promise:
//	  chrome: "33"
//	  firefox: "29"
func LoadCompatData(path string) (CompatData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("targets: read compat data %s: %w", path, err)
	}
	return ParseCompatData(data)
}

// ParseCompatData decodes a YAML compatibility table.
func ParseCompatData(data []byte) (CompatData, error) {
	var out CompatData
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("targets: parse compat data: %w", err)
	}
	if out == nil {
		out = CompatData{}
	}
	return out, nil
}

// Set is a set of polyfill names.
type Set map[string]bool

// NewSet returns a set holding names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Has reports whether name is in the set. A nil set is empty.
func (s Set) Has(name string) bool {
	return s[name]
}

// Sorted returns the members in sorted order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// IsRequired reports whether any target environment lacks native support:
// the environment is missing from support, or the targeted version is older
// than the first implementing one. With no targets everything is required.
func IsRequired(t Targets, support Support) bool {
	if len(t) == 0 {
		return true
	}
	for env, version := range t {
		min, ok := support[env]
		if !ok || !semverValid(min) {
			return true
		}
		if compareVersions(version, min) < 0 {
			return true
		}
	}
	return false
}

func semverValid(v string) bool {
	return semver.IsValid("v" + v)
}

// FilterItems returns the polyfills of data that t requires, honoring
// explicit includes and excludes, then adds defaultInclude (unless
// excluded) and drops defaultExclude (unless included).
func FilterItems(data CompatData, include, exclude Set, t Targets, defaultInclude, defaultExclude Set) Set {
	out := Set{}
	for name, support := range data {
		switch {
		case exclude.Has(name):
		case include.Has(name):
			out[name] = true
		case IsRequired(t, support):
			out[name] = true
		}
	}
	for name := range defaultInclude {
		if !exclude.Has(name) {
			out[name] = true
		}
	}
	for name := range defaultExclude {
		if !include.Has(name) {
			delete(out, name)
		}
	}
	return out
}

// CompatFilter is the default target filter backed by IsRequired and
// FilterItems.
type CompatFilter struct{}

// IsRequired implements the filter contract.
func (CompatFilter) IsRequired(t Targets, support Support) bool {
	return IsRequired(t, support)
}

// FilterItems implements the filter contract.
func (CompatFilter) FilterItems(data CompatData, include, exclude Set, t Targets, defaultInclude, defaultExclude Set) Set {
	return FilterItems(data, include, exclude, t, defaultInclude, defaultExclude)
}
