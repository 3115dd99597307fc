package polyinject

import (
	"maps"

	"github.com/jward/polyinject/internal/targets"
)

// Filter decides which polyfills a target set still needs.
type Filter interface {
	IsRequired(t Targets, support Support) bool
	FilterItems(data CompatData, include, exclude Set, t Targets, defaultInclude, defaultExclude Set) Set
}

// Capabilities is the read-only view a provider is constructed with. It is
// shared by every file the plugin transforms; all accessors return copies.
type Capabilities struct {
	name    string
	index   int
	method  Method
	targets Targets
	include Set
	exclude Set
	filter  Filter
	plugin  *Plugin
}

// Name returns the provider's configured name.
func (c *Capabilities) Name() string { return c.name }

// Method returns the configured method.
func (c *Capabilities) Method() Method { return c.method }

// Targets returns the resolved target environments.
func (c *Capabilities) Targets() Targets { return maps.Clone(c.targets) }

// Include returns the provider's include list.
func (c *Capabilities) Include() Set { return maps.Clone(c.include) }

// Exclude returns the provider's exclude list.
func (c *Capabilities) Exclude() Set { return maps.Clone(c.exclude) }

// FilterPolyfills returns the polyfills of data the targets need, honoring
// the provider's include and exclude lists and the given defaults.
func (c *Capabilities) FilterPolyfills(data CompatData, defaultInclude, defaultExclude Set) Set {
	return c.filter.FilterItems(data, c.include, c.exclude, c.targets, defaultInclude, defaultExclude)
}

// IsPolyfillRequired reports whether some target lacks native support.
func (c *Capabilities) IsPolyfillRequired(support Support) bool {
	return c.filter.IsRequired(c.targets, support)
}

// ShouldInjectPolyfill applies the include and exclude lists to name before
// falling back to IsPolyfillRequired.
func (c *Capabilities) ShouldInjectPolyfill(name string, support Support) bool {
	if c.exclude.Has(name) {
		return false
	}
	if c.include.Has(name) {
		return true
	}
	return c.IsPolyfillRequired(support)
}

// GetUtils returns the injection facade for the file anchor belongs to.
// It panics if anchor's file is not being transformed by this plugin.
func (c *Capabilities) GetUtils(anchor *Anchor) *Utils {
	fs := c.plugin.fileFor(anchor.Unit())
	if fs == nil {
		panic("polyinject: GetUtils called for a file that is not being transformed")
	}
	return fs.utils(c.index)
}

// Debug records that the provider injected or would inject polyfill name in
// the file containing anchor.
func (c *Capabilities) Debug(anchor *Anchor, name string) {
	u := anchor.Unit()
	u.Debug(c.name, name)
	if c.plugin.debug {
		c.plugin.logger.Info("polyfill", "provider", c.name, "file", u.Path, "name", name)
	}
}

var _ Filter = targets.CompatFilter{}
