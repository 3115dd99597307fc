// Package importcache deduplicates module injections within a compilation
// unit. The first request for a (unit, module, export) triple builds and
// inserts a statement; every later request returns the same local binding.
package importcache

import (
	"github.com/jward/polyinject/internal/jsast"
)

// Default is the export name that selects a module's default export.
const Default = "default"

// Built is what a BuildFunc returns: the statement to insert and the local
// binding it introduces ("" for side-effect-only imports).
type Built struct {
	Statement jsast.Statement
	Binding   string
}

// BuildFunc synthesizes the statement for a cache miss. script reports
// whether the unit uses require rather than import declarations. exportName
// is "" for a side-effect-only import and Default for a default import.
type BuildFunc func(script bool, url, exportName string) Built

// Injection records one statement the cache inserted.
type Injection struct {
	URL        string
	ExportName string
	Binding    string
	Group      int
	Position   jsast.Position
}

type key struct {
	unit       *jsast.Unit
	url        string
	exportName string
}

// Cache is not safe for concurrent use. It belongs to the goroutine that
// owns the units it is acquired against.
type Cache struct {
	bindings   map[key]string
	injections []Injection
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{bindings: make(map[key]string)}
}

// Acquire returns the local binding for exportName of url in unit, building
// and inserting the statement on first request. group orders the statement
// among other injections; it is the index of the requesting provider.
func (c *Cache) Acquire(unit *jsast.Unit, group int, url, exportName string, build BuildFunc) string {
	k := key{unit: unit, url: url, exportName: exportName}
	if binding, ok := c.bindings[k]; ok {
		return binding
	}

	b := build(unit.IsScript(), url, exportName)
	unit.Insert(b.Statement, group)
	c.bindings[k] = b.Binding
	c.injections = append(c.injections, Injection{
		URL:        url,
		ExportName: exportName,
		Binding:    b.Binding,
		Group:      group,
		Position:   b.Statement.Position,
	})
	return b.Binding
}

// Injections returns every statement inserted so far, in request order.
func (c *Cache) Injections() []Injection {
	return c.injections
}

// Len returns the number of distinct injections.
func (c *Cache) Len() int {
	return len(c.bindings)
}
