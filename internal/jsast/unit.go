// Package jsast hosts one JavaScript or TypeScript compilation unit on top of
// a tree-sitter syntax tree: parsing, lexical scopes, a path-aware walker,
// and the edit buffer that injected statements and rewritten usage sites are
// collected into.
//
// Tree-sitter trees are immutable. A Unit therefore never mutates its tree;
// Replace and Remove record byte-range edits, Insert records synthesized
// statements, and Output renders the final source.
package jsast

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// SourceType selects the module system a unit is treated as.
type SourceType string

const (
	// SourceModule treats every file as an ES module.
	SourceModule SourceType = "module"
	// SourceScript treats every file as a CommonJS script.
	SourceScript SourceType = "script"
	// SourceUnambiguous treats a file as a module only if it contains
	// import or export statements.
	SourceUnambiguous SourceType = "unambiguous"
)

// ParseSourceType validates a configured source type. The empty string
// selects SourceModule.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case "", SourceModule:
		return SourceModule, nil
	case SourceScript, SourceUnambiguous:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("jsast: unknown source type %q: must be module, script or unambiguous", s)
}

// nodeKey identifies a node within one tree independently of the Go wrapper
// pointer go-tree-sitter hands out.
type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

// DebugEntry records one polyfill a provider reported for a unit.
type DebugEntry struct {
	Provider string
	Name     string
}

// Unit is one parsed compilation unit plus all per-file mutable state:
// scopes, the set of taken identifier names, and pending edits.
type Unit struct {
	Path     string
	Language string

	src    []byte
	tree   *sitter.Tree
	root   *sitter.Node
	script bool

	scopes  map[nodeKey]*Scope
	program *Scope
	names   map[string]bool

	edits    []edit
	removed  map[nodeKey]bool
	inserted []inserted
	seq      int

	debug     []DebugEntry
	debugSeen map[DebugEntry]bool
}

// Parse parses src as the language implied by path's extension. The
// configured source type applies unless the extension pins one (.mjs, .cjs,
// .mts, .cts). A tree containing syntax errors is rejected.
func Parse(ctx context.Context, path string, src []byte, sourceType SourceType) (*Unit, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("jsast: unsupported file %s", path)
	}
	grammar, _ := ParserForLanguage(lang)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("jsast: parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		tree.Close()
		if bad == nil {
			return nil, fmt.Errorf("jsast: %s: syntax error", path)
		}
		pt := bad.StartPoint()
		return nil, fmt.Errorf("jsast: %s:%d:%d: syntax error", path, pt.Row+1, pt.Column+1)
	}

	u := &Unit{
		Path:      path,
		Language:  lang,
		src:       src,
		tree:      tree,
		root:      root,
		scopes:    make(map[nodeKey]*Scope),
		names:     make(map[string]bool),
		removed:   make(map[nodeKey]bool),
		debugSeen: make(map[DebugEntry]bool),
	}

	switch sourceTypeForFile(path, sourceType) {
	case SourceScript:
		u.script = true
	case SourceUnambiguous:
		u.script = !hasModuleSyntax(root)
	}

	buildScopes(u)
	return u, nil
}

// Close releases the underlying tree-sitter tree.
func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// IsScript reports whether the unit uses the CommonJS module system.
func (u *Unit) IsScript() bool {
	return u.script
}

// Source returns the original source bytes.
func (u *Unit) Source() []byte {
	return u.src
}

// Text returns the source text spanned by n.
func (u *Unit) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(u.src)
}

// Program returns the top-level scope of the unit.
func (u *Unit) Program() *Scope {
	return u.program
}

// Debug records that provider reported polyfill name for this unit. Repeated
// entries are collapsed.
func (u *Unit) Debug(provider, name string) {
	e := DebugEntry{Provider: provider, Name: name}
	if u.debugSeen[e] {
		return
	}
	u.debugSeen[e] = true
	u.debug = append(u.debug, e)
}

// DebugEntries returns the recorded debug entries in report order.
func (u *Unit) DebugEntries() []DebugEntry {
	return u.debug
}

// Root returns the path of the program node.
func (u *Unit) Root() *Path {
	return u.pathFor(u.root, nil, 0)
}

// TopLevel returns the program's statements, skipping comments.
func (u *Unit) TopLevel() []*Path {
	var out []*Path
	for _, c := range namedChildren(u.root) {
		out = append(out, u.pathFor(c, nil, len(out)))
	}
	return out
}

func (u *Unit) pathFor(n *sitter.Node, parent *Path, index int) *Path {
	scope := u.program
	if parent != nil {
		scope = parent.Scope
	}
	if s, ok := u.scopes[keyOf(n)]; ok {
		scope = s
	}
	return &Path{Node: n, Parent: parent, Scope: scope, Index: index, unit: u}
}

// firstError returns the first ERROR or missing node in source order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.HasError() && !c.IsMissing() {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}

// hasModuleSyntax reports whether the program has top-level import or export
// statements.
func hasModuleSyntax(root *sitter.Node) bool {
	for _, c := range namedChildren(root) {
		switch c.Type() {
		case "import_statement", "export_statement":
			return true
		}
	}
	return false
}

// namedChildren returns n's named children, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}
