package jsast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// BindingKind classifies how a name was declared.
type BindingKind string

const (
	BindVar       BindingKind = "var"
	BindLet       BindingKind = "let"
	BindConst     BindingKind = "const"
	BindParam     BindingKind = "param"
	BindFunction  BindingKind = "function"
	BindClass     BindingKind = "class"
	BindImport    BindingKind = "import"
	BindNamespace BindingKind = "namespace"
	BindCatch     BindingKind = "catch"
)

// Scope is one lexical scope. Lookups walk the parent chain; the program
// scope has no parent. Globals are never bindings.
type Scope struct {
	Kind     string
	Parent   *Scope
	bindings map[string]BindingKind
}

func newScope(kind string, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent, bindings: make(map[string]BindingKind)}
}

func (s *Scope) declare(name string, kind BindingKind) {
	if name == "" {
		return
	}
	if _, ok := s.bindings[name]; ok {
		return
	}
	s.bindings[name] = kind
}

// HasBinding reports whether name is declared in s or any enclosing scope.
func (s *Scope) HasBinding(name string) bool {
	_, ok := s.Binding(name)
	return ok
}

// Binding returns the kind of the innermost declaration of name.
func (s *Scope) Binding(name string) (BindingKind, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if k, ok := sc.bindings[name]; ok {
			return k, true
		}
	}
	return "", false
}

// HasOwnBinding reports whether name is declared directly in s.
func (s *Scope) HasOwnBinding(name string) bool {
	_, ok := s.bindings[name]
	return ok
}

// Function-like node types that own a function scope.
var functionTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_expression":            true,
	"function":                       true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// IsFunction reports whether n is a function declaration, expression, arrow
// or method.
func IsFunction(n *sitter.Node) bool {
	return n != nil && functionTypes[n.Type()]
}

// identifierTypes are the node types whose text can collide with a
// generated identifier.
var identifierTypes = map[string]bool{
	"identifier":                            true,
	"shorthand_property_identifier":         true,
	"shorthand_property_identifier_pattern": true,
	"type_identifier":                       true,
}

// scopeBuilder declares every binding of a unit before traversal so lookups
// from any node see hoisted declarations.
type scopeBuilder struct {
	u *Unit
}

func buildScopes(u *Unit) {
	u.program = newScope("program", nil)
	u.scopes[keyOf(u.root)] = u.program
	b := &scopeBuilder{u: u}
	b.children(u.root, u.program, u.program)
}

func (b *scopeBuilder) children(n *sitter.Node, block, fn *Scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			b.visit(c, block, fn)
		}
	}
}

func (b *scopeBuilder) own(n *sitter.Node, kind string, parent *Scope) *Scope {
	s := newScope(kind, parent)
	b.u.scopes[keyOf(n)] = s
	return s
}

func (b *scopeBuilder) visit(n *sitter.Node, block, fn *Scope) {
	t := n.Type()
	if identifierTypes[t] {
		b.u.names[b.u.Text(n)] = true
	}

	switch t {
	case "function_declaration", "generator_function_declaration":
		block.declare(b.u.Text(n.ChildByFieldName("name")), BindFunction)
		s := b.own(n, "function", block)
		b.params(n, s)
		b.children(n, s, s)
		return

	case "function_expression", "function", "generator_function":
		s := b.own(n, "function", block)
		s.declare(b.u.Text(n.ChildByFieldName("name")), BindFunction)
		b.params(n, s)
		b.children(n, s, s)
		return

	case "arrow_function", "method_definition":
		s := b.own(n, "function", block)
		b.params(n, s)
		b.children(n, s, s)
		return

	case "class_declaration", "abstract_class_declaration":
		block.declare(b.u.Text(n.ChildByFieldName("name")), BindClass)

	case "class":
		if name := n.ChildByFieldName("name"); name != nil {
			s := b.own(n, "class", block)
			s.declare(b.u.Text(name), BindClass)
			b.children(n, s, fn)
			return
		}

	case "statement_block", "switch_body", "class_static_block":
		s := b.own(n, "block", block)
		b.children(n, s, fn)
		return

	case "for_statement":
		s := b.own(n, "for", block)
		b.children(n, s, fn)
		return

	case "for_in_statement":
		s := b.own(n, "for", block)
		names := patternNames(b.u, n.ChildByFieldName("left"))
		switch declarationKeyword(n) {
		case "var":
			for _, name := range names {
				fn.declare(name, BindVar)
			}
		case "let":
			for _, name := range names {
				s.declare(name, BindLet)
			}
		case "const":
			for _, name := range names {
				s.declare(name, BindConst)
			}
		}
		b.children(n, s, fn)
		return

	case "catch_clause":
		s := b.own(n, "catch", block)
		for _, name := range patternNames(b.u, n.ChildByFieldName("parameter")) {
			s.declare(name, BindCatch)
		}
		b.children(n, s, fn)
		return

	case "variable_declaration":
		for _, d := range namedChildren(n) {
			if d.Type() != "variable_declarator" {
				continue
			}
			for _, name := range patternNames(b.u, d.ChildByFieldName("name")) {
				fn.declare(name, BindVar)
			}
		}

	case "lexical_declaration":
		kind := BindLet
		if declarationKeyword(n) == "const" {
			kind = BindConst
		}
		for _, d := range namedChildren(n) {
			if d.Type() != "variable_declarator" {
				continue
			}
			for _, name := range patternNames(b.u, d.ChildByFieldName("name")) {
				block.declare(name, kind)
			}
		}

	case "import_statement":
		b.imports(n)
	}

	b.children(n, block, fn)
}

// params declares the parameters of a function-like node in s.
func (b *scopeBuilder) params(n *sitter.Node, s *Scope) {
	if p := n.ChildByFieldName("parameter"); p != nil {
		for _, name := range patternNames(b.u, p) {
			s.declare(name, BindParam)
		}
	}
	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		for _, name := range patternNames(b.u, p) {
			s.declare(name, BindParam)
		}
	}
}

func (b *scopeBuilder) imports(n *sitter.Node) {
	for _, c := range namedChildren(n) {
		if c.Type() != "import_clause" {
			continue
		}
		for _, spec := range namedChildren(c) {
			switch spec.Type() {
			case "identifier":
				b.u.program.declare(b.u.Text(spec), BindImport)
			case "namespace_import":
				for _, id := range namedChildren(spec) {
					if id.Type() == "identifier" {
						b.u.program.declare(b.u.Text(id), BindNamespace)
					}
				}
			case "named_imports":
				for _, is := range namedChildren(spec) {
					if is.Type() != "import_specifier" {
						continue
					}
					local := is.ChildByFieldName("alias")
					if local == nil {
						local = is.ChildByFieldName("name")
					}
					b.u.program.declare(b.u.Text(local), BindImport)
				}
			}
		}
	}
}

// declarationKeyword returns the var/let/const keyword token of a
// declaration or for-in head, or "" when there is none.
func declarationKeyword(n *sitter.Node) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || c.IsNamed() {
			continue
		}
		switch c.Type() {
		case "var", "let", "const":
			return c.Type()
		}
	}
	return ""
}

// patternNames returns the identifiers bound by a binding pattern.
func patternNames(u *Unit, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{u.Text(n)}
	case "assignment_pattern", "object_assignment_pattern":
		return patternNames(u, n.ChildByFieldName("left"))
	case "pair_pattern":
		return patternNames(u, n.ChildByFieldName("value"))
	case "required_parameter", "optional_parameter":
		return patternNames(u, n.ChildByFieldName("pattern"))
	case "object_pattern", "array_pattern", "rest_pattern":
		var out []string
		for _, c := range namedChildren(n) {
			out = append(out, patternNames(u, c)...)
		}
		return out
	}
	return nil
}
