package polyinject

import (
	"github.com/jward/polyinject/internal/jsast"
	"github.com/jward/polyinject/internal/resolve"
)

// emitFunc delivers one report anchored at a node.
type emitFunc func(r Report, anchor *jsast.Path) error

// detectEntry recognizes entry points: side-effect imports anywhere and
// require("x") statements at the top level.
func detectEntry(p *jsast.Path, emit emitFunc) error {
	switch p.Type() {
	case "import_statement":
		if src, ok := resolve.ImportSource(p); ok {
			return emit(importReport(src), p)
		}
	case "expression_statement":
		if p.Parent == nil || p.Parent.Type() != "program" {
			return nil
		}
		if src, ok := resolve.RequireSource(p); ok {
			return emit(importReport(src), p)
		}
	}
	return nil
}

// detectUsage runs the usage matchers for one node.
func detectUsage(p *jsast.Path, emit emitFunc) error {
	switch p.Type() {
	case "identifier", "shorthand_property_identifier":
		return referencedIdentifier(p, emit)
	case "member_expression":
		return memberAccess(p, p.Field("property"), false, emit)
	case "subscript_expression":
		return memberAccess(p, p.Field("index"), true, emit)
	case "object_pattern":
		return objectPattern(p, emit)
	case "binary_expression":
		return membershipTest(p, emit)
	}
	return nil
}

func referencedIdentifier(p *jsast.Path, emit emitFunc) error {
	name := p.Text()
	if p.Scope.HasBinding(name) || !isReferenced(p) {
		return nil
	}
	return emit(globalReport(name), p)
}

func memberAccess(p, prop *jsast.Path, computed bool, emit emitFunc) error {
	key, ok := resolve.ResolveKey(prop, computed)
	if !ok || key == "prototype" {
		return nil
	}
	obj := p.Field("object")
	if obj.Is("identifier") {
		if kind, ok := obj.Scope.Binding(obj.Text()); ok && kind == jsast.BindNamespace {
			return nil
		}
	}
	src := resolve.ResolveSource(obj)
	return emit(memberReport(KindProperty, src.ID, src.Placement, key), p)
}

func objectPattern(p *jsast.Path, emit emitFunc) error {
	var src resolve.Source
	if obj := destructuringSource(p); obj != nil {
		src = resolve.ResolveSource(obj)
	}
	for _, prop := range p.Children() {
		var keyNode *jsast.Path
		switch prop.Type() {
		case "shorthand_property_identifier_pattern":
			keyNode = prop
		case "object_assignment_pattern":
			keyNode = prop.Field("left")
		case "pair_pattern":
			keyNode = prop.Field("key")
		default:
			continue
		}
		if keyNode == nil || keyNode.Is("computed_property_name") {
			continue
		}
		key, ok := resolve.ResolveKey(keyNode, false)
		if !ok {
			continue
		}
		if err := emit(memberReport(KindProperty, src.ID, src.Placement, key), prop); err != nil {
			return err
		}
	}
	return nil
}

// destructuringSource returns the expression an object pattern destructures,
// or nil when it cannot be determined from context.
func destructuringSource(p *jsast.Path) *jsast.Path {
	parent := p.Parent
	if parent == nil {
		return nil
	}
	switch parent.Type() {
	case "variable_declarator":
		if parent.Field("name").Same(p) {
			return parent.Field("value")
		}
		return nil
	case "assignment_expression":
		if parent.Field("left").Same(p) {
			return parent.Field("right")
		}
		return nil
	}

	// Parameter of a function that is itself the callee: the argument at
	// the same position is the source.
	param := p
	if parent.Is("required_parameter", "optional_parameter") {
		param = parent
		parent = parent.Parent
	}
	if parent == nil || !parent.Is("formal_parameters") || parent.Parent == nil || !jsast.IsFunction(parent.Parent.Node) {
		return nil
	}
	fn := parent.Parent
	call := fn.Parent
	for call != nil && call.Is("parenthesized_expression") {
		call = call.Parent
	}
	var callee *jsast.Path
	switch {
	case call.Is("call_expression"):
		callee = call.Field("function")
	case call.Is("new_expression"):
		callee = call.Field("constructor")
	default:
		return nil
	}
	if !callee.Unparen().Same(fn) {
		return nil
	}
	args := call.Field("arguments")
	if args == nil {
		return nil
	}
	argv := args.Children()
	if param.Index < 0 || param.Index >= len(argv) {
		return nil
	}
	return argv[param.Index]
}

func membershipTest(p *jsast.Path, emit emitFunc) error {
	if !p.HasToken("in") {
		return nil
	}
	key, ok := resolve.ResolveKey(p.Field("left"), true)
	if !ok {
		return nil
	}
	src := resolve.ResolveSource(p.Field("right"))
	return emit(memberReport(KindIn, src.ID, src.Placement, key), p)
}

// isReferenced reports whether an identifier is read as a value rather than
// declared, assigned to, or used as a label or import/export name.
func isReferenced(p *jsast.Path) bool {
	parent := p.Parent
	if parent == nil {
		return true
	}
	is := func(field string) bool {
		return parent.Field(field).Same(p)
	}

	switch parent.Type() {
	case "variable_declarator", "function_declaration", "generator_function_declaration",
		"function_expression", "function", "generator_function", "class_declaration", "class",
		"abstract_class_declaration", "enum_declaration", "interface_declaration",
		"type_alias_declaration", "function_signature", "internal_module", "module":
		return !is("name")
	case "method_definition":
		return !is("name")
	case "formal_parameters", "rest_pattern", "array_pattern", "object_pattern",
		"import_specifier", "import_clause", "namespace_import", "labeled_statement",
		"break_statement", "continue_statement", "namespace_export", "import_require_clause":
		return false
	case "required_parameter", "optional_parameter":
		return !is("pattern")
	case "assignment_pattern", "assignment_expression", "augmented_assignment_expression":
		return !is("left")
	case "pair_pattern":
		return !is("value")
	case "arrow_function":
		return !is("parameter")
	case "catch_clause":
		return !is("parameter")
	case "for_in_statement":
		if is("left") {
			return !parent.HasToken("var") && !parent.HasToken("let") && !parent.HasToken("const")
		}
	case "export_specifier":
		if is("alias") {
			return false
		}
		stmt := parent.Parent
		if stmt != nil {
			stmt = stmt.Parent
		}
		return stmt == nil || stmt.Field("source") == nil
	case "jsx_opening_element", "jsx_self_closing_element":
		return is("name") && isComponentName(p.Text())
	case "jsx_closing_element", "jsx_attribute":
		return false
	}
	return true
}

// isComponentName reports whether a JSX element name refers to a binding.
// Names starting with a lowercase ASCII letter are intrinsic tags like div.
func isComponentName(name string) bool {
	return name != "" && (name[0] < 'a' || name[0] > 'z')
}
