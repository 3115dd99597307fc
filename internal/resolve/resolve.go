// Package resolve answers "what object does this expression denote" for the
// usage detector: the canonical global identity of a receiver, where on it a
// member lives, and the static value of property keys and module specifiers.
// Every function is pure; ambiguity yields the zero value, never an error.
package resolve

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/jward/polyinject/internal/jsast"
)

// Placement classifies where a member of a resolved object lives.
type Placement string

const (
	// PlacementNone means the receiver could not be resolved.
	PlacementNone Placement = ""
	// PlacementStatic means the member is read off the global itself,
	// as in Promise.resolve or Object.keys.
	PlacementStatic Placement = "static"
	// PlacementPrototype means the member is read off an instance or the
	// prototype object, as in [].includes or Array.prototype.flat.
	PlacementPrototype Placement = "prototype"
)

// Source is the resolved identity of an expression.
type Source struct {
	ID        string
	Placement Placement
}

// Resolved reports whether an identity was found.
func (s Source) Resolved() bool {
	return s.ID != ""
}

// ResolveSource resolves the object an expression denotes.
func ResolveSource(p *jsast.Path) Source {
	p = p.Unparen()
	if p == nil {
		return Source{}
	}

	if p.Is("member_expression") {
		if prop := p.Field("property"); prop.Is("property_identifier") && prop.Text() == "prototype" {
			if id, ok := resolveID(p.Field("object")); ok {
				return Source{ID: id, Placement: PlacementPrototype}
			}
			return Source{}
		}
	}

	if id, ok := resolveID(p); ok {
		return Source{ID: id, Placement: PlacementStatic}
	}

	if jsast.IsFunction(p.Node) {
		return Source{ID: "Function", Placement: PlacementPrototype}
	}
	if id := literalType(p); id != "" {
		return Source{ID: id, Placement: PlacementPrototype}
	}
	return Source{}
}

// resolveID returns the name of an identifier that refers to a global.
func resolveID(p *jsast.Path) (string, bool) {
	p = p.Unparen()
	if !p.Is("identifier") {
		return "", false
	}
	name := p.Text()
	if p.Scope.HasBinding(name) {
		return "", false
	}
	return name, true
}

// literalType returns the built-in constructor whose prototype a literal
// value inherits from, or "" when the expression is not a pure literal.
func literalType(p *jsast.Path) string {
	switch p.Type() {
	case "regex":
		return "RegExp"
	case "string":
		return "String"
	case "template_string":
		if _, ok := templateValue(p); ok {
			return "String"
		}
	case "number":
		if strings.HasSuffix(p.Text(), "n") {
			return "BigInt"
		}
		return "Number"
	case "true", "false":
		return "Boolean"
	case "array":
		if isPure(p) {
			return "Array"
		}
	case "object":
		if isPure(p) {
			return "Object"
		}
	}
	return ""
}

// isPure reports whether evaluating the expression has no side effects and
// depends on no bindings.
func isPure(p *jsast.Path) bool {
	switch p.Type() {
	case "string", "number", "true", "false", "null", "undefined", "regex":
		return true
	case "template_string":
		_, ok := templateValue(p)
		return ok
	case "parenthesized_expression":
		return isPure(p.Unparen())
	case "array":
		for _, el := range p.Children() {
			if !isPure(el) {
				return false
			}
		}
		return true
	case "object":
		for _, prop := range p.Children() {
			if !prop.Is("pair") {
				return false
			}
			if key := prop.Field("key"); key == nil || key.Is("computed_property_name") {
				return false
			}
			if v := prop.Field("value"); v == nil || !isPure(v) {
				return false
			}
		}
		return true
	}
	return jsast.IsFunction(p.Node)
}

// ResolveKey returns the static property name of a key expression. computed
// is true for bracket access and computed pattern keys. Symbol.iterator style
// well-known symbols resolve to "Symbol.iterator" when Symbol is a global.
func ResolveKey(p *jsast.Path, computed bool) (string, bool) {
	if p == nil {
		return "", false
	}
	switch p.Type() {
	case "string":
		return StringValue(p)
	case "template_string":
		return templateValue(p)
	case "property_identifier", "shorthand_property_identifier_pattern", "shorthand_property_identifier":
		return p.Text(), true
	case "identifier":
		if !computed {
			return p.Text(), true
		}
	case "computed_property_name":
		kids := p.Children()
		if len(kids) == 1 {
			return ResolveKey(kids[0], true)
		}
	case "parenthesized_expression":
		if computed {
			return ResolveKey(p.Unparen(), true)
		}
	case "member_expression":
		if !computed {
			return "", false
		}
		obj := p.Field("object")
		if obj.Is("identifier") && obj.Text() == "Symbol" && !obj.Scope.HasBinding("Symbol") {
			if sym, ok := ResolveKey(p.Field("property"), false); ok {
				return "Symbol." + sym, true
			}
		}
	}
	return "", false
}

// ImportSource returns the module specifier of a side-effect-only import
// declaration such as `import "core-js/stable"`. Imports that bind names are
// not entry points.
func ImportSource(p *jsast.Path) (string, bool) {
	if !p.Is("import_statement") {
		return "", false
	}
	for _, c := range p.Children() {
		if c.Is("import_clause") {
			return "", false
		}
	}
	return StringValue(p.Field("source"))
}

// RequireSource returns the module specifier of a statement of the exact
// form `require("x");`.
func RequireSource(p *jsast.Path) (string, bool) {
	if !p.Is("expression_statement") {
		return "", false
	}
	kids := p.Children()
	if len(kids) != 1 || !kids[0].Is("call_expression") {
		return "", false
	}
	call := kids[0]
	callee := call.Field("function")
	if !callee.Is("identifier") || callee.Text() != "require" {
		return "", false
	}
	args := call.Field("arguments")
	if args == nil {
		return "", false
	}
	argv := args.Children()
	if len(argv) != 1 || !argv[0].Is("string") {
		return "", false
	}
	return StringValue(argv[0])
}

// StringValue returns the decoded value of a string literal.
func StringValue(p *jsast.Path) (string, bool) {
	if !p.Is("string") {
		return "", false
	}
	text := p.Text()
	if len(text) < 2 {
		return "", false
	}
	return unescape(text[1 : len(text)-1]), true
}

// templateValue returns the value of a template literal without
// substitutions.
func templateValue(p *jsast.Path) (string, bool) {
	if !p.Is("template_string") {
		return "", false
	}
	for _, c := range p.Children() {
		if c.Is("template_substitution") {
			return "", false
		}
	}
	text := p.Text()
	if len(text) < 2 {
		return "", false
	}
	return unescape(text[1 : len(text)-1]), true
}

// unescape decodes the escape sequences of a string or template literal
// body. Malformed sequences leave the raw text unchanged.
func unescape(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	var high rune
	flushHigh := func() {
		if high != 0 {
			b.WriteRune(utf8.RuneError)
			high = 0
		}
	}
	writeUnit := func(r rune) {
		switch {
		case utf16.IsSurrogate(r) && r < 0xdc00:
			flushHigh()
			high = r
		case utf16.IsSurrogate(r) && high != 0:
			b.WriteRune(utf16.DecodeRune(high, r))
			high = 0
		default:
			flushHigh()
			b.WriteRune(r)
		}
	}
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' {
			flushHigh()
			r, size := utf8.DecodeRuneInString(raw[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(raw) {
			return raw
		}
		i++
		switch e := raw[i]; e {
		case 'n':
			writeUnit('\n')
		case 't':
			writeUnit('\t')
		case 'r':
			writeUnit('\r')
		case 'b':
			writeUnit('\b')
		case 'f':
			writeUnit('\f')
		case 'v':
			writeUnit('\v')
		case '\r':
			// Line continuation; CRLF counts as one terminator.
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		case 'x':
			v, err := strconv.ParseUint(hexRun(raw, i+1, 2), 16, 32)
			if err != nil {
				return raw
			}
			writeUnit(rune(v))
			i += 2
		case 'u':
			digits := hexRun(raw, i+1, 4)
			skip := 4
			if i+1 < len(raw) && raw[i+1] == '{' {
				end := strings.IndexByte(raw[i+1:], '}')
				if end < 0 {
					return raw
				}
				digits = raw[i+2 : i+1+end]
				skip = end + 1
			}
			v, err := strconv.ParseUint(digits, 16, 32)
			if err != nil || v > unicode.MaxRune || digits == "" {
				return raw
			}
			writeUnit(rune(v))
			i += skip
		default:
			if e >= '0' && e <= '7' {
				// Legacy octal escape, at most three digits and 0o377.
				n := 1
				for n < 3 && i+n < len(raw) && raw[i+n] >= '0' && raw[i+n] <= '7' {
					n++
				}
				v, _ := strconv.ParseUint(raw[i:i+n], 8, 32)
				if v > 0o377 {
					n--
					v, _ = strconv.ParseUint(raw[i:i+n], 8, 32)
				}
				writeUnit(rune(v))
				i += n
				continue
			}
			r, size := utf8.DecodeRuneInString(raw[i:])
			if r != '\u2028' && r != '\u2029' {
				writeUnit(r)
			}
			i += size
			continue
		}
		i++
	}
	flushHigh()
	return b.String()
}

// hexRun returns the n bytes of s starting at i, or "" when s is too short.
func hexRun(s string, i, n int) string {
	if i+n > len(s) {
		return ""
	}
	return s[i : i+n]
}
