package jsast

import (
	"strconv"
	"strings"
	"unicode"
)

// reservedWords cannot be used as binding names.
var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "let": true, "static": true,
	"implements": true, "interface": true, "package": true, "private": true,
	"protected": true, "public": true, "await": true,
}

// GenerateUID returns a fresh identifier derived from hint that collides with
// no identifier spelled anywhere in the unit nor any previously generated
// one: "_hint", then "_hint2", "_hint3" and so on.
func (u *Unit) GenerateUID(hint string) string {
	name := toIdentifier(hint)
	name = strings.TrimLeft(name, "_")
	name = strings.TrimRightFunc(name, unicode.IsDigit)

	for i := 1; ; i++ {
		id := "_" + name
		if i > 1 {
			id += strconv.Itoa(i)
		}
		if !u.names[id] {
			u.names[id] = true
			return id
		}
	}
}

// toIdentifier turns an arbitrary string such as a module specifier into a
// camel-cased identifier: "core-js/modules/es.promise" becomes
// "coreJsModulesEsPromise".
func toIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isIdentifierChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	name := strings.TrimLeftFunc(b.String(), func(r rune) bool {
		return r == '-' || unicode.IsDigit(r)
	})

	var out strings.Builder
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		out.WriteRune(r)
	}
	name = out.String()

	if name == "" || reservedWords[name] {
		name = "_" + name
	}
	return name
}

func isIdentifierChar(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)
}
