package polyinject

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jward/polyinject/internal/importcache"
	"github.com/jward/polyinject/internal/jsast"
)

// Utils injects module imports into one file on behalf of one provider.
// Every injection goes through the file's import cache, so repeated requests
// for the same module and export return the same binding and emit a single
// statement. Statements use import declarations in ES modules and require
// calls in scripts; require forms are placed ahead of all other injections.
type Utils struct {
	ctx   context.Context
	unit  *jsast.Unit
	cache *importcache.Cache
	group int
}

// Context returns the context of the transform in progress.
func (u *Utils) Context() context.Context {
	if u.ctx == nil {
		return context.Background()
	}
	return u.ctx
}

// InjectGlobalImport injects a side-effect-only import of url.
func (u *Utils) InjectGlobalImport(url string) {
	u.cache.Acquire(u.unit, u.group, url, "", u.build(""))
}

// InjectNamedImport injects an import of export name from url and returns
// the local binding. hint seeds the binding name; it defaults to name.
func (u *Utils) InjectNamedImport(url, name, hint string) string {
	if hint == "" {
		hint = name
	}
	return u.cache.Acquire(u.unit, u.group, url, name, u.build(hint))
}

// InjectDefaultImport injects an import of url's default export and returns
// the local binding. hint seeds the binding name; it defaults to url.
func (u *Utils) InjectDefaultImport(url, hint string) string {
	if hint == "" {
		hint = url
	}
	return u.cache.Acquire(u.unit, u.group, url, importcache.Default, u.build(hint))
}

// build returns the statement builder for a cache miss. The binding is only
// generated on a miss so names stay dense.
func (u *Utils) build(hint string) importcache.BuildFunc {
	return func(script bool, url, exportName string) importcache.Built {
		src := strconv.Quote(url)
		if exportName == "" {
			if script {
				return importcache.Built{Statement: top(fmt.Sprintf("require(%s);", src))}
			}
			return importcache.Built{Statement: inline(fmt.Sprintf("import %s;", src))}
		}

		id := u.unit.GenerateUID(hint)
		var stmt jsast.Statement
		switch {
		case exportName == importcache.Default && script:
			stmt = top(fmt.Sprintf("var %s = require(%s);", id, src))
		case exportName == importcache.Default:
			stmt = inline(fmt.Sprintf("import %s from %s;", id, src))
		case script:
			stmt = top(fmt.Sprintf("var %s = require(%s)%s;", id, src, requireMember(exportName)))
		default:
			stmt = inline(fmt.Sprintf("import { %s as %s } from %s;", exportSpecifier(exportName), id, src))
		}
		return importcache.Built{Statement: stmt, Binding: id}
	}
}

func top(text string) jsast.Statement {
	return jsast.Statement{Text: text, Position: jsast.PositionTop}
}

func inline(text string) jsast.Statement {
	return jsast.Statement{Text: text, Position: jsast.PositionInline}
}

func requireMember(name string) string {
	if isIdentifierName(name) {
		return "." + name
	}
	return "[" + strconv.Quote(name) + "]"
}

func exportSpecifier(name string) string {
	if isIdentifierName(name) {
		return name
	}
	return strconv.Quote(name)
}

func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
