package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/polyinject/internal/jsast"
)

func parse(t *testing.T, src string) *jsast.Unit {
	t.Helper()
	u, err := jsast.Parse(context.Background(), "test.js", []byte(src), jsast.SourceModule)
	require.NoError(t, err)
	t.Cleanup(u.Close)
	return u
}

// find returns the first path of the given type whose text matches.
func find(t *testing.T, u *jsast.Unit, typ, text string) *jsast.Path {
	t.Helper()
	var found *jsast.Path
	u.Walk(func(p *jsast.Path) bool {
		if found == nil && p.Type() == typ && p.Text() == text {
			found = p
		}
		return found == nil
	})
	require.NotNil(t, found, "no %s %q", typ, text)
	return found
}

// receiver returns the object of the first member expression in src.
func receiver(t *testing.T, src, member string) *jsast.Path {
	t.Helper()
	u := parse(t, src)
	return find(t, u, "member_expression", member).Field("object")
}

func TestResolveSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		member string
		want   Source
	}{
		{"global", "Promise.resolve();", "Promise.resolve", Source{"Promise", PlacementStatic}},
		{"parenthesized", "(Promise).all();", "(Promise).all", Source{"Promise", PlacementStatic}},
		{"prototype", "Array.prototype.flat;", "Array.prototype.flat", Source{"Array", PlacementPrototype}},
		{"bound", "const Promise = x; Promise.resolve();", "Promise.resolve", Source{}},
		{"array literal", "[1, 2].includes(1);", "[1, 2].includes", Source{"Array", PlacementPrototype}},
		{"impure array", "[x].includes(1);", "[x].includes", Source{}},
		{"object literal", "({ a: 1 }).hasOwn;", "({ a: 1 }).hasOwn", Source{"Object", PlacementPrototype}},
		{"string", `"abc".padStart(5);`, `"abc".padStart`, Source{"String", PlacementPrototype}},
		{"template", "`abc`.at(0);", "`abc`.at", Source{"String", PlacementPrototype}},
		{"template substitution", "`a${b}`.at(0);", "`a${b}`.at", Source{}},
		{"number", "(1).toFixed();", "(1).toFixed", Source{"Number", PlacementPrototype}},
		{"bigint", "(1n).toString();", "(1n).toString", Source{"BigInt", PlacementPrototype}},
		{"regex", "/a/g.flags;", "/a/g.flags", Source{"RegExp", PlacementPrototype}},
		{"boolean", "true.valueOf();", "true.valueOf", Source{"Boolean", PlacementPrototype}},
		{"arrow", "(() => 1).bind(null);", "(() => 1).bind", Source{"Function", PlacementPrototype}},
		{"call result", "foo().includes(1);", "foo().includes", Source{}},
		{"nested member", "a.b.c;", "a.b.c", Source{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveSource(receiver(t, tt.src, tt.member))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.ID != "", got.Resolved())
		})
	}
}

func TestResolveSource_BoundPrototypeReceiver(t *testing.T) {
	t.Parallel()

	got := ResolveSource(receiver(t, "class Array {}\nArray.prototype.flat;", "Array.prototype.flat"))
	assert.False(t, got.Resolved())
}

func TestResolveKey(t *testing.T) {
	t.Parallel()

	u := parse(t, "a.b; a[\"c\"]; a[`d`]; a[Symbol.iterator]; a[k]; a[`${k}`]; a[0];\n")
	keys := map[string]string{}
	var misses []string
	u.Walk(func(p *jsast.Path) bool {
		switch p.Type() {
		case "member_expression":
			if p.Field("object").Text() != "a" {
				break
			}
			if k, ok := ResolveKey(p.Field("property"), false); ok {
				keys[p.Text()] = k
			}
		case "subscript_expression":
			if k, ok := ResolveKey(p.Field("index"), true); ok {
				keys[p.Text()] = k
			} else {
				misses = append(misses, p.Text())
			}
		}
		return true
	})

	assert.Equal(t, map[string]string{
		"a.b":                "b",
		`a["c"]`:             "c",
		"a[`d`]":             "d",
		"a[Symbol.iterator]": "Symbol.iterator",
	}, keys)
	assert.Equal(t, []string{"a[k]", "a[`${k}`]", "a[0]"}, misses)
}

func TestResolveKey_ShadowedSymbol(t *testing.T) {
	t.Parallel()

	u := parse(t, "const Symbol = {}; a[Symbol.iterator];\n")
	sub := find(t, u, "subscript_expression", "a[Symbol.iterator]")
	_, ok := ResolveKey(sub.Field("index"), true)
	assert.False(t, ok)
}

func TestImportSource(t *testing.T) {
	t.Parallel()

	u := parse(t, "import \"core-js/stable\";\nimport x from \"lib\";\nimport { y } from \"other\";\n")
	top := u.TopLevel()
	require.Len(t, top, 3)

	src, ok := ImportSource(top[0])
	assert.True(t, ok)
	assert.Equal(t, "core-js/stable", src)

	_, ok = ImportSource(top[1])
	assert.False(t, ok)
	_, ok = ImportSource(top[2])
	assert.False(t, ok)
}

func TestRequireSource(t *testing.T) {
	t.Parallel()

	u := parse(t, "require('regenerator-runtime/runtime');\nrequire(a);\nrequire('a', 'b');\nconst x = require('y');\nfoo('z');\n")
	top := u.TopLevel()
	require.Len(t, top, 5)

	src, ok := RequireSource(top[0])
	assert.True(t, ok)
	assert.Equal(t, "regenerator-runtime/runtime", src)

	for _, p := range top[1:] {
		_, ok := RequireSource(p)
		assert.False(t, ok, p.Text())
	}
}

func TestStringValue_Escapes(t *testing.T) {
	t.Parallel()

	u := parse(t, `x = 'it\'s'; y = "a\"b"; z = "A";`+"\n")
	var got []string
	u.Walk(func(p *jsast.Path) bool {
		if p.Is("string") {
			v, ok := StringValue(p)
			require.True(t, ok)
			got = append(got, v)
			return false
		}
		return true
	})
	assert.Equal(t, []string{"it's", `a"b`, "A"}, got)
}

func TestUnescape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw, want string
	}{
		{`plain`, "plain"},
		{`a\\"b`, `a\"b`},
		{`it\'s`, "it's"},
		{`a\"b`, `a"b`},
		{`tab\there`, "tab\there"},
		{`back\\slash`, `back\slash`},
		{`\x41B\u{43}`, "ABC"},
		{`\uD83D\uDE00`, "\U0001F600"},
		{`\0`, "\x00"},
		{`\101`, "A"},
		{`\q`, "q"},
		{"line\\\ncont", "linecont"},
		{"crlf\\\r\ncont", "crlfcont"},
		{"\\`tick\\`", "`tick`"},
		{`bad\x4`, `bad\x4`},
		{`bad\u{110000}`, `bad\u{110000}`},
		{`trailing\`, `trailing\`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescape(tt.raw), "unescape(%q)", tt.raw)
	}
}
