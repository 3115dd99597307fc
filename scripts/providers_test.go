package scripts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/polyinject"
)

func newCoreJSPlugin(t *testing.T, method polyinject.Method, targets polyinject.Targets) *polyinject.Plugin {
	t.Helper()
	factory, ok := polyinject.ProviderFactory("corejs3-lite")
	require.True(t, ok)
	p, err := polyinject.New(polyinject.Config{
		Method:    string(method),
		Providers: []polyinject.Descriptor{{Name: "corejs3-lite", Factory: factory}},
	}, polyinject.WithTargets(targets))
	require.NoError(t, err)
	return p
}

func transform(t *testing.T, p *polyinject.Plugin, src string) *polyinject.Result {
	t.Helper()
	res, err := p.TransformSource(context.Background(), "input.js", []byte(src))
	require.NoError(t, err)
	return res
}

func TestCoreJSLite_UsageGlobal(t *testing.T) {
	t.Parallel()

	p := newCoreJSPlugin(t, polyinject.MethodUsageGlobal, polyinject.Targets{"chrome": "60"})
	res := transform(t, p, "const p = Promise.resolve([1].at(0));\n")

	assert.Equal(t, `import "core-js/modules/es.promise.js";
import "core-js/modules/es.array.at.js";
import "core-js/modules/es.string.at-alternative.js";
const p = Promise.resolve([1].at(0));
`, string(res.Code))
	assert.Len(t, res.Debug, 3)
}

func TestCoreJSLite_UsageGlobal_ModernTargets(t *testing.T) {
	t.Parallel()

	p := newCoreJSPlugin(t, polyinject.MethodUsageGlobal, polyinject.Targets{"chrome": "100"})
	res := transform(t, p, "const p = Promise.resolve([1].at(0));\n")
	assert.False(t, res.Modified)
	assert.Empty(t, res.Injections)
}

func TestCoreJSLite_UsagePure(t *testing.T) {
	t.Parallel()

	p := newCoreJSPlugin(t, polyinject.MethodUsagePure, polyinject.Targets{"chrome": "40"})
	res := transform(t, p, "Array.from(new Map());\n[].at(0);\n")

	assert.Equal(t, `import _ArrayFrom from "core-js-pure/stable/array/from.js";
import _Map from "core-js-pure/stable/map.js";
_ArrayFrom(new _Map());
[].at(0);
`, string(res.Code))

	var handled []string
	for _, u := range res.Usages {
		if u.HandledBy != "" {
			handled = append(handled, u.String())
		}
	}
	assert.Equal(t, []string{"Array.from", "global Map"}, handled)
}

func TestCoreJSLite_EntryGlobal(t *testing.T) {
	t.Parallel()

	p := newCoreJSPlugin(t, polyinject.MethodEntryGlobal, polyinject.Targets{"chrome": "60"})
	res := transform(t, p, "import \"core-js\";\nimport \"other\";\nfoo();\n")

	assert.Equal(t, `import "core-js/modules/es.array.at.js";
import "core-js/modules/es.array.flat.js";
import "core-js/modules/es.promise.js";
import "core-js/modules/es.promise.all-settled.js";
import "core-js/modules/es.string.at-alternative.js";

import "other";
foo();
`, string(res.Code))
}

func TestCoreJSLite_IncludeExclude(t *testing.T) {
	t.Parallel()

	factory, ok := polyinject.ProviderFactory("corejs3-lite")
	require.True(t, ok)
	p, err := polyinject.New(polyinject.Config{
		Method: string(polyinject.MethodUsageGlobal),
		Providers: []polyinject.Descriptor{{
			Name:    "corejs3-lite",
			Factory: factory,
			Options: polyinject.Options{
				"include": []any{"es.map"},
				"exclude": []any{"es.promise"},
			},
		}},
	}, polyinject.WithTargets(polyinject.Targets{"chrome": "100"}))
	require.NoError(t, err)

	res := transform(t, p, "new Map();\nPromise.resolve();\n")
	assert.Equal(t, "import \"core-js/modules/es.map.js\";\nnew Map();\nPromise.resolve();\n", string(res.Code))
}

func TestBuiltinProviders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"script", "corejs3-lite"}, polyinject.BuiltinProviders())
	_, ok := polyinject.ProviderFactory("nope")
	assert.False(t, ok)
}
