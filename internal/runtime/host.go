package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"
)

// Outcome is what a provider script decided about a report.
type Outcome int

const (
	NotApplicable Outcome = iota
	Deferred
	Handled
)

// Report is the script-facing copy of a usage report. Object is nil when
// the receiver was not resolved.
type Report struct {
	Kind      string
	Name      string
	Source    string
	Object    *string
	Key       string
	Placement string
}

// Host performs the effects a script asks for against the current file and
// anchor.
type Host interface {
	InjectGlobalImport(url string)
	InjectNamedImport(url, name, hint string) string
	InjectDefaultImport(url, hint string) string
	AnchorText() string
	ReplaceAnchor(text string)
	RemoveAnchor()
	ShouldInject(name string, support map[string]string) bool
	IsRequired(support map[string]string) bool
	Debug(name string)
}

// Call is one invocation of a provider script.
type Call struct {
	Method   string
	Provider string
	File     string
	Report   Report
	Host     Host
	// Compat is consulted by should_inject when no support map is passed.
	Compat map[string]map[string]string
}

type callState struct {
	call    *Call
	outcome Outcome
}

// globals returns the host functions and values bound to this call.
//
//	report                                 map: kind, name, source, object, key, placement
//	method, provider, file                 strings
//	inject_global_import(url)
//	inject_named_import(url, name, hint?)  -> binding
//	inject_default_import(url, hint?)      -> binding
//	anchor_text()                          -> string
//	replace_anchor(text), remove_anchor()
//	handled(), deferred()
//	should_inject(name, support?)          -> bool
//	is_required(support)                   -> bool
//	debug(name)
func (st *callState) globals() map[string]any {
	c := st.call
	return map[string]any{
		"report":   reportObject(c.Report),
		"method":   object.NewString(c.Method),
		"provider": object.NewString(c.Provider),
		"file":     object.NewString(c.File),

		"inject_global_import": object.NewBuiltin("inject_global_import", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("inject_global_import", 1, len(args))
			}
			url, err := toString(args[0])
			if err != nil {
				return object.Errorf("inject_global_import: url %v", err)
			}
			c.Host.InjectGlobalImport(url)
			return object.Nil
		}),

		"inject_named_import": object.NewBuiltin("inject_named_import", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 2 || len(args) > 3 {
				return object.NewArgsRangeError("inject_named_import", 2, 3, len(args))
			}
			strs, err := toStrings(args)
			if err != nil {
				return object.Errorf("inject_named_import: %v", err)
			}
			hint := ""
			if len(strs) == 3 {
				hint = strs[2]
			}
			return object.NewString(c.Host.InjectNamedImport(strs[0], strs[1], hint))
		}),

		"inject_default_import": object.NewBuiltin("inject_default_import", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 || len(args) > 2 {
				return object.NewArgsRangeError("inject_default_import", 1, 2, len(args))
			}
			strs, err := toStrings(args)
			if err != nil {
				return object.Errorf("inject_default_import: %v", err)
			}
			hint := ""
			if len(strs) == 2 {
				hint = strs[1]
			}
			return object.NewString(c.Host.InjectDefaultImport(strs[0], hint))
		}),

		"anchor_text": object.NewBuiltin("anchor_text", func(ctx context.Context, args ...object.Object) object.Object {
			return object.NewString(c.Host.AnchorText())
		}),

		"replace_anchor": object.NewBuiltin("replace_anchor", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("replace_anchor", 1, len(args))
			}
			text, err := toString(args[0])
			if err != nil {
				return object.Errorf("replace_anchor: text %v", err)
			}
			c.Host.ReplaceAnchor(text)
			return object.Nil
		}),

		"remove_anchor": object.NewBuiltin("remove_anchor", func(ctx context.Context, args ...object.Object) object.Object {
			c.Host.RemoveAnchor()
			return object.Nil
		}),

		"handled": object.NewBuiltin("handled", func(ctx context.Context, args ...object.Object) object.Object {
			st.outcome = Handled
			return object.Nil
		}),

		// "defer" is a Risor keyword.
		"deferred": object.NewBuiltin("deferred", func(ctx context.Context, args ...object.Object) object.Object {
			if st.outcome != Handled {
				st.outcome = Deferred
			}
			return object.Nil
		}),

		"should_inject": object.NewBuiltin("should_inject", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 || len(args) > 2 {
				return object.NewArgsRangeError("should_inject", 1, 2, len(args))
			}
			name, err := toString(args[0])
			if err != nil {
				return object.Errorf("should_inject: name %v", err)
			}
			support := c.Compat[name]
			if len(args) == 2 {
				if support, err = toSupport(args[1]); err != nil {
					return object.Errorf("should_inject: support %v", err)
				}
			}
			return object.NewBool(c.Host.ShouldInject(name, support))
		}),

		"is_required": object.NewBuiltin("is_required", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("is_required", 1, len(args))
			}
			support, err := toSupport(args[0])
			if err != nil {
				return object.Errorf("is_required: support %v", err)
			}
			return object.NewBool(c.Host.IsRequired(support))
		}),

		"debug": object.NewBuiltin("debug", func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("debug", 1, len(args))
			}
			name, err := toString(args[0])
			if err != nil {
				return object.Errorf("debug: name %v", err)
			}
			c.Host.Debug(name)
			return object.Nil
		}),
	}
}

func reportObject(r Report) *object.Map {
	m := map[string]object.Object{
		"kind":      object.NewString(r.Kind),
		"name":      object.NewString(r.Name),
		"source":    object.NewString(r.Source),
		"object":    object.Nil,
		"key":       object.NewString(r.Key),
		"placement": object.NewString(r.Placement),
	}
	if r.Object != nil {
		m["object"] = object.NewString(*r.Object)
	}
	return object.NewMap(m)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("must be a string, got %s", obj.Type())
}

func toStrings(args []object.Object) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := toString(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d %v", i+1, err)
		}
		out[i] = s
	}
	return out, nil
}

// toSupport converts a Risor map of environment to version. Versions may be
// written as strings or numbers.
func toSupport(obj object.Object) (map[string]string, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("must be a map, got %s", obj.Type())
	}
	out := make(map[string]string, len(m.Value()))
	for env, v := range m.Value() {
		switch val := v.(type) {
		case *object.String:
			out[env] = val.Value()
		case *object.Int:
			out[env] = fmt.Sprintf("%d", val.Value())
		case *object.Float:
			out[env] = fmt.Sprintf("%g", val.Value())
		default:
			return nil, fmt.Errorf("version of %s must be a string or number, got %s", env, v.Type())
		}
	}
	return out, nil
}
