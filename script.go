package polyinject

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/polyinject/internal/runtime"
	"github.com/jward/polyinject/internal/targets"
	"github.com/jward/polyinject/scripts"
)

// ScriptProviderName is the built-in provider that delegates to a Risor
// script named by its "script" option.
const ScriptProviderName = "script"

// ProviderFactory returns the factory registered under name: the script
// provider, or one of the provider scripts shipped with polyinject.
func ProviderFactory(name string) (Factory, bool) {
	if name == ScriptProviderName {
		return scriptFactory(nil, ""), true
	}
	fsys := embeddedProviders()
	if _, err := fs.Stat(fsys, name+".risor"); err != nil {
		return nil, false
	}
	return scriptFactory(fsys, name), true
}

// BuiltinProviders returns the names ProviderFactory resolves.
func BuiltinProviders() []string {
	names := []string{ScriptProviderName}
	entries, _ := fs.ReadDir(embeddedProviders(), ".")
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".risor"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names[1:])
	return names
}

func embeddedProviders() fs.FS {
	sub, err := fs.Sub(scripts.FS, "providers")
	if err != nil {
		panic(fmt.Sprintf("polyinject: embedded providers: %v", err))
	}
	return sub
}

// scriptFactory loads the script once, at construction. An embedded script
// may ship a compat table next to it as <name>.yaml; the "compatData" option
// overrides it.
func scriptFactory(fsys fs.FS, embedded string) Factory {
	return func(caps *Capabilities, opts Options) (Provider, error) {
		rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(caps.plugin.logger)}

		var rt *runtime.Runtime
		var path string
		var compat CompatData
		if fsys != nil {
			rt = runtime.NewRuntime("", append(rtOpts, runtime.WithRuntimeFS(fsys))...)
			path = embedded + ".risor"
			data, err := fs.ReadFile(fsys, embedded+".yaml")
			switch {
			case err == nil:
				if compat, err = targets.ParseCompatData(data); err != nil {
					return nil, err
				}
			case !errors.Is(err, fs.ErrNotExist):
				return nil, err
			}
		} else {
			script, _ := opts["script"].(string)
			if script == "" {
				return nil, configErrorf("providers", caps.Name(), "the script option is required")
			}
			rt = runtime.NewRuntime(filepath.Dir(script), rtOpts...)
			path = filepath.Base(script)
		}

		if p, ok := opts["compatData"].(string); ok && p != "" {
			var err error
			if compat, err = targets.LoadCompatData(p); err != nil {
				return nil, err
			}
		}

		src, err := rt.LoadScript(path)
		if err != nil {
			return nil, err
		}
		sp := &scriptProvider{caps: caps, rt: rt, src: src, label: path}
		if compat != nil {
			sp.compat = make(map[string]map[string]string, len(compat))
			for name, support := range compat {
				sp.compat[name] = support
			}
		}
		return sp, nil
	}
}

// scriptProvider evaluates its script once per report. It implements every
// method; the script reads the "method" global to tell them apart.
type scriptProvider struct {
	caps   *Capabilities
	rt     *runtime.Runtime
	src    string
	label  string
	compat map[string]map[string]string
}

func (s *scriptProvider) EntryGlobal(r Report, u *Utils, anchor *Anchor) (Outcome, error) {
	return s.run(r, u, anchor)
}

func (s *scriptProvider) UsageGlobal(r Report, u *Utils, anchor *Anchor) (Outcome, error) {
	return s.run(r, u, anchor)
}

func (s *scriptProvider) UsagePure(r Report, u *Utils, anchor *Anchor) (Outcome, error) {
	return s.run(r, u, anchor)
}

func (s *scriptProvider) run(r Report, u *Utils, anchor *Anchor) (Outcome, error) {
	call := &runtime.Call{
		Method:   string(s.caps.Method()),
		Provider: s.caps.Name(),
		File:     anchor.Unit().Path,
		Report: runtime.Report{
			Kind:      string(r.Kind),
			Name:      r.Name,
			Source:    r.Source,
			Object:    r.Object,
			Key:       r.Key,
			Placement: string(r.Placement),
		},
		Host:   &scriptHost{caps: s.caps, utils: u, anchor: anchor},
		Compat: s.compat,
	}
	out, err := s.rt.Dispatch(u.Context(), s.src, s.label, call)
	if err != nil {
		return NotApplicable, err
	}
	switch out {
	case runtime.Handled:
		return Handled, nil
	case runtime.Deferred:
		return Deferred, nil
	}
	return NotApplicable, nil
}

// scriptHost carries out script effects against one dispatch.
type scriptHost struct {
	caps   *Capabilities
	utils  *Utils
	anchor *Anchor
}

func (h *scriptHost) InjectGlobalImport(url string) { h.utils.InjectGlobalImport(url) }

func (h *scriptHost) InjectNamedImport(url, name, hint string) string {
	return h.utils.InjectNamedImport(url, name, hint)
}

func (h *scriptHost) InjectDefaultImport(url, hint string) string {
	return h.utils.InjectDefaultImport(url, hint)
}

func (h *scriptHost) AnchorText() string        { return h.anchor.Text() }
func (h *scriptHost) ReplaceAnchor(text string) { h.anchor.Replace(text) }
func (h *scriptHost) RemoveAnchor()             { h.anchor.Remove() }
func (h *scriptHost) Debug(name string)         { h.caps.Debug(h.anchor, name) }

func (h *scriptHost) ShouldInject(name string, support map[string]string) bool {
	return h.caps.ShouldInjectPolyfill(name, support)
}

func (h *scriptHost) IsRequired(support map[string]string) bool {
	return h.caps.IsPolyfillRequired(support)
}
