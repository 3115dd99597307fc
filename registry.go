package polyinject

import (
	"fmt"
	"maps"
)

// registeredProvider is one entry of the registry, in configuration order.
type registeredProvider struct {
	name     string
	index    int
	options  Options
	caps     *Capabilities
	instance Provider
	call     callback
	visitors map[string]Visitor
	hooks    FileHooks
}

// buildRegistry instantiates every descriptor and checks that each instance
// implements m. Construction is all-or-nothing.
func buildRegistry(p *Plugin, m Method, descs []Descriptor) ([]*registeredProvider, error) {
	if len(descs) == 0 {
		return nil, configErrorf("providers", "", "at least one provider is required")
	}

	out := make([]*registeredProvider, 0, len(descs))
	for i, d := range descs {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("provider#%d", i)
		}
		if d.Factory == nil {
			return nil, configErrorf("providers", name, "no factory")
		}

		include, err := optionSet(d.Options, "include")
		if err != nil {
			return nil, configErrorf("providers", name, "%v", err)
		}
		exclude, err := optionSet(d.Options, "exclude")
		if err != nil {
			return nil, configErrorf("providers", name, "%v", err)
		}
		for n := range include {
			if exclude.Has(n) {
				return nil, configErrorf("providers", name, "%q is both included and excluded", n)
			}
		}

		caps := &Capabilities{
			name:    name,
			index:   i,
			method:  m,
			targets: p.targets,
			include: include,
			exclude: exclude,
			filter:  p.filter,
			plugin:  p,
		}
		inst, err := d.Factory(caps, d.Options)
		if err != nil {
			return nil, fmt.Errorf("polyinject: provider %q: %w", name, err)
		}
		call, ok := callbackFor(m, inst)
		if !ok {
			return nil, configErrorf("providers", name, "does not support the %s method", m)
		}

		rp := &registeredProvider{name: name, index: i, options: maps.Clone(d.Options), caps: caps, instance: inst, call: call}
		if v, ok := inst.(VisitorProvider); ok {
			rp.visitors = v.Visitors()
		}
		if h, ok := inst.(FileHooks); ok {
			rp.hooks = h
		}
		out = append(out, rp)
	}
	return out, nil
}

// optionSet reads a list of names from opts[key].
func optionSet(opts Options, key string) (Set, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return Set{}, nil
	}
	names, err := stringList(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return NewSet(names...), nil
}

func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%v is not a string", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}
