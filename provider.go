package polyinject

// Method selects which provider callback usage reports are delivered to and
// which traversal produces them.
type Method string

const (
	// MethodEntryGlobal reports side-effect imports and top-level requires
	// so providers can expand an entry point like "core-js/stable" into the
	// polyfills the targets need.
	MethodEntryGlobal Method = "entry-global"
	// MethodUsageGlobal reports API usage so providers can inject global
	// polyfills for what the file actually uses.
	MethodUsageGlobal Method = "usage-global"
	// MethodUsagePure reports API usage so providers can rewrite usage
	// sites to non-global ponyfill bindings.
	MethodUsagePure Method = "usage-pure"
)

// ParseMethod validates a configured method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodEntryGlobal, MethodUsageGlobal, MethodUsagePure:
		return m, nil
	case "":
		return "", configErrorf("method", "", "missing: must be one of entry-global, usage-global, usage-pure")
	}
	return "", configErrorf("method", "", "%q is not one of entry-global, usage-global, usage-pure", s)
}

func (m Method) usage() bool {
	return m == MethodUsageGlobal || m == MethodUsagePure
}

// Outcome is what a provider callback did with a report.
type Outcome int

const (
	// NotApplicable means the provider ignored the report.
	NotApplicable Outcome = iota
	// Deferred means the provider took note of the report, for example to
	// act in its Post hook, and left it for later providers as well.
	Deferred
	// Handled means the provider owns this occurrence; no later provider
	// sees the report.
	Handled
)

func (o Outcome) String() string {
	switch o {
	case Deferred:
		return "deferred"
	case Handled:
		return "handled"
	}
	return "not-applicable"
}

// Provider is a live provider instance returned by a Factory. It must
// implement the callback interface matching the configured method and may
// implement VisitorProvider and FileHooks.
type Provider = any

// EntryGlobalProvider receives reports in entry-global mode.
type EntryGlobalProvider interface {
	EntryGlobal(r Report, u *Utils, anchor *Anchor) (Outcome, error)
}

// UsageGlobalProvider receives reports in usage-global mode.
type UsageGlobalProvider interface {
	UsageGlobal(r Report, u *Utils, anchor *Anchor) (Outcome, error)
}

// UsagePureProvider receives reports in usage-pure mode.
type UsagePureProvider interface {
	UsagePure(r Report, u *Utils, anchor *Anchor) (Outcome, error)
}

// Visitor is a provider-contributed matcher, called for every node of the
// type it is registered under.
type Visitor func(p *Anchor, u *Utils) error

// VisitorProvider contributes matchers to the shared traversal. Keys are
// tree-sitter node types.
type VisitorProvider interface {
	Visitors() map[string]Visitor
}

// FileHooks are called once per file, before and after traversal, with the
// program node as anchor.
type FileHooks interface {
	Pre(file *Anchor, u *Utils) error
	Post(file *Anchor, u *Utils) error
}

// Options are the raw options given to a provider in configuration. The
// "include" and "exclude" keys are consumed by the registry.
type Options map[string]any

// Factory builds a provider instance from its capabilities and options.
type Factory func(caps *Capabilities, opts Options) (Provider, error)

// Descriptor configures one provider.
type Descriptor struct {
	// Name identifies the provider in errors, debug output and the usage
	// index.
	Name    string
	Factory Factory
	Options Options
}

// callback selects the interface method for a configured method.
type callback func(r Report, u *Utils, anchor *Anchor) (Outcome, error)

func callbackFor(m Method, p Provider) (callback, bool) {
	switch m {
	case MethodEntryGlobal:
		if v, ok := p.(EntryGlobalProvider); ok {
			return v.EntryGlobal, true
		}
	case MethodUsageGlobal:
		if v, ok := p.(UsageGlobalProvider); ok {
			return v.UsageGlobal, true
		}
	case MethodUsagePure:
		if v, ok := p.(UsagePureProvider); ok {
			return v.UsagePure, true
		}
	}
	return nil, false
}
