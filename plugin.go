package polyinject

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jward/polyinject/internal/importcache"
	"github.com/jward/polyinject/internal/jsast"
	"github.com/jward/polyinject/internal/targets"
)

// Config is the plugin configuration.
type Config struct {
	// Method is one of entry-global, usage-global or usage-pure.
	Method string
	// Providers are dispatched to in order.
	Providers []Descriptor
	// Targets is an explicit target list: a query string, a list of query
	// strings, or a map of environment to version.
	Targets any
	// IgnoreBrowserslistConfig disables browserslist lookups when Targets
	// is empty.
	IgnoreBrowserslistConfig bool
	// ConfigPath is where browserslist configuration is searched from.
	ConfigPath string
	// SourceType is module (default), script or unambiguous.
	SourceType string
	// Debug logs every polyfill providers report through
	// Capabilities.Debug.
	Debug bool
}

// Plugin detects API usage in compilation units and dispatches it to the
// configured providers. A Plugin and its providers are immutable after New
// and may transform many files, concurrently; all per-file state is created
// fresh for every TransformSource call.
type Plugin struct {
	method     Method
	sourceType jsast.SourceType
	targets    Targets
	skipped    []string
	filter     Filter
	logger     *log.Logger
	debug      bool
	dir        string
	getenv     func(string) string
	preset     Targets

	providers []*registeredProvider
	visitors  map[string][]providerVisitor

	mu    sync.Mutex
	files map[*jsast.Unit]*fileState
}

type providerVisitor struct {
	index int
	fn    Visitor
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(p *Plugin) {
		p.logger = l
	}
}

// WithFilter replaces the target filter used by provider capabilities.
func WithFilter(f Filter) Option {
	return func(p *Plugin) {
		p.filter = f
	}
}

// WithWorkingDir sets the directory browserslist configuration is searched
// from when Config.ConfigPath is empty.
func WithWorkingDir(dir string) Option {
	return func(p *Plugin) {
		p.dir = dir
	}
}

// WithGetenv replaces the environment lookup used for BROWSERSLIST and
// related variables.
func WithGetenv(fn func(string) string) Option {
	return func(p *Plugin) {
		p.getenv = fn
	}
}

// WithTargets uses an already resolved target set and skips resolution.
func WithTargets(t Targets) Option {
	return func(p *Plugin) {
		p.preset = t
	}
}

// New validates cfg, resolves targets and instantiates every provider. Any
// configuration problem is returned as a *ConfigError before a file is
// visited.
func New(cfg Config, opts ...Option) (*Plugin, error) {
	method, err := ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}
	if len(cfg.Providers) == 0 {
		return nil, configErrorf("providers", "", "at least one provider is required")
	}
	st, err := jsast.ParseSourceType(cfg.SourceType)
	if err != nil {
		return nil, configErrorf("sourceType", "", "%q must be module, script or unambiguous", cfg.SourceType)
	}

	p := &Plugin{
		method:     method,
		sourceType: st,
		filter:     targets.CompatFilter{},
		debug:      cfg.Debug,
		getenv:     os.Getenv,
		files:      make(map[*jsast.Unit]*fileState),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	if p.preset != nil {
		p.targets = p.preset
	} else {
		t, skipped, err := targets.Resolve(targets.Options{
			Targets:                  cfg.Targets,
			IgnoreBrowserslistConfig: cfg.IgnoreBrowserslistConfig,
			ConfigPath:               cfg.ConfigPath,
			Dir:                      p.dir,
			Getenv:                   p.getenv,
		})
		if err != nil {
			return nil, configErrorf("targets", "", "%v", err)
		}
		p.targets, p.skipped = t, skipped
	}
	for _, q := range p.skipped {
		p.logger.Warn("unsupported target query skipped", "query", q)
	}
	if p.debug {
		p.logger.Info("targets", "method", method, "targets", p.targets.String())
	}

	p.providers, err = buildRegistry(p, method, cfg.Providers)
	if err != nil {
		return nil, err
	}
	p.visitors = make(map[string][]providerVisitor)
	for _, rp := range p.providers {
		for typ, fn := range rp.visitors {
			p.visitors[typ] = append(p.visitors[typ], providerVisitor{index: rp.index, fn: fn})
		}
	}
	return p, nil
}

// Method returns the configured method.
func (p *Plugin) Method() Method { return p.method }

// Targets returns the resolved targets.
func (p *Plugin) Targets() Targets { return p.targets }

// SkippedQueries returns target queries that could not be evaluated.
func (p *Plugin) SkippedQueries() []string { return p.skipped }

// SourceType returns the configured source type.
func (p *Plugin) SourceType() SourceType { return p.sourceType }

// ProviderNames returns the provider names in dispatch order.
func (p *Plugin) ProviderNames() []string {
	names := make([]string, len(p.providers))
	for i, rp := range p.providers {
		names[i] = rp.name
	}
	return names
}

// Usage is one report together with where it occurred and which provider,
// if any, took ownership of it.
type Usage struct {
	Report
	Line      int
	Col       int
	HandledBy string
}

// Injection is one statement injected into a file.
type Injection struct {
	Source     string
	ExportName string
	Binding    string
	Provider   string
	Position   Position
}

// Result is the outcome of transforming one file.
type Result struct {
	Path       string
	Code       []byte
	Modified   bool
	Script     bool
	Usages     []Usage
	Injections []Injection
	Debug      []DebugEntry
}

// fileState is the mutable state of one transform: the unit, its import
// cache and the usages seen so far.
type fileState struct {
	ctx    context.Context
	unit   *jsast.Unit
	cache  *importcache.Cache
	byProv []*Utils
	usages []Usage
}

func (fs *fileState) utils(index int) *Utils {
	if fs.byProv[index] == nil {
		fs.byProv[index] = &Utils{ctx: fs.ctx, unit: fs.unit, cache: fs.cache, group: index}
	}
	return fs.byProv[index]
}

func (p *Plugin) begin(ctx context.Context, u *jsast.Unit) *fileState {
	fs := &fileState{
		ctx:    ctx,
		unit:   u,
		cache:  importcache.New(),
		byProv: make([]*Utils, len(p.providers)),
	}
	p.mu.Lock()
	p.files[u] = fs
	p.mu.Unlock()
	return fs
}

func (p *Plugin) end(u *jsast.Unit) {
	p.mu.Lock()
	delete(p.files, u)
	p.mu.Unlock()
}

func (p *Plugin) fileFor(u *jsast.Unit) *fileState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[u]
}

// TransformSource transforms one compilation unit. The language is chosen
// from path's extension. Errors returned by providers abort the file.
func (p *Plugin) TransformSource(ctx context.Context, path string, src []byte) (*Result, error) {
	u, err := jsast.Parse(ctx, path, src, p.sourceType)
	if err != nil {
		return nil, fmt.Errorf("polyinject: %w", err)
	}
	defer u.Close()

	fs := p.begin(ctx, u)
	defer p.end(u)

	root := u.Root()
	for _, rp := range p.providers {
		if rp.hooks == nil {
			continue
		}
		if err := rp.hooks.Pre(root, fs.utils(rp.index)); err != nil {
			return nil, fmt.Errorf("polyinject: %s: provider %q: pre: %w", path, rp.name, err)
		}
	}

	var walkErr error
	u.Walk(func(n *jsast.Path) bool {
		if walkErr != nil {
			return false
		}
		if err := p.visit(fs, n); err != nil {
			walkErr = err
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for _, rp := range p.providers {
		if rp.hooks == nil {
			continue
		}
		if err := rp.hooks.Post(root, fs.utils(rp.index)); err != nil {
			return nil, fmt.Errorf("polyinject: %s: provider %q: post: %w", path, rp.name, err)
		}
	}

	res := &Result{
		Path:     path,
		Code:     u.Output(),
		Modified: u.Modified(),
		Script:   u.IsScript(),
		Usages:   fs.usages,
		Debug:    u.DebugEntries(),
	}
	for _, inj := range fs.cache.Injections() {
		res.Injections = append(res.Injections, Injection{
			Source:     inj.URL,
			ExportName: inj.ExportName,
			Binding:    inj.Binding,
			Provider:   p.providers[inj.Group].name,
			Position:   inj.Position,
		})
	}
	return res, nil
}

// visit runs the built-in matchers and then provider visitors for one node.
func (p *Plugin) visit(fs *fileState, n *jsast.Path) error {
	emit := func(r Report, anchor *jsast.Path) error {
		return p.dispatch(fs, r, anchor)
	}
	var err error
	if p.method.usage() {
		err = detectUsage(n, emit)
	} else {
		err = detectEntry(n, emit)
	}
	if err != nil {
		return err
	}

	for _, v := range p.visitors[n.Type()] {
		if n.Removed() {
			break
		}
		if err := v.fn(n, fs.utils(v.index)); err != nil {
			return fmt.Errorf("polyinject: %s: provider %q: visitor %s: %w", fs.unit.Path, p.providers[v.index].name, n.Type(), err)
		}
	}
	return nil
}
