// Package polyinject detects uses of JavaScript built-ins in source files and
// coordinates polyfill providers that inject the imports those files need on
// the configured targets. Sources are parsed with tree-sitter; JavaScript,
// TypeScript and TSX are supported.
//
// # Methods
//
// A [Plugin] runs in one of three methods:
//
//  1. entry-global: imports of an entry module such as "core-js" are handed
//     to the providers, which typically replace them with the individual
//     modules the targets lack.
//
//  2. usage-global: every global, property access and membership test is
//     reported and providers add side-effect imports for the polyfills.
//
//  3. usage-pure: as usage-global, but providers import a local binding and
//     rewrite the reference to use it, leaving the global scope untouched.
//
// # Usage
//
// Configure providers, then transform sources one at a time or through an
// [Engine]:
//
//	factory, _ := polyinject.ProviderFactory("corejs3-lite")
//	p, err := polyinject.New(polyinject.Config{
//		Method:    "usage-global",
//		Targets:   "chrome 60",
//		Providers: []polyinject.Descriptor{{Name: "corejs3-lite", Factory: factory}},
//	})
//	if err != nil { ... }
//
//	res, err := p.TransformSource(ctx, "app.js", src)
//
// # Providers
//
// A provider implements any of [EntryGlobalProvider], [UsageGlobalProvider]
// and [UsagePureProvider]. Each report is offered to the providers in
// configuration order until one returns [Handled]. Providers receive
// [Capabilities] at construction, for target checks and debug output, and
// [Utils] per call, for injecting imports. Injected imports are
// de-duplicated per file.
//
// Providers can also be written as Risor scripts: the built-in "script"
// provider loads one from disk, and [BuiltinProviders] lists the scripts
// shipped with the module. See the internal/runtime package for the globals
// exposed to scripts.
//
// # Engine
//
// [Engine.TransformDirectory] and [Engine.TransformFiles] process many files
// on a worker pool. With [WithStore] every usage and injection is recorded in
// a SQLite index and files whose content and configuration are unchanged are
// skipped on the next run.
package polyinject
