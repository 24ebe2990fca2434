// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/castor/internal/logging"
	"github.com/gogpu/castor/technique"
)

// Option configures a Registry.
type Option func(*Registry)

// WithVersion sets the API version plugins are checked against.
func WithVersion(v Version) Option {
	return func(r *Registry) { r.version = v }
}

// WithLoader sets the loader used by LoadFile and Scan.
func WithLoader(l Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// WithRendererPriority orders renderers for BestRenderer.
func WithRendererPriority(names ...string) Option {
	return func(r *Registry) { r.rendererPriority = names }
}

// Registry loads plugins and owns the factories they register. An engine
// owns exactly one Registry; it is safe for concurrent use.
type Registry struct {
	version          Version
	loader           Loader
	rendererPriority []string

	mu     sync.Mutex
	loaded []*loaded
	closed bool

	techniques   *gpucontext.Registry[technique.Strategy]
	postEffects  *gpucontext.Registry[technique.PostEffect]
	toneMappings *gpucontext.Registry[technique.ToneMapping]
	renderers    *gpucontext.Registry[RendererFactory]
}

type loaded struct {
	info     Info
	lib      Library
	onUnload func(Registrar) error
	entries  []entry
}

// entry is one factory registration, applied only when its plugin loads
// successfully.
type entry struct {
	kind   string
	name   string
	commit func()
	remove func()
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{version: APIVersion, loader: DefaultLoader()}
	for _, opt := range opts {
		opt(r)
	}
	r.techniques = gpucontext.NewRegistry[technique.Strategy]()
	r.postEffects = gpucontext.NewRegistry[technique.PostEffect]()
	r.toneMappings = gpucontext.NewRegistry[technique.ToneMapping]()
	r.renderers = gpucontext.NewRegistry[RendererFactory](gpucontext.WithPriority(r.rendererPriority...))
	return r
}

// Version returns the API version plugins are checked against.
func (r *Registry) Version() Version { return r.version }

// Load runs the entry points of lib and commits its registrations. On any
// failure it returns a *LoadError, closes lib and leaves the registry
// unchanged. OnLoad must not call back into the Registry.
func (r *Registry) Load(lib Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fail := func(symbol string, cause error) error {
		if cerr := lib.Close(); cerr != nil {
			cause = errors.Join(cause, cerr)
		}
		return &LoadError{Path: lib.Path(), Symbol: symbol, Err: cause}
	}
	if r.closed {
		return fail("", ErrClosed)
	}

	required, err := resolveGetter[Version](lib, SymbolRequiredVersion)
	if err != nil {
		return fail(SymbolRequiredVersion, err)
	}
	typeOf, err := resolveGetter[Type](lib, SymbolType)
	if err != nil {
		return fail(SymbolType, err)
	}
	nameOf, err := resolveGetter[string](lib, SymbolName)
	if err != nil {
		return fail(SymbolName, err)
	}
	onLoad, err := resolve[func(Registrar) error](lib, SymbolOnLoad)
	if err != nil {
		return fail(SymbolOnLoad, err)
	}
	onUnload, err := resolve[func(Registrar) error](lib, SymbolOnUnload)
	if err != nil {
		return fail(SymbolOnUnload, err)
	}

	v, err := required()
	if err != nil {
		return fail(SymbolRequiredVersion, err)
	}
	if !v.Satisfies(r.version) {
		return fail(SymbolRequiredVersion, fmt.Errorf("%w: requires %s, engine is %s", ErrVersion, v, r.version))
	}
	typ, err := typeOf()
	if err != nil {
		return fail(SymbolType, err)
	}
	if !typ.Valid() {
		return fail(SymbolType, fmt.Errorf("%w: %d", ErrInvalidType, uint32(typ)))
	}
	name, err := nameOf()
	if err != nil {
		return fail(SymbolName, err)
	}
	if name == "" {
		return fail(SymbolName, errors.New("plugin: empty name"))
	}
	if r.find(name) >= 0 {
		return fail(SymbolName, fmt.Errorf("%w: plugin %q", ErrDuplicate, name))
	}

	s := &staging{reg: r}
	if err := s.run(onLoad); err != nil {
		return fail(SymbolOnLoad, err)
	}

	l := &loaded{
		info:     Info{Name: name, Type: typ, Version: v, Path: lib.Path()},
		lib:      lib,
		onUnload: onUnload,
		entries:  s.entries,
	}
	for _, e := range s.entries {
		e.commit()
		l.info.Factories = append(l.info.Factories, e.kind+"/"+e.name)
	}
	r.loaded = append(r.loaded, l)
	logging.Logger().Info("plugin: loaded", "name", name, "type", typ, "version", v, "path", lib.Path())
	return nil
}

// LoadFile opens path with the registry loader and loads it.
func (r *Registry) LoadFile(path string) error {
	if r.loader == nil {
		return &LoadError{Path: path, Err: ErrNoLoader}
	}
	lib, err := r.loader.Open(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return r.Load(lib)
}

// Scan loads every library in dir, in name order. A plugin that fails to
// load does not stop the others; all failures are joined in the result.
func (r *Registry) Scan(dir string) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, de := range ents {
		if de.IsDir() || !IsLibrary(de.Name()) {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, de.Name())); err != nil {
			logging.Logger().Warn("plugin: skipped", "file", de.Name(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unload runs the plugin's OnUnload, removes its factories and releases its
// library, in that order.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotLoaded, name)
	}
	l := r.loaded[i]
	r.loaded = slices.Delete(r.loaded, i, i+1)
	return r.unload(l)
}

func (r *Registry) unload(l *loaded) error {
	var errs []error
	if err := (&staging{reg: r, frozen: true}).run(l.onUnload); err != nil {
		errs = append(errs, fmt.Errorf("plugin: %s: %s: %w", l.info.Name, SymbolOnUnload, err))
	}
	for _, e := range l.entries {
		e.remove()
	}
	if err := l.lib.Close(); err != nil {
		errs = append(errs, fmt.Errorf("plugin: %s: release: %w", l.info.Name, err))
	}
	logging.Logger().Info("plugin: unloaded", "name", l.info.Name)
	return errors.Join(errs...)
}

// Close unloads every plugin in reverse load order. Loading after Close
// fails with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for i := len(r.loaded) - 1; i >= 0; i-- {
		if err := r.unload(r.loaded[i]); err != nil {
			errs = append(errs, err)
		}
	}
	r.loaded = nil
	return errors.Join(errs...)
}

// Plugins returns the loaded plugins in load order.
func (r *Registry) Plugins() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, len(r.loaded))
	for i, l := range r.loaded {
		out[i] = l.info
		out[i].Factories = slices.Clone(l.info.Factories)
	}
	return out
}

// Loaded reports whether a plugin named name is loaded.
func (r *Registry) Loaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(name) >= 0
}

func (r *Registry) find(name string) int {
	return slices.IndexFunc(r.loaded, func(l *loaded) bool { return l.info.Name == name })
}

// Technique returns a new strategy from the factory named name.
func (r *Registry) Technique(name string) (technique.Strategy, bool) {
	if !r.techniques.Has(name) {
		return nil, false
	}
	return r.techniques.Get(name), true
}

// PostEffect returns a new post effect from the factory named name.
func (r *Registry) PostEffect(name string) (technique.PostEffect, bool) {
	if !r.postEffects.Has(name) {
		return nil, false
	}
	return r.postEffects.Get(name), true
}

// ToneMapping returns a new operator from the factory named name.
func (r *Registry) ToneMapping(name string) (technique.ToneMapping, bool) {
	if !r.toneMappings.Has(name) {
		return nil, false
	}
	return r.toneMappings.Get(name), true
}

// Renderer returns the renderer factory named name.
func (r *Registry) Renderer(name string) (RendererFactory, bool) {
	if !r.renderers.Has(name) {
		return nil, false
	}
	return r.renderers.Get(name), true
}

// BestRenderer returns the highest priority renderer, or "" and nil when
// none is registered.
func (r *Registry) BestRenderer() (string, RendererFactory) {
	name := r.renderers.BestName()
	if name == "" {
		return "", nil
	}
	return name, r.renderers.Get(name)
}

// Techniques returns the sorted technique names.
func (r *Registry) Techniques() []string { return sorted(r.techniques.Available()) }

// PostEffects returns the sorted post effect names.
func (r *Registry) PostEffects() []string { return sorted(r.postEffects.Available()) }

// ToneMappings returns the sorted tone mapping names.
func (r *Registry) ToneMappings() []string { return sorted(r.toneMappings.Available()) }

// Renderers returns the sorted renderer names.
func (r *Registry) Renderers() []string { return sorted(r.renderers.Available()) }

func sorted(s []string) []string {
	slices.Sort(s)
	return s
}

func resolve[T any](lib Library, symbol string) (T, error) {
	var zero T
	sym, err := lib.Lookup(symbol)
	if err != nil {
		return zero, err
	}
	fn, ok := sym.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrSymbolType, sym)
	}
	return fn, nil
}

// resolveGetter resolves a getter entry point of either form func() T or
// func() (T, error).
func resolveGetter[T any](lib Library, symbol string) (func() (T, error), error) {
	sym, err := lib.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	switch fn := sym.(type) {
	case func() T:
		return func() (T, error) { return fn(), nil }, nil
	case func() (T, error):
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrSymbolType, sym)
}
