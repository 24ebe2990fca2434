// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plugin

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Library is an opened plugin module.
//
// Lookup resolves an entry point to a Go function value of the signature
// the symbol name implies:
//
//	GetRequiredVersion  func() Version
//	GetType             func() Type
//	GetName             func() string
//	OnLoad, OnUnload    func(Registrar) error
//
// The getters may also return an error as a second result, which fails the
// load.
type Library interface {
	// Path identifies the library in errors and logs.
	Path() string
	Lookup(symbol string) (any, error)
	// Close releases the module. It is called once, after OnUnload.
	Close() error
}

// Loader opens plugin libraries from files.
type Loader interface {
	Open(path string) (Library, error)
}

// Extension is the shared library extension of the running platform.
func Extension() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin", "ios":
		return ".dylib"
	}
	return ".so"
}

// IsLibrary reports whether path has the platform library extension.
func IsLibrary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension())
}

// Symbols is a Library backed by a symbol table. It serves plugins that are
// linked into the binary.
type Symbols struct {
	Name    string
	Table   map[string]any
	OnClose func() error
}

var _ Library = (*Symbols)(nil)

func (s *Symbols) Path() string { return s.Name }

// Lookup returns the table entry for symbol.
func (s *Symbols) Lookup(symbol string) (any, error) {
	v, ok := s.Table[symbol]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingSymbol, symbol)
	}
	return v, nil
}

// Close runs OnClose if set.
func (s *Symbols) Close() error {
	if s.OnClose == nil {
		return nil
	}
	return s.OnClose()
}

// Static exposes an in-process Plugin as a Library.
func Static(p Plugin) Library {
	return &Symbols{
		Name: "static:" + p.Name(),
		Table: map[string]any{
			SymbolRequiredVersion: p.RequiredVersion,
			SymbolType:            p.Type,
			SymbolName:            p.Name,
			SymbolOnLoad:          p.OnLoad,
			SymbolOnUnload:        p.OnUnload,
		},
	}
}

// Func is a Plugin assembled from values, for plugins that only register
// factories.
type Func struct {
	PluginName string
	Kind       Type
	Requires   Version
	Load       func(Registrar) error
	Unload     func(Registrar) error
}

var _ Plugin = (*Func)(nil)

// Name returns PluginName.
func (f *Func) Name() string { return f.PluginName }

// Type returns Kind.
func (f *Func) Type() Type { return f.Kind }

// RequiredVersion returns Requires, or APIVersion when it is zero.
func (f *Func) RequiredVersion() Version {
	if f.Requires == (Version{}) {
		return APIVersion
	}
	return f.Requires
}

func (f *Func) OnLoad(r Registrar) error {
	if f.Load == nil {
		return nil
	}
	return f.Load(r)
}

func (f *Func) OnUnload(r Registrar) error {
	if f.Unload == nil {
		return nil
	}
	return f.Unload(r)
}
