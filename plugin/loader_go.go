// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo && (linux || darwin || freebsd)

package plugin

import (
	"fmt"
	goplugin "plugin"
)

// GoLoader opens plugins built with -buildmode=plugin. Their entry points
// are exported Go functions with the signatures documented on Library.
type GoLoader struct{}

func (GoLoader) Open(path string) (Library, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &goLibrary{path: path, p: p}, nil
}

type goLibrary struct {
	path string
	p    *goplugin.Plugin
}

func (l *goLibrary) Path() string { return l.path }

func (l *goLibrary) Lookup(symbol string) (any, error) {
	sym, err := l.p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingSymbol, symbol, err)
	}
	return sym, nil
}

// Close is a no-op: the Go runtime never unmaps plugins.
func (l *goLibrary) Close() error { return nil }

// DefaultLoader returns the loader for the running platform.
func DefaultLoader() Loader { return GoLoader{} }
