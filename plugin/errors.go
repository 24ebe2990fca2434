// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plugin

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrLoad matches every LoadError via errors.Is.
	ErrLoad = errors.New("plugin: load failed")

	// ErrMissingSymbol is wrapped when a library lacks an entry point.
	ErrMissingSymbol = errors.New("plugin: missing entry point")

	// ErrSymbolType is wrapped when an entry point has the wrong signature.
	ErrSymbolType = errors.New("plugin: entry point has wrong type")

	// ErrVersion is wrapped when the required API version is not satisfied.
	ErrVersion = errors.New("plugin: incompatible API version")

	// ErrInvalidType is wrapped when GetType returns an unknown type.
	ErrInvalidType = errors.New("plugin: invalid plugin type")

	// ErrDuplicate is wrapped when a plugin or factory name is taken.
	ErrDuplicate = errors.New("plugin: name already registered")

	// ErrNotLoaded is returned by Unload for unknown plugins.
	ErrNotLoaded = errors.New("plugin: not loaded")

	// ErrNoLoader is returned when no loader can open a file.
	ErrNoLoader = errors.New("plugin: no loader for this platform")

	// ErrClosed is returned by a closed registry.
	ErrClosed = errors.New("plugin: registry closed")
)

// LoadError reports a plugin that could not be loaded. Nothing it tried to
// register is visible and its library has been released.
type LoadError struct {
	// Path is the library path or the static plugin name.
	Path string
	// Symbol is the failing entry point, if any.
	Symbol string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("plugin: load %s: %s: %v", e.Path, e.Symbol, e.Err)
	}
	return fmt.Sprintf("plugin: load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }
