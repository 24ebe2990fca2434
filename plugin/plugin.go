// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plugin

import (
	"fmt"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/technique"
)

// Entry point symbols every plugin library exports.
const (
	SymbolRequiredVersion = "GetRequiredVersion"
	SymbolType            = "GetType"
	SymbolName            = "GetName"
	SymbolOnLoad          = "OnLoad"
	SymbolOnUnload        = "OnUnload"
)

// Type is the kind of functionality a plugin contributes.
type Type uint32

const (
	TypeTechnique Type = iota
	TypePostFx
	TypeToneMapping
	TypeRenderer
	TypeGeneric
)

func (t Type) String() string {
	switch t {
	case TypeTechnique:
		return "technique"
	case TypePostFx:
		return "postfx"
	case TypeToneMapping:
		return "tonemapping"
	case TypeRenderer:
		return "renderer"
	case TypeGeneric:
		return "generic"
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool { return t <= TypeGeneric }

// Version is a plugin API version.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// APIVersion is the plugin API version implemented by this package.
var APIVersion = Version{Major: 1, Minor: 0, Patch: 0}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// Satisfies reports whether an engine at version engine can host a plugin
// requiring v: the major versions match and the engine is not older.
func (v Version) Satisfies(engine Version) bool {
	if v.Major != engine.Major {
		return false
	}
	if v.Minor != engine.Minor {
		return v.Minor < engine.Minor
	}
	return v.Patch <= engine.Patch
}

// RendererFactory opens a device backend.
type RendererFactory func() (device.Backend, error)

// Registrar receives the factories a plugin contributes. Registrations made
// during OnLoad become visible when OnLoad returns nil, and not before.
type Registrar interface {
	RegisterTechnique(name string, factory func() technique.Strategy)
	RegisterPostEffect(name string, factory func() technique.PostEffect)
	RegisterToneMapping(name string, factory func() technique.ToneMapping)
	RegisterRenderer(name string, factory RendererFactory)
}

// Plugin is the in-process form of the entry points. Static wraps it into a
// Library.
type Plugin interface {
	RequiredVersion() Version
	Type() Type
	Name() string
	OnLoad(r Registrar) error
	OnUnload(r Registrar) error
}

// Info describes a loaded plugin.
type Info struct {
	Name    string
	Type    Type
	Version Version
	Path    string
	// Factories lists the "kind/name" of everything the plugin registered.
	Factories []string
}
