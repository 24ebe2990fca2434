// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// StateKind identifies one fixed-function stage.
type StateKind uint8

const (
	// StateBlend is the colour blending stage.
	StateBlend StateKind = iota
	// StateRasteriser is the primitive assembly and rasterisation stage.
	StateRasteriser
	// StateDepthStencil is the depth and stencil test stage.
	StateDepthStencil
	// StateMultisample is the multisample resolve stage.
	StateMultisample

	stateKindCount
)

var stateKindNames = [...]string{
	StateBlend:        "Blend",
	StateRasteriser:   "Rasteriser",
	StateDepthStencil: "DepthStencil",
	StateMultisample:  "Multisample",
}

// String returns the stage name.
func (k StateKind) String() string {
	if int(k) < len(stateKindNames) {
		return stateKindNames[k]
	}
	return fmt.Sprintf("StateKind(%d)", k)
}

// State is an immutable value describing one fixed-function stage.
//
// Implementations are comparable structs: two states are the same binding
// exactly when they compare equal with ==. The active-state cache relies on
// this to suppress redundant binds.
type State interface {
	Kind() StateKind
}

// BlendState describes colour blending for the single colour output.
type BlendState struct {
	// Enabled turns blending on. When false the Color and Alpha equations
	// are ignored and fragments replace the target.
	Enabled bool
	Color   gputypes.BlendComponent
	Alpha   gputypes.BlendComponent

	// WriteMask selects the channels written to the target.
	WriteMask gputypes.ColorWriteMask

	// Constant is the blend constant used by the Constant blend factors.
	Constant gputypes.Color
}

// Kind implements State.
func (BlendState) Kind() StateKind { return StateBlend }

// DefaultBlendState returns the state a freshly created backend context is in:
// blending disabled, all channels written.
func DefaultBlendState() BlendState {
	r := gputypes.BlendStateReplace()
	return BlendState{
		Color:     r.Color,
		Alpha:     r.Alpha,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
}

// AlphaBlendState returns straight (non-premultiplied) alpha blending.
func AlphaBlendState() BlendState {
	a := gputypes.BlendStateAlpha()
	return BlendState{
		Enabled:   true,
		Color:     a.Color,
		Alpha:     a.Alpha,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
}

// PremultipliedBlendState returns premultiplied alpha blending.
func PremultipliedBlendState() BlendState {
	p := gputypes.BlendStatePremultiplied()
	return BlendState{
		Enabled:   true,
		Color:     p.Color,
		Alpha:     p.Alpha,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
}

// Equation returns the blend equation for a colour target, or nil when
// blending is disabled.
func (s BlendState) Equation() *gputypes.BlendState {
	if !s.Enabled {
		return nil
	}
	return &gputypes.BlendState{Color: s.Color, Alpha: s.Alpha}
}

// RasteriserState describes primitive assembly and rasterisation.
type RasteriserState struct {
	Topology  gputypes.PrimitiveTopology
	FrontFace gputypes.FrontFace
	CullMode  gputypes.CullMode

	// Wireframe draws polygon edges only. Backends without a line fill mode
	// ignore it.
	Wireframe bool

	// UnclippedDepth disables depth clipping (depth clamp).
	UnclippedDepth bool

	// Scissor enables the scissor test.
	Scissor bool

	DepthBias           int32
	DepthBiasSlopeScale float32
	DepthBiasClamp      float32
}

// Kind implements State.
func (RasteriserState) Kind() StateKind { return StateRasteriser }

// DefaultRasteriserState returns triangle lists, counter-clockwise front
// faces and no culling.
func DefaultRasteriserState() RasteriserState {
	return RasteriserState{
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		FrontFace: gputypes.FrontFaceCCW,
		CullMode:  gputypes.CullModeNone,
	}
}

// Primitive converts the state into a gputypes primitive description.
func (s RasteriserState) Primitive() gputypes.PrimitiveState {
	return gputypes.PrimitiveState{
		Topology:       s.Topology,
		FrontFace:      s.FrontFace,
		CullMode:       s.CullMode,
		UnclippedDepth: s.UnclippedDepth,
	}
}

// DepthStencilState describes the depth and stencil tests.
type DepthStencilState struct {
	DepthTest    bool
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction

	StencilTest      bool
	StencilFront     gputypes.StencilFaceState
	StencilBack      gputypes.StencilFaceState
	StencilReadMask  uint32
	StencilWriteMask uint32
	StencilReference uint32
}

// Kind implements State.
func (DepthStencilState) Kind() StateKind { return StateDepthStencil }

// DefaultDepthStencilState returns depth test off, depth writes on with a
// Less comparison and stencil off.
func DefaultDepthStencilState() DepthStencilState {
	return DepthStencilState{
		DepthWrite:       true,
		DepthCompare:     gputypes.CompareFunctionLess,
		StencilFront:     gputypes.DefaultStencilFaceState(),
		StencilBack:      gputypes.DefaultStencilFaceState(),
		StencilReadMask:  0xFF,
		StencilWriteMask: 0xFF,
	}
}

// OpaqueDepthState returns the usual state for opaque geometry: test and
// write depth with LessEqual.
func OpaqueDepthState() DepthStencilState {
	s := DefaultDepthStencilState()
	s.DepthTest = true
	s.DepthCompare = gputypes.CompareFunctionLessEqual
	return s
}

// Descriptor converts the state for a depth attachment of the given format.
// A disabled depth test is expressed as an Always comparison without writes.
func (s DepthStencilState) Descriptor(format gputypes.TextureFormat, bias RasteriserState) gputypes.DepthStencilState {
	d := gputypes.DepthStencilState{
		Format:              format,
		DepthWriteEnabled:   s.DepthTest && s.DepthWrite,
		DepthCompare:        gputypes.CompareFunctionAlways,
		StencilFront:        gputypes.DefaultStencilFaceState(),
		StencilBack:         gputypes.DefaultStencilFaceState(),
		DepthBias:           bias.DepthBias,
		DepthBiasSlopeScale: bias.DepthBiasSlopeScale,
		DepthBiasClamp:      bias.DepthBiasClamp,
	}
	if s.DepthTest {
		d.DepthCompare = s.DepthCompare
	}
	if s.StencilTest {
		d.StencilFront = s.StencilFront
		d.StencilBack = s.StencilBack
		d.StencilReadMask = s.StencilReadMask
		d.StencilWriteMask = s.StencilWriteMask
	}
	return d
}

// MultisampleState describes multisampling.
type MultisampleState struct {
	Count           uint32
	Mask            uint64
	AlphaToCoverage bool
}

// Kind implements State.
func (MultisampleState) Kind() StateKind { return StateMultisample }

// DefaultMultisampleState returns single sampling with every sample enabled.
func DefaultMultisampleState() MultisampleState {
	d := gputypes.DefaultMultisampleState()
	return MultisampleState{Count: d.Count, Mask: d.Mask}
}

// Descriptor converts the state into a gputypes multisample description.
func (s MultisampleState) Descriptor() gputypes.MultisampleState {
	return gputypes.MultisampleState{
		Count:                  s.Count,
		Mask:                   s.Mask,
		AlphaToCoverageEnabled: s.AlphaToCoverage,
	}
}

// Compile-time interface checks.
var (
	_ State = BlendState{}
	_ State = RasteriserState{}
	_ State = DepthStencilState{}
	_ State = MultisampleState{}
)

// DefaultState returns the backend default for kind.
func DefaultState(kind StateKind) State {
	switch kind {
	case StateBlend:
		return DefaultBlendState()
	case StateRasteriser:
		return DefaultRasteriserState()
	case StateDepthStencil:
		return DefaultDepthStencilState()
	case StateMultisample:
		return DefaultMultisampleState()
	}
	return nil
}
