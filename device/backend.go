// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Backend is the opaque capability of one native graphics API.
//
// A Device drives exactly one Backend from the render thread. Every method is
// synchronous from the caller's point of view and is never called
// concurrently. The Device validates descriptors against Info, suppresses
// redundant state binds and tracks slot occupancy; a Backend only performs the
// native calls.
//
// # Implementation Contract
//
//  1. A freshly created backend context is in the Default*State of every
//     stage (see DefaultState).
//  2. Handles are allocated by the Device; CreateResource associates the
//     native object with the given handle.
//  3. BindState is only called for states that differ from the current one.
//  4. Draw is only called between BeginPass and EndPass with a program bound.
type Backend interface {
	// Info describes the backend and its feature level.
	Info() Info

	// SupportsFormat reports whether format can be used with usage.
	SupportsFormat(format gputypes.TextureFormat, usage gputypes.TextureUsage) bool

	// CreateResource creates the native object described by desc for h.
	CreateResource(h Handle, desc Descriptor) error

	// DestroyResource releases the native object of h.
	DestroyResource(h Handle)

	// WriteBuffer copies data into buffer h at offset.
	WriteBuffer(h Handle, offset uint64, data []byte) error

	// WriteTexture uploads tightly packed texels for one mip level of h.
	WriteTexture(h Handle, level uint32, data []byte) error

	// BindState makes s the current state of its stage.
	BindState(s State) error

	// BindProgram makes program h current.
	BindProgram(h Handle) error

	// BindResource attaches resource h to slot. An invalid handle clears the slot.
	BindResource(slot Slot, h Handle) error

	// BeginPass starts rendering into the attachments of p.
	BeginPass(p *PassDescriptor) error

	// Draw submits one draw call.
	Draw(call DrawCall) error

	// EndPass finishes the current pass.
	EndPass() error

	// Present finishes the frame.
	Present() error

	// Close releases the native context.
	Close() error
}

// Features are optional backend capabilities.
type Features uint32

const (
	// FeatureMultisample allows sample counts above one.
	FeatureMultisample Features = 1 << iota
	// FeatureFloatTargets allows float formats as render attachments.
	FeatureFloatTargets
	// FeatureDepthClamp allows RasteriserState.UnclippedDepth.
	FeatureDepthClamp
	// FeatureWireframe allows RasteriserState.Wireframe.
	FeatureWireframe
	// FeatureAnisotropy allows sampler anisotropy above one.
	FeatureAnisotropy
)

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureMultisample, "Multisample"},
	{FeatureFloatTargets, "FloatTargets"},
	{FeatureDepthClamp, "DepthClamp"},
	{FeatureWireframe, "Wireframe"},
	{FeatureAnisotropy, "Anisotropy"},
}

// Has reports whether every feature in f2 is present.
func (f Features) Has(f2 Features) bool { return f&f2 == f2 }

// String returns the feature names joined with "|".
func (f Features) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Info describes a backend and its feature level.
type Info struct {
	// Name is the registry name, e.g. "vulkan" or "recording".
	Name string
	// API is the native API family.
	API gputypes.Backend
	// Adapter is the human readable adapter name.
	Adapter  string
	Features Features
	Limits   gputypes.Limits
	// MaxSamples is the largest supported sample count.
	MaxSamples uint32
}

// SlotKind identifies a binding point class.
type SlotKind uint8

const (
	SlotVertex SlotKind = iota
	SlotIndex
	SlotUniform
	SlotTexture
	SlotSampler
)

var slotKindNames = [...]string{
	SlotVertex:  "vertex",
	SlotIndex:   "index",
	SlotUniform: "uniform",
	SlotTexture: "texture",
	SlotSampler: "sampler",
}

// Slot is one binding point of the active pipeline.
type Slot struct {
	Kind  SlotKind
	Group uint32
	Index uint32
}

// String returns e.g. "uniform(0,1)".
func (s Slot) String() string {
	name := "slot"
	if int(s.Kind) < len(slotKindNames) {
		name = slotKindNames[s.Kind]
	}
	return fmt.Sprintf("%s(%d,%d)", name, s.Group, s.Index)
}

// VertexSlot returns vertex buffer slot i.
func VertexSlot(i uint32) Slot { return Slot{Kind: SlotVertex, Index: i} }

// IndexSlot returns the index buffer slot.
func IndexSlot() Slot { return Slot{Kind: SlotIndex} }

// UniformSlot returns the uniform buffer slot at group/binding.
func UniformSlot(group, binding uint32) Slot {
	return Slot{Kind: SlotUniform, Group: group, Index: binding}
}

// TextureSlot returns the texture slot at group/binding.
func TextureSlot(group, binding uint32) Slot {
	return Slot{Kind: SlotTexture, Group: group, Index: binding}
}

// SamplerSlot returns the sampler slot at group/binding.
func SamplerSlot(group, binding uint32) Slot {
	return Slot{Kind: SlotSampler, Group: group, Index: binding}
}

// ColorAttachment is one colour output of a pass.
type ColorAttachment struct {
	Texture Handle
	// Resolve receives the multisample resolve, if valid.
	Resolve Handle
	Clear   bool
	Color   gputypes.Color
}

// DepthAttachment is the depth/stencil output of a pass.
type DepthAttachment struct {
	Texture      Handle
	Clear        bool
	Depth        float32
	ClearStencil bool
	Stencil      uint32
}

// PassDescriptor describes the attachments of a render pass.
type PassDescriptor struct {
	Label  string
	Colors []ColorAttachment
	Depth  *DepthAttachment
}

// handles returns every attachment handle of p.
func (p *PassDescriptor) handles() []Handle {
	hs := make([]Handle, 0, len(p.Colors)*2+1)
	for _, c := range p.Colors {
		hs = append(hs, c.Texture)
		if c.Resolve.IsValid() {
			hs = append(hs, c.Resolve)
		}
	}
	if p.Depth != nil {
		hs = append(hs, p.Depth.Texture)
	}
	return hs
}

// DrawCall describes one draw submission. A non-zero IndexCount selects an
// indexed draw.
type DrawCall struct {
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstIndex    uint32
	BaseVertex    int32
	IndexFormat   gputypes.IndexFormat
}

// Indexed reports whether the call uses the index buffer.
func (d DrawCall) Indexed() bool { return d.IndexCount > 0 }

// Instances returns InstanceCount, treating zero as one.
func (d DrawCall) Instances() uint32 {
	if d.InstanceCount == 0 {
		return 1
	}
	return d.InstanceCount
}
