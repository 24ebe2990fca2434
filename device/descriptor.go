// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Handle identifies a backend object created through a Device.
// The zero value never refers to a live resource.
type Handle uint32

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

// IsValid reports whether h is non-zero.
func (h Handle) IsValid() bool { return h != InvalidHandle }

// ResourceKind identifies the kind of backend object a descriptor creates.
type ResourceKind uint8

const (
	KindBuffer ResourceKind = iota
	KindTexture
	KindSampler
	KindProgram
)

var resourceKindNames = [...]string{
	KindBuffer:  "buffer",
	KindTexture: "texture",
	KindSampler: "sampler",
	KindProgram: "program",
}

// String returns the kind name.
func (k ResourceKind) String() string {
	if int(k) < len(resourceKindNames) {
		return resourceKindNames[k]
	}
	return fmt.Sprintf("ResourceKind(%d)", k)
}

// Descriptor is pure data describing a backend object. Descriptors carry no
// backend handles and may be built on any goroutine.
type Descriptor interface {
	Kind() ResourceKind
	Name() string
}

// BufferDescriptor describes a GPU buffer.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// Kind implements Descriptor.
func (BufferDescriptor) Kind() ResourceKind { return KindBuffer }

// Name implements Descriptor.
func (d BufferDescriptor) Name() string { return d.Label }

// TextureDescriptor describes a 2D texture or render buffer.
type TextureDescriptor struct {
	Label     string
	Width     uint32
	Height    uint32
	Layers    uint32
	MipLevels uint32
	Samples   uint32
	Format    gputypes.TextureFormat
	Usage     gputypes.TextureUsage
}

// Kind implements Descriptor.
func (TextureDescriptor) Kind() ResourceKind { return KindTexture }

// Name implements Descriptor.
func (d TextureDescriptor) Name() string { return d.Label }

// Normalized returns d with zero Layers, MipLevels and Samples set to one.
func (d TextureDescriptor) Normalized() TextureDescriptor {
	if d.Layers == 0 {
		d.Layers = 1
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.Samples == 0 {
		d.Samples = 1
	}
	return d
}

// SamplerDescriptor describes texture sampling.
type SamplerDescriptor struct {
	Label         string
	AddressMode   gputypes.AddressMode
	MagFilter     gputypes.FilterMode
	MinFilter     gputypes.FilterMode
	MipmapFilter  gputypes.FilterMode
	Compare       gputypes.CompareFunction
	MaxAnisotropy uint16
}

// Kind implements Descriptor.
func (SamplerDescriptor) Kind() ResourceKind { return KindSampler }

// Name implements Descriptor.
func (d SamplerDescriptor) Name() string { return d.Label }

// BindingKind is the kind of resource a shader binding expects.
type BindingKind uint8

const (
	BindingUniform BindingKind = iota
	BindingTexture
	BindingSampler
)

// Binding is one resource binding declared by a shader program.
type Binding struct {
	Name    string
	Group   uint32
	Binding uint32
	Kind    BindingKind
	// Size is the uniform block size in bytes, zero for textures and samplers.
	Size uint64
}

// ProgramDescriptor describes a shader program with a vertex and a fragment
// stage.
type ProgramDescriptor struct {
	Label string

	// Source is the WGSL source. Backends that consume WGSL use it directly.
	Source string

	// SPIRV is the compiled module for backends that consume SPIR-V.
	SPIRV []uint32

	VertexEntry   string
	FragmentEntry string

	// Bindings lists the resources the program reads.
	Bindings []Binding

	// VertexLayout describes the vertex buffers the vertex stage consumes.
	VertexLayout []gputypes.VertexBufferLayout
}

// Kind implements Descriptor.
func (ProgramDescriptor) Kind() ResourceKind { return KindProgram }

// Name implements Descriptor.
func (d ProgramDescriptor) Name() string { return d.Label }

// Compile-time interface checks.
var (
	_ Descriptor = BufferDescriptor{}
	_ Descriptor = TextureDescriptor{}
	_ Descriptor = SamplerDescriptor{}
	_ Descriptor = ProgramDescriptor{}
)
