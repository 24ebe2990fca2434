// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// ElementUsage tells the techniques what a vertex element carries.
type ElementUsage uint8

const (
	UsagePosition    ElementUsage = iota // Object space position
	UsageNormal                          // Vertex normal
	UsageTangent                         // Tangent for normal mapping
	UsageBitangent                       // Bitangent for normal mapping
	UsageColour                          // Vertex colour
	UsageTexCoords                       // Texture coordinates
	UsageBoneIDs                         // Skinning bone indices
	UsageBoneWeights                     // Skinning bone weights
)

var elementUsageNames = [...]string{
	UsagePosition:    "Position",
	UsageNormal:      "Normal",
	UsageTangent:     "Tangent",
	UsageBitangent:   "Bitangent",
	UsageColour:      "Colour",
	UsageTexCoords:   "TexCoords",
	UsageBoneIDs:     "BoneIDs",
	UsageBoneWeights: "BoneWeights",
}

func (u ElementUsage) String() string {
	if int(u) < len(elementUsageNames) {
		return elementUsageNames[u]
	}
	return fmt.Sprintf("ElementUsage(%d)", u)
}

// ElementDescriptor describes one vertex element.
type ElementDescriptor struct {
	Name   string
	Usage  ElementUsage
	Format gputypes.VertexFormat
}

// BufferElement is an ElementDescriptor placed in a vertex.
type BufferElement struct {
	ElementDescriptor
	// Offset is the byte offset of the element within the vertex.
	Offset uint64
	// Location is the shader input location, the element index.
	Location uint32
}

// BufferDeclaration is the packed layout of one vertex: elements in
// declaration order at cumulative byte offsets.
type BufferDeclaration struct {
	elements []BufferElement
	stride   uint64
}

// NewBufferDeclaration lays elems out back to back. Elements with an
// undefined or unknown format take no space.
func NewBufferDeclaration(elems ...ElementDescriptor) BufferDeclaration {
	decl := BufferDeclaration{elements: make([]BufferElement, 0, len(elems))}
	for i, e := range elems {
		decl.elements = append(decl.elements, BufferElement{
			ElementDescriptor: e,
			Offset:            decl.stride,
			Location:          uint32(i),
		})
		decl.stride += e.Format.Size()
	}
	return decl
}

// Stride returns the size of one vertex in bytes.
func (d BufferDeclaration) Stride() uint64 { return d.stride }

// Len returns the number of elements.
func (d BufferDeclaration) Len() int { return len(d.elements) }

// Elements returns a copy of the placed elements.
func (d BufferDeclaration) Elements() []BufferElement {
	return append([]BufferElement(nil), d.elements...)
}

// Offsets returns the byte offset of every element.
func (d BufferDeclaration) Offsets() []uint64 {
	out := make([]uint64, len(d.elements))
	for i, e := range d.elements {
		out[i] = e.Offset
	}
	return out
}

// Find returns the first element with usage u.
func (d BufferDeclaration) Find(u ElementUsage) (BufferElement, bool) {
	for _, e := range d.elements {
		if e.Usage == u {
			return e, true
		}
	}
	return BufferElement{}, false
}

// Layout converts the declaration to a vertex buffer layout.
func (d BufferDeclaration) Layout(step gputypes.VertexStepMode) gputypes.VertexBufferLayout {
	if step == gputypes.VertexStepModeUndefined {
		step = gputypes.VertexStepModeVertex
	}
	attrs := make([]gputypes.VertexAttribute, len(d.elements))
	for i, e := range d.elements {
		attrs[i] = gputypes.VertexAttribute{Format: e.Format, Offset: e.Offset, ShaderLocation: e.Location}
	}
	return gputypes.VertexBufferLayout{ArrayStride: d.stride, StepMode: step, Attributes: attrs}
}
