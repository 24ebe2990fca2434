// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/resource"
)

// Vertex is the interleaved layout of the built-in meshes.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// VertexDeclaration describes Vertex.
func VertexDeclaration() resource.BufferDeclaration {
	return resource.NewBufferDeclaration(
		resource.ElementDescriptor{Name: "position", Usage: resource.UsagePosition, Format: gputypes.VertexFormatFloat32x3},
		resource.ElementDescriptor{Name: "normal", Usage: resource.UsageNormal, Format: gputypes.VertexFormatFloat32x3},
		resource.ElementDescriptor{Name: "uv", Usage: resource.UsageTexCoords, Format: gputypes.VertexFormatFloat32x2},
	)
}

// Submesh is a vertex and index list drawn with one material.
type Submesh struct {
	Vertices []Vertex
	Indices  []uint32
	Material *Material

	vbo *resource.VertexBuffer
	ibo *resource.IndexBuffer
}

// Bounds returns the centre and radius of the bounding sphere.
func (s *Submesh) Bounds() (mgl32.Vec3, float32) {
	if len(s.Vertices) == 0 {
		return mgl32.Vec3{}, 0
	}
	lo, hi := s.Vertices[0].Position, s.Vertices[0].Position
	for _, v := range s.Vertices[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], v.Position[i])
			hi[i] = max(hi[i], v.Position[i])
		}
	}
	c := lo.Add(hi).Mul(0.5)
	return c, hi.Sub(c).Len()
}

// VertexBuffer returns the GPU vertex buffer, nil before Initialise.
func (s *Submesh) VertexBuffer() *resource.VertexBuffer { return s.vbo }

// IndexBuffer returns the GPU index buffer, nil before Initialise.
func (s *Submesh) IndexBuffer() *resource.IndexBuffer { return s.ibo }

// DrawCall returns the draw of the whole submesh.
func (s *Submesh) DrawCall() device.DrawCall {
	if len(s.Indices) > 0 && s.ibo != nil {
		return device.DrawCall{IndexCount: uint32(len(s.Indices)), IndexFormat: s.ibo.Format()}
	}
	return device.DrawCall{VertexCount: uint32(len(s.Vertices))}
}

// Ready reports whether the GPU buffers are initialised.
func (s *Submesh) Ready() bool {
	return s.vbo != nil && s.vbo.State() == resource.Initialised &&
		(len(s.Indices) == 0 || (s.ibo != nil && s.ibo.State() == resource.Initialised))
}

func (s *Submesh) initialise(d *device.Device, label string) error {
	if s.Ready() {
		return nil
	}
	decl := VertexDeclaration()
	vbo := resource.NewVertexBuffer(d, label+".vertices", decl)
	data := encodeVertices(s.Vertices, decl.Stride())
	if err := vbo.SetData(data); err != nil {
		return err
	}
	if err := vbo.Create(uint64(len(data))); err != nil {
		return err
	}
	if err := vbo.Initialise(); err != nil {
		vbo.Cleanup()
		return err
	}
	s.vbo = vbo
	if len(s.Indices) == 0 {
		return nil
	}
	format := gputypes.IndexFormatUint32
	if len(s.Vertices) <= math.MaxUint16 {
		format = gputypes.IndexFormatUint16
	}
	ibo := resource.NewIndexBuffer(d, label+".indices", format)
	if err := ibo.SetIndices(s.Indices); err != nil {
		return err
	}
	if err := ibo.Create(uint64(len(ibo.Data()))); err != nil {
		return err
	}
	if err := ibo.Initialise(); err != nil {
		ibo.Cleanup()
		return err
	}
	s.ibo = ibo
	return nil
}

func (s *Submesh) cleanup() {
	if s.vbo != nil {
		s.vbo.Destroy()
		s.vbo = nil
	}
	if s.ibo != nil {
		s.ibo.Destroy()
		s.ibo = nil
	}
}

func encodeVertices(vs []Vertex, stride uint64) []byte {
	out := make([]byte, len(vs)*int(stride))
	for i, v := range vs {
		b := out[i*int(stride):]
		floats := [8]float32{
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.UV[0], v.UV[1],
		}
		for j, f := range floats {
			binary.LittleEndian.PutUint32(b[j*4:], math.Float32bits(f))
		}
	}
	return out
}

// Mesh is a named list of submeshes.
type Mesh struct {
	name      string
	submeshes []*Submesh
}

// NewMesh returns a mesh with the given submeshes.
func NewMesh(name string, submeshes ...*Submesh) *Mesh {
	return &Mesh{name: name, submeshes: submeshes}
}

// Name returns the mesh name.
func (m *Mesh) Name() string { return m.name }

// Submeshes returns the submeshes.
func (m *Mesh) Submeshes() []*Submesh { return m.submeshes }

// AddSubmesh appends s.
func (m *Mesh) AddSubmesh(s *Submesh) { m.submeshes = append(m.submeshes, s) }

// Bounds returns a bounding sphere of every submesh.
func (m *Mesh) Bounds() (mgl32.Vec3, float32) {
	var (
		centre mgl32.Vec3
		radius float32
		first  = true
	)
	for _, s := range m.submeshes {
		c, r := s.Bounds()
		if len(s.Vertices) == 0 {
			continue
		}
		if first {
			centre, radius, first = c, r, false
			continue
		}
		d := c.Sub(centre).Len()
		if d+r <= radius {
			continue
		}
		if d+radius <= r {
			centre, radius = c, r
			continue
		}
		nr := (d + r + radius) / 2
		centre = centre.Add(c.Sub(centre).Mul((nr - radius) / d))
		radius = nr
	}
	return centre, radius
}

// Initialise creates the GPU buffers of every submesh on d. It runs on the
// render thread, usually from a PreRender event.
func (m *Mesh) Initialise(d *device.Device) error {
	var errs []error
	for i, s := range m.submeshes {
		if err := s.initialise(d, fmt.Sprintf("%s.%d", m.name, i)); err != nil {
			errs = append(errs, fmt.Errorf("scene: mesh %q submesh %d: %w", m.name, i, err))
		}
	}
	return errors.Join(errs...)
}

// Ready reports whether every submesh has its GPU buffers.
func (m *Mesh) Ready() bool {
	for _, s := range m.submeshes {
		if !s.Ready() {
			return false
		}
	}
	return true
}

// Cleanup destroys the GPU buffers. The CPU data is kept.
func (m *Mesh) Cleanup() {
	for _, s := range m.submeshes {
		s.cleanup()
	}
}
