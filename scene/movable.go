// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Movable is an object that can be attached to a Node.
type Movable interface {
	Name() string
	// Node returns the node the object is attached to, or nil.
	Node() *Node
	setNode(*Node)
}

type movable struct {
	name string
	node *Node
}

func (m *movable) Name() string    { return m.name }
func (m *movable) Node() *Node     { return m.node }
func (m *movable) setNode(n *Node) { m.node = n }

// World returns the world transform of the attached node, or identity.
func (m *movable) World() mgl32.Mat4 {
	if m.node == nil {
		return mgl32.Ident4()
	}
	return m.node.World()
}

// Geometry is a renderable instance of a mesh.
type Geometry struct {
	movable
	mesh *Mesh
	// materials overrides submesh materials by index.
	materials map[int]*Material
	visible   bool
	// CastShadows is kept for techniques with shadow passes.
	CastShadows bool
}

// NewGeometry returns a visible instance of mesh.
func NewGeometry(name string, mesh *Mesh) *Geometry {
	return &Geometry{movable: movable{name: name}, mesh: mesh, visible: true}
}

// Mesh returns the instanced mesh.
func (g *Geometry) Mesh() *Mesh { return g.mesh }

// SetMaterial overrides the material of submesh i.
func (g *Geometry) SetMaterial(i int, m *Material) {
	if g.materials == nil {
		g.materials = make(map[int]*Material)
	}
	g.materials[i] = m
}

// Material returns the material used for submesh i.
func (g *Geometry) Material(i int) *Material {
	if m, ok := g.materials[i]; ok {
		return m
	}
	if g.mesh != nil && i < len(g.mesh.submeshes) {
		return g.mesh.submeshes[i].Material
	}
	return nil
}

// Visible reports whether the geometry should be drawn.
func (g *Geometry) Visible() bool {
	return g.visible && g.node != nil && g.node.Visible() && g.node.inGraph()
}

// SetVisible shows or hides the geometry.
func (g *Geometry) SetVisible(v bool) { g.visible = v }

// LightKind is the type of a light source.
type LightKind uint8

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

func (k LightKind) String() string {
	switch k {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	}
	return "unknown"
}

// Light is a light source. Directional lights shine along the node's -Z
// axis; point and spot lights sit at the node origin.
type Light struct {
	movable
	Kind      LightKind
	Colour    mgl32.Vec3
	Intensity float32
	// Range is the attenuation distance of point and spot lights.
	Range float32
	// Cutoff is the half angle of a spot light cone, in radians.
	Cutoff float32
}

// NewLight returns a white light of kind.
func NewLight(name string, kind LightKind) *Light {
	return &Light{
		movable:   movable{name: name},
		Kind:      kind,
		Colour:    mgl32.Vec3{1, 1, 1},
		Intensity: 1,
		Range:     10,
		Cutoff:    mgl32.DegToRad(30),
	}
}

// Direction returns the world direction the light points to.
func (l *Light) Direction() mgl32.Vec3 {
	return l.World().Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()
}

// Position returns the world position of the light.
func (l *Light) Position() mgl32.Vec3 { return l.World().Col(3).Vec3() }

// Camera is a perspective viewpoint looking along its node's -Z axis.
type Camera struct {
	movable
	FOV    float32 // vertical, in degrees
	Aspect float32
	Near   float32
	Far    float32
}

// NewCamera returns a 60 degree camera for a width x height viewport.
func NewCamera(name string, width, height uint32) *Camera {
	c := &Camera{movable: movable{name: name}, FOV: 60, Near: 0.1, Far: 1000}
	c.Resize(width, height)
	return c
}

// Resize updates the aspect ratio.
func (c *Camera) Resize(width, height uint32) {
	if height == 0 {
		c.Aspect = 1
		return
	}
	c.Aspect = float32(width) / float32(height)
}

// depthRemap maps clip space depth from the OpenGL range [-w, w] to the
// WebGPU range [0, w].
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection returns the projection matrix. Depth is 0 at Near and 1 at Far.
func (c *Camera) Projection() mgl32.Mat4 {
	return depthRemap.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far))
}

// View returns the world-to-camera matrix.
func (c *Camera) View() mgl32.Mat4 { return c.World().Inv() }

// Frustum returns the view frustum in world space.
func (c *Camera) Frustum() Frustum { return NewFrustum(c.Projection().Mul4(c.View())) }

// Frustum is a view volume as six inward-facing planes (a, b, c, d) with
// a*x + b*y + c*z + d >= 0 inside.
type Frustum [6]mgl32.Vec4

// NewFrustum extracts the planes of a view-projection matrix whose clip
// depth range is [0, w].
func NewFrustum(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)
	f := Frustum{
		r3.Add(r0), r3.Sub(r0), // left, right
		r3.Add(r1), r3.Sub(r1), // bottom, top
		r2, r3.Sub(r2), // near, far
	}
	for i, p := range f {
		l := p.Vec3().Len()
		if l > 0 {
			f[i] = p.Mul(1 / l)
		}
	}
	return f
}

// ContainsSphere reports whether a sphere intersects the frustum.
func (f Frustum) ContainsSphere(center mgl32.Vec3, radius float32) bool {
	for _, p := range f {
		if p.Vec3().Dot(center)+p.W() < -radius {
			return false
		}
	}
	return true
}

// maxScale returns the largest axis scale of m.
func maxScale(m mgl32.Mat4) float32 {
	s := max(m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len())
	if math.IsNaN(float64(s)) {
		return 1
	}
	return s
}
