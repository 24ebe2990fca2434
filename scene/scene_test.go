// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/recording"
)

// =============================================================================
// Nodes
// =============================================================================

func TestWorldTransformPropagates(t *testing.T) {
	g := NewGraph()
	parent, err := g.CreateNode("parent", nil)
	if err != nil {
		t.Fatal(err)
	}
	child, err := g.CreateNode("child", parent)
	if err != nil {
		t.Fatal(err)
	}
	parent.SetPosition(mgl32.Vec3{1, 0, 0})
	child.SetPosition(mgl32.Vec3{0, 2, 0})
	if got := child.WorldPosition(); !got.ApproxEqual(mgl32.Vec3{1, 2, 0}) {
		t.Errorf("child world = %v", got)
	}

	parent.Translate(mgl32.Vec3{0, 0, 3})
	if got := child.WorldPosition(); !got.ApproxEqual(mgl32.Vec3{1, 2, 3}) {
		t.Errorf("after parent move: %v", got)
	}

	parent.SetScale(mgl32.Vec3{2, 2, 2})
	if got := child.WorldPosition(); !got.ApproxEqual(mgl32.Vec3{1, 4, 3}) {
		t.Errorf("after parent scale: %v", got)
	}

	parent.Yaw(mgl32.DegToRad(90))
	// Y is unaffected by a yaw; the child sits on the parent's Y axis.
	if got := child.WorldPosition(); !got.ApproxEqualThreshold(mgl32.Vec3{1, 4, 3}, 1e-5) {
		t.Errorf("after parent yaw: %v", got)
	}
}

func TestAttachToRejectsCycles(t *testing.T) {
	g := NewGraph()
	a, _ := g.CreateNode("a", nil)
	b, _ := g.CreateNode("b", a)
	if err := a.AttachTo(b); !errors.Is(err, ErrCycle) {
		t.Errorf("AttachTo(descendant) = %v", err)
	}
	if err := a.AttachTo(a); !errors.Is(err, ErrCycle) {
		t.Errorf("AttachTo(self) = %v", err)
	}
	other := NewGraph()
	if err := a.AttachTo(other.Root()); !errors.Is(err, ErrOtherGraph) {
		t.Errorf("AttachTo(other graph) = %v", err)
	}
	if _, err := g.CreateNode("a", nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate node = %v", err)
	}
}

func TestReparent(t *testing.T) {
	g := NewGraph()
	a, _ := g.CreateNode("a", nil)
	b, _ := g.CreateNode("b", nil)
	c, _ := g.CreateNode("c", a)
	a.SetPosition(mgl32.Vec3{5, 0, 0})
	if err := c.AttachTo(b); err != nil {
		t.Fatal(err)
	}
	if len(a.Children()) != 0 || c.Parent() != b {
		t.Error("c not moved to b")
	}
	if got := c.WorldPosition(); !got.ApproxEqual(mgl32.Vec3{}) {
		t.Errorf("world after reparent = %v", got)
	}
}

// =============================================================================
// Movable objects
// =============================================================================

func TestAttachDetachObjects(t *testing.T) {
	g := NewGraph()
	n, _ := g.CreateNode("n", nil)
	m, _ := g.CreateNode("m", nil)
	geo := NewGeometry("box", NewMesh("cube", Cube(1, nil)))

	if err := g.AddGeometry(geo, n); err != nil {
		t.Fatal(err)
	}
	if geo.Node() != n || len(n.Objects()) != 1 {
		t.Fatal("geometry not attached")
	}
	if err := m.Attach(geo); !errors.Is(err, ErrAttached) {
		t.Errorf("second attach = %v", err)
	}
	if err := m.DetachObject(geo); !errors.Is(err, ErrNotAttached) {
		t.Errorf("detach from wrong node = %v", err)
	}
	if err := n.DetachObject(geo); err != nil {
		t.Fatal(err)
	}
	if geo.Node() != nil || geo.Visible() {
		t.Error("detached geometry should not be visible")
	}
	if err := m.Attach(geo); err != nil {
		t.Errorf("attach after detach = %v", err)
	}
	if err := g.AddGeometry(NewGeometry("box", nil), nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate geometry = %v", err)
	}
}

func TestRemoveNodeDetachesSubtree(t *testing.T) {
	g := NewGraph()
	a, _ := g.CreateNode("a", nil)
	b, _ := g.CreateNode("b", a)
	geo := NewGeometry("box", NewMesh("cube", Cube(1, nil)))
	light := NewLight("sun", LightDirectional)
	if err := g.AddGeometry(geo, b); err != nil {
		t.Fatal(err)
	}
	if err := g.AddLight(light, a); err != nil {
		t.Fatal(err)
	}
	if err := g.RemoveNode("a"); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Node("b"); ok {
		t.Error("descendant b still registered")
	}
	if geo.Node() != nil || light.Node() != nil {
		t.Error("objects still attached")
	}
	if _, ok := g.Geometry("box"); !ok {
		t.Error("geometry unregistered")
	}
	if len(g.Lights()) != 0 {
		t.Error("detached light listed")
	}
	if err := g.RemoveNode(RootName); !errors.Is(err, ErrInvalid) {
		t.Errorf("RemoveNode(root) = %v", err)
	}
}

func TestVisibleHonoursFlagsAndFrustum(t *testing.T) {
	g := NewGraph()
	mesh := NewMesh("cube", Cube(1, nil))
	front, _ := g.CreateNode("front", nil)
	front.SetPosition(mgl32.Vec3{0, 0, -5})
	behind, _ := g.CreateNode("behind", nil)
	behind.SetPosition(mgl32.Vec3{0, 0, 5})
	hidden, _ := g.CreateNode("hidden", nil)
	hidden.SetPosition(mgl32.Vec3{0, 0, -5})
	hidden.SetVisible(false)

	for name, n := range map[string]*Node{"a": front, "b": behind, "c": hidden} {
		if err := g.AddGeometry(NewGeometry(name, mesh), n); err != nil {
			t.Fatal(err)
		}
	}
	if got := g.Visible(nil); len(got) != 2 || got[0].Name() != "a" || got[1].Name() != "b" {
		t.Errorf("Visible(nil) = %d objects", len(got))
	}

	cam := NewCamera("cam", 640, 480)
	if err := g.AddCamera(cam, nil); err != nil {
		t.Fatal(err)
	}
	got := g.Visible(cam)
	if len(got) != 1 || got[0].Name() != "a" {
		names := make([]string, len(got))
		for i, geo := range got {
			names[i] = geo.Name()
		}
		t.Errorf("Visible(cam) = %v, want [a]", names)
	}
}

func TestCameraDepthRange(t *testing.T) {
	cam := NewCamera("cam", 640, 480)
	proj := cam.Projection()
	depth := func(z float32) float32 {
		clip := proj.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip.Z() / clip.W()
	}
	tests := []struct {
		name string
		z    float32
		want float32
	}{
		{"near", -cam.Near, 0},
		{"far", -cam.Far, 1},
	}
	for _, tt := range tests {
		if got := depth(tt.z); mgl32.Abs(got-tt.want) > 1e-4 {
			t.Errorf("%s depth = %v, want %v", tt.name, got, tt.want)
		}
	}
	if got := depth(-1.5 * cam.Near); got <= 0 || got >= 1 {
		t.Errorf("depth just past near = %v, want inside (0, 1)", got)
	}

	f := cam.Frustum()
	if !f.ContainsSphere(mgl32.Vec3{0, 0, -1.5 * cam.Near}, 0.01) {
		t.Error("sphere just past the near plane culled")
	}
	if f.ContainsSphere(mgl32.Vec3{0, 0, -cam.Near / 4}, 0.01) {
		t.Error("sphere in front of the near plane kept")
	}
}

func TestVersionChanges(t *testing.T) {
	g := NewGraph()
	v := g.Version()
	n, _ := g.CreateNode("n", nil)
	if g.Version() == v {
		t.Error("CreateNode did not change the version")
	}
	v = g.Version()
	n.SetPosition(mgl32.Vec3{1, 1, 1})
	if g.Version() == v {
		t.Error("SetPosition did not change the version")
	}
}

func TestLightDirection(t *testing.T) {
	g := NewGraph()
	n, _ := g.CreateNode("sun", nil)
	l := NewLight("sun", LightDirectional)
	if err := g.AddLight(l, n); err != nil {
		t.Fatal(err)
	}
	if got := l.Direction(); !got.ApproxEqual(mgl32.Vec3{0, 0, -1}) {
		t.Errorf("Direction() = %v", got)
	}
	n.Yaw(mgl32.DegToRad(90))
	// Rotation leaves float noise near zero, so compare absolutely.
	if got := l.Direction(); got.Sub(mgl32.Vec3{-1, 0, 0}).Len() > 1e-5 {
		t.Errorf("Direction() after yaw = %v", got)
	}
}

// =============================================================================
// Meshes and materials
// =============================================================================

func TestCubeGeometry(t *testing.T) {
	c := Cube(2, nil)
	if len(c.Vertices) != 24 || len(c.Indices) != 36 {
		t.Fatalf("cube has %d vertices %d indices", len(c.Vertices), len(c.Indices))
	}
	centre, r := c.Bounds()
	if !centre.ApproxEqual(mgl32.Vec3{}) || mgl32.Abs(r-mgl32.Vec3{1, 1, 1}.Len()) > 1e-5 {
		t.Errorf("bounds = %v %v", centre, r)
	}
	if stride := VertexDeclaration().Stride(); stride != 32 {
		t.Errorf("stride = %d", stride)
	}
}

func TestMeshInitialise(t *testing.T) {
	rec := recording.NewRecorder()
	d := device.New(rec)
	mesh := NewMesh("cube", Cube(1, nil), Plane(4, nil))
	if mesh.Ready() {
		t.Fatal("Ready before Initialise")
	}
	if err := mesh.Initialise(d); err != nil {
		t.Fatal(err)
	}
	if !mesh.Ready() || rec.Live() != 4 {
		t.Fatalf("ready %v live %d", mesh.Ready(), rec.Live())
	}
	s := mesh.Submeshes()[0]
	call := s.DrawCall()
	if call.IndexCount != 36 || call.IndexFormat != gputypes.IndexFormatUint16 {
		t.Errorf("draw call = %+v", call)
	}
	if s.VertexBuffer().Count() != 24 {
		t.Errorf("vertex count = %d", s.VertexBuffer().Count())
	}
	// A second Initialise keeps the buffers.
	if err := mesh.Initialise(d); err != nil || rec.Live() != 4 {
		t.Errorf("re-initialise: %v, live %d", err, rec.Live())
	}
	mesh.Cleanup()
	if rec.Live() != 0 || mesh.Ready() {
		t.Errorf("after Cleanup: live %d", rec.Live())
	}
}

func TestMaterialBlending(t *testing.T) {
	m := NewMaterial("glass")
	if m.Blended() {
		t.Error("default material is blended")
	}
	p := DefaultPass()
	p.Opacity = 0.5
	m.AddPass(p)
	if !m.Blended() || m.Pass(1) != p || m.Pass(2) != nil {
		t.Error("pass bookkeeping")
	}

	geo := NewGeometry("g", NewMesh("m", Plane(1, m)))
	if geo.Material(0) != m {
		t.Error("submesh material not used")
	}
	other := NewMaterial("other")
	geo.SetMaterial(0, other)
	if geo.Material(0) != other {
		t.Error("override ignored")
	}
}
