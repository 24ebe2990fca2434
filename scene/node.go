// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Node is a transform in the scene graph. Movable objects attached to a
// node follow its world transform.
type Node struct {
	name     string
	graph    *Graph
	parent   *Node
	children []*Node
	objects  []Movable

	position    mgl32.Vec3
	orientation mgl32.Quat
	scale       mgl32.Vec3
	visible     bool

	world mgl32.Mat4
	dirty bool
}

func newNode(g *Graph, name string) *Node {
	return &Node{
		name:        name,
		graph:       g,
		orientation: mgl32.QuatIdent(),
		scale:       mgl32.Vec3{1, 1, 1},
		visible:     true,
		world:       mgl32.Ident4(),
	}
}

// Name returns the node name, unique within its graph.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

// Objects returns the attached movable objects.
func (n *Node) Objects() []Movable { return n.objects }

// Position returns the local translation.
func (n *Node) Position() mgl32.Vec3 { return n.position }

// Orientation returns the local rotation.
func (n *Node) Orientation() mgl32.Quat { return n.orientation }

// Scale returns the local scale.
func (n *Node) Scale() mgl32.Vec3 { return n.scale }

// SetPosition sets the local translation.
func (n *Node) SetPosition(p mgl32.Vec3) {
	n.position = p
	n.invalidate()
}

// Translate moves the node by d in parent space.
func (n *Node) Translate(d mgl32.Vec3) { n.SetPosition(n.position.Add(d)) }

// SetOrientation sets the local rotation.
func (n *Node) SetOrientation(q mgl32.Quat) {
	n.orientation = q.Normalize()
	n.invalidate()
}

// Rotate applies q after the current rotation.
func (n *Node) Rotate(q mgl32.Quat) { n.SetOrientation(q.Mul(n.orientation)) }

// Yaw rotates the node around its local Y axis by angle radians.
func (n *Node) Yaw(angle float32) {
	n.SetOrientation(n.orientation.Mul(mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})))
}

// SetScale sets the local scale.
func (n *Node) SetScale(s mgl32.Vec3) {
	n.scale = s
	n.invalidate()
}

// Visible reports whether the node and all its ancestors are visible.
func (n *Node) Visible() bool {
	for p := n; p != nil; p = p.parent {
		if !p.visible {
			return false
		}
	}
	return true
}

// SetVisible shows or hides the node and its subtree.
func (n *Node) SetVisible(v bool) {
	if n.visible != v {
		n.visible = v
		n.graph.touch()
	}
}

// Local returns the local transform: translation * rotation * scale.
func (n *Node) Local() mgl32.Mat4 {
	return mgl32.Translate3D(n.position.X(), n.position.Y(), n.position.Z()).
		Mul4(n.orientation.Mat4()).
		Mul4(mgl32.Scale3D(n.scale.X(), n.scale.Y(), n.scale.Z()))
}

// World returns the transform from node space to world space.
func (n *Node) World() mgl32.Mat4 {
	if n.dirty {
		n.world = n.Local()
		if n.parent != nil {
			n.world = n.parent.World().Mul4(n.world)
		}
		n.dirty = false
	}
	return n.world
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() mgl32.Vec3 { return n.World().Col(3).Vec3() }

// invalidate marks n and its subtree for world matrix recomputation.
func (n *Node) invalidate() {
	n.dirty = true
	for _, c := range n.children {
		c.invalidate()
	}
	if n.graph != nil {
		n.graph.touch()
	}
}

// AttachTo makes n a child of parent.
func (n *Node) AttachTo(parent *Node) error {
	if parent == nil {
		return fmt.Errorf("%w: nil parent for %q", ErrInvalid, n.name)
	}
	if parent.graph != n.graph {
		return fmt.Errorf("%w: %q and %q", ErrOtherGraph, n.name, parent.name)
	}
	for p := parent; p != nil; p = p.parent {
		if p == n {
			return fmt.Errorf("%w: %q under %q", ErrCycle, n.name, parent.name)
		}
	}
	n.detachFromParent()
	n.parent = parent
	parent.children = append(parent.children, n)
	n.invalidate()
	return nil
}

// Detach removes n from its parent. A detached node is not rendered.
func (n *Node) Detach() {
	n.detachFromParent()
	n.invalidate()
}

func (n *Node) detachFromParent() {
	if n.parent == nil {
		return
	}
	p := n.parent
	if i := slices.Index(p.children, n); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	n.parent = nil
}

// inGraph reports whether n hangs from the graph root.
func (n *Node) inGraph() bool {
	p := n
	for p.parent != nil {
		p = p.parent
	}
	return n.graph != nil && p == n.graph.root
}

// Attach attaches m to n. An object can only be attached to one node.
func (n *Node) Attach(m Movable) error {
	if m == nil {
		return fmt.Errorf("%w: nil object", ErrInvalid)
	}
	if cur := m.Node(); cur != nil {
		if cur == n {
			return nil
		}
		return fmt.Errorf("%w: %q is attached to %q", ErrAttached, m.Name(), cur.name)
	}
	m.setNode(n)
	n.objects = append(n.objects, m)
	n.graph.touch()
	return nil
}

// DetachObject detaches m from n.
func (n *Node) DetachObject(m Movable) error {
	i := slices.Index(n.objects, m)
	if i < 0 {
		return fmt.Errorf("%w: %q from %q", ErrNotAttached, m.Name(), n.name)
	}
	n.objects = slices.Delete(n.objects, i, i+1)
	m.setNode(nil)
	n.graph.touch()
	return nil
}

// Walk calls fn for n and every descendant, parents first. Returning false
// skips the subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}
