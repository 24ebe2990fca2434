// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Package errors.
var (
	ErrInvalid     = errors.New("scene: invalid argument")
	ErrDuplicate   = errors.New("scene: name already used")
	ErrNotFound    = errors.New("scene: not found")
	ErrCycle       = errors.New("scene: node would become its own ancestor")
	ErrOtherGraph  = errors.New("scene: node belongs to another graph")
	ErrAttached    = errors.New("scene: object already attached")
	ErrNotAttached = errors.New("scene: object not attached to node")
)

// RootName is the name of the root node of every graph.
const RootName = "root"

// Graph is a scene: a node tree and the objects attached to it.
//
// Graph is not safe for concurrent use. Producer goroutines mutate it
// through frame events so that it only changes between frames.
type Graph struct {
	root       *Node
	nodes      map[string]*Node
	geometries map[string]*Geometry
	lights     map[string]*Light
	cameras    map[string]*Camera

	// Ambient is the ambient light colour.
	Ambient    mgl32.Vec3
	Background mgl32.Vec4

	version uint64
}

// NewGraph returns a graph with only a root node.
func NewGraph() *Graph {
	g := &Graph{
		nodes:      make(map[string]*Node),
		geometries: make(map[string]*Geometry),
		lights:     make(map[string]*Light),
		cameras:    make(map[string]*Camera),
		Ambient:    mgl32.Vec3{0.1, 0.1, 0.1},
		Background: mgl32.Vec4{0, 0, 0, 1},
	}
	g.root = newNode(g, RootName)
	g.nodes[RootName] = g.root
	return g
}

// Version changes every time the graph is modified.
func (g *Graph) Version() uint64 { return g.version }

func (g *Graph) touch() { g.version++ }

// Root returns the root node.
func (g *Graph) Root() *Node { return g.root }

// CreateNode adds a node under parent, or under the root if parent is nil.
func (g *Graph) CreateNode(name string, parent *Node) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty node name", ErrInvalid)
	}
	if _, ok := g.nodes[name]; ok {
		return nil, fmt.Errorf("%w: node %q", ErrDuplicate, name)
	}
	if parent == nil {
		parent = g.root
	}
	n := newNode(g, name)
	if err := n.AttachTo(parent); err != nil {
		return nil, err
	}
	g.nodes[name] = n
	return n, nil
}

// Node returns the node called name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// RemoveNode removes a node and its subtree. Objects attached to them are
// detached but stay registered.
func (g *Graph) RemoveNode(name string) error {
	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("%w: node %q", ErrNotFound, name)
	}
	if n == g.root {
		return fmt.Errorf("%w: the root node cannot be removed", ErrInvalid)
	}
	n.Detach()
	n.Walk(func(c *Node) bool {
		for _, m := range c.objects {
			m.setNode(nil)
		}
		c.objects = nil
		delete(g.nodes, c.name)
		return true
	})
	g.touch()
	return nil
}

// AddGeometry registers geo and attaches it to node, or to the root.
func (g *Graph) AddGeometry(geo *Geometry, node *Node) error {
	if err := register(g, g.geometries, geo.Name(), geo); err != nil {
		return err
	}
	return g.attach(geo, node)
}

// AddLight registers l and attaches it to node, or to the root.
func (g *Graph) AddLight(l *Light, node *Node) error {
	if err := register(g, g.lights, l.Name(), l); err != nil {
		return err
	}
	return g.attach(l, node)
}

// AddCamera registers c and attaches it to node, or to the root.
func (g *Graph) AddCamera(c *Camera, node *Node) error {
	if err := register(g, g.cameras, c.Name(), c); err != nil {
		return err
	}
	return g.attach(c, node)
}

func register[T Movable](g *Graph, m map[string]T, name string, v T) error {
	if name == "" {
		return fmt.Errorf("%w: empty object name", ErrInvalid)
	}
	if _, ok := m[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	m[name] = v
	g.touch()
	return nil
}

func (g *Graph) attach(m Movable, node *Node) error {
	if node == nil {
		node = g.root
	}
	if node.graph != g {
		return fmt.Errorf("%w: %q", ErrOtherGraph, node.name)
	}
	return node.Attach(m)
}

// Geometry returns the geometry called name.
func (g *Graph) Geometry(name string) (*Geometry, bool) {
	geo, ok := g.geometries[name]
	return geo, ok
}

// Light returns the light called name.
func (g *Graph) Light(name string) (*Light, bool) {
	l, ok := g.lights[name]
	return l, ok
}

// Camera returns the camera called name.
func (g *Graph) Camera(name string) (*Camera, bool) {
	c, ok := g.cameras[name]
	return c, ok
}

// RemoveGeometry detaches and unregisters the geometry called name.
func (g *Graph) RemoveGeometry(name string) error {
	geo, ok := g.geometries[name]
	if !ok {
		return fmt.Errorf("%w: geometry %q", ErrNotFound, name)
	}
	if n := geo.Node(); n != nil {
		if err := n.DetachObject(geo); err != nil {
			return err
		}
	}
	delete(g.geometries, name)
	g.touch()
	return nil
}

// Geometries returns every registered geometry sorted by name.
func (g *Graph) Geometries() []*Geometry { return sorted(g.geometries) }

// Lights returns the lights attached to the graph, sorted by name.
func (g *Graph) Lights() []*Light {
	out := make([]*Light, 0, len(g.lights))
	for _, l := range sorted(g.lights) {
		if n := l.Node(); n != nil && n.inGraph() {
			out = append(out, l)
		}
	}
	return out
}

// Meshes returns the distinct meshes of every geometry.
func (g *Graph) Meshes() []*Mesh {
	seen := make(map[*Mesh]bool)
	var out []*Mesh
	for _, geo := range g.Geometries() {
		if m := geo.Mesh(); m != nil && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Visible returns the visible geometries sorted by name. With a camera,
// geometries whose bounding sphere lies outside its frustum are culled.
func (g *Graph) Visible(cam *Camera) []*Geometry {
	var frustum *Frustum
	if cam != nil {
		f := cam.Frustum()
		frustum = &f
	}
	var out []*Geometry
	for _, geo := range g.Geometries() {
		if !geo.Visible() || geo.Mesh() == nil {
			continue
		}
		if frustum != nil {
			world := geo.World()
			c, r := geo.Mesh().Bounds()
			centre := world.Mul4x1(c.Vec4(1)).Vec3()
			if !frustum.ContainsSphere(centre, r*maxScale(world)) {
				continue
			}
		}
		out = append(out, geo)
	}
	return out
}

func sorted[T Movable](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
