// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scene holds the renderer-agnostic scene description consumed by
// render techniques: a node tree with mathgl transforms, geometries
// instancing meshes, materials, lights and cameras.
//
// Movable objects are attached to nodes and follow their world transform:
//
//	g := scene.NewGraph()
//	node, _ := g.CreateNode("box", nil)
//	node.SetPosition(mgl32.Vec3{0, 1, 0})
//	box := scene.NewGeometry("box", scene.NewMesh("cube", scene.Cube(1, scene.NewMaterial("white"))))
//	g.AddGeometry(box, node)
//
// Meshes keep their vertex data on the CPU; Mesh.Initialise creates the GPU
// buffers and must run on the render thread.
package scene
