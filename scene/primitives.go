// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import "github.com/go-gl/mathgl/mgl32"

// Cube returns a cube of the given edge length centred on the origin, with
// per-face normals.
func Cube(size float32, material *Material) *Submesh {
	h := size / 2
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}
	s := &Submesh{Material: material}
	for _, f := range faces {
		base := uint32(len(s.Vertices))
		centre := f.normal.Mul(h)
		for _, c := range [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := centre.Add(f.u.Mul(c[0] * h)).Add(f.v.Mul(c[1] * h))
			s.Vertices = append(s.Vertices, Vertex{
				Position: p,
				Normal:   f.normal,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		s.Indices = append(s.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return s
}

// Plane returns a square in the XZ plane facing +Y.
func Plane(size float32, material *Material) *Submesh {
	h := size / 2
	up := mgl32.Vec3{0, 1, 0}
	return &Submesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-h, 0, h}, Normal: up, UV: mgl32.Vec2{0, 1}},
			{Position: mgl32.Vec3{h, 0, h}, Normal: up, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{h, 0, -h}, Normal: up, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-h, 0, -h}, Normal: up, UV: mgl32.Vec2{0, 0}},
		},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
		Material: material,
	}
}
