// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import "github.com/go-gl/mathgl/mgl32"

// Pass is one rendering pass of a material.
type Pass struct {
	Diffuse  mgl32.Vec3
	Specular mgl32.Vec3
	Emissive float32
	// Shininess is the specular exponent.
	Shininess float32
	// Opacity below one renders the pass with alpha blending.
	Opacity float32
	// TwoSided disables back face culling.
	TwoSided bool
	// Wireframe draws polygon edges only, where the backend supports it.
	Wireframe bool
}

// Blended reports whether the pass needs alpha blending.
func (p *Pass) Blended() bool { return p.Opacity < 1 }

// Material is an ordered list of passes.
type Material struct {
	name   string
	passes []*Pass
}

// NewMaterial returns a material with one opaque white pass.
func NewMaterial(name string) *Material {
	return &Material{name: name, passes: []*Pass{DefaultPass()}}
}

// DefaultPass returns an opaque, single sided white pass.
func DefaultPass() *Pass {
	return &Pass{
		Diffuse:   mgl32.Vec3{1, 1, 1},
		Specular:  mgl32.Vec3{1, 1, 1},
		Shininess: 32,
		Opacity:   1,
	}
}

// Name returns the material name.
func (m *Material) Name() string { return m.name }

// Passes returns the material passes.
func (m *Material) Passes() []*Pass { return m.passes }

// Pass returns pass i, or nil.
func (m *Material) Pass(i int) *Pass {
	if i < 0 || i >= len(m.passes) {
		return nil
	}
	return m.passes[i]
}

// AddPass appends a pass and returns it.
func (m *Material) AddPass(p *Pass) *Pass {
	m.passes = append(m.passes, p)
	return p
}

// Blended reports whether any pass needs alpha blending.
func (m *Material) Blended() bool {
	for _, p := range m.passes {
		if p.Blended() {
			return true
		}
	}
	return false
}
