// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/resource"
)

// Uniform block names shared by the built-in programs.
const (
	MatricesUniform = "matrices"
	MorphingUniform = "morphing"
)

// MatrixUbo layout, matching
//
//	struct Matrices {
//	    projection: mat4x4<f32>,
//	    view: mat4x4<f32>,
//	    model: mat4x4<f32>,
//	    normal: mat4x4<f32>,
//	}
const (
	matrixSize       = 64
	projectionOffset = 0
	viewOffset       = projectionOffset + matrixSize
	modelOffset      = viewOffset + matrixSize
	normalOffset     = modelOffset + matrixSize

	// MatrixUboSize is the size of the matrices block in bytes.
	MatrixUboSize = normalOffset + matrixSize
)

// MatrixUbo holds the projection, view, model and normal matrices.
type MatrixUbo struct {
	ubo *resource.UniformBuffer
}

// NewMatrixUbo returns an Uninitialised matrices block with identity
// matrices.
func NewMatrixUbo(d *device.Device, label string) *MatrixUbo {
	m := &MatrixUbo{ubo: resource.NewUniformBuffer(d, label, MatrixUboSize)}
	id := mgl32.Ident4()
	m.SetProjection(id)
	m.SetView(id)
	m.SetModel(id)
	return m
}

// Buffer returns the underlying uniform block.
func (m *MatrixUbo) Buffer() *resource.UniformBuffer { return m.ubo }

// SetProjection stores the projection matrix.
func (m *MatrixUbo) SetProjection(p mgl32.Mat4) { m.set(projectionOffset, p) }

// SetView stores the view matrix.
func (m *MatrixUbo) SetView(v mgl32.Mat4) { m.set(viewOffset, v) }

// SetModel stores the model matrix and its normal matrix.
func (m *MatrixUbo) SetModel(model mgl32.Mat4) {
	m.set(modelOffset, model)
	normal := model.Inv().Transpose()
	if model.Det() == 0 {
		normal = mgl32.Ident4()
	}
	m.set(normalOffset, normal)
}

// Model returns the stored model matrix.
func (m *MatrixUbo) Model() mgl32.Mat4 { return m.get(modelOffset) }

// View returns the stored view matrix.
func (m *MatrixUbo) View() mgl32.Mat4 { return m.get(viewOffset) }

// Projection returns the stored projection matrix.
func (m *MatrixUbo) Projection() mgl32.Mat4 { return m.get(projectionOffset) }

func (m *MatrixUbo) set(offset uint64, v mgl32.Mat4) {
	// The block is sized for every offset used here.
	_ = m.ubo.SetFloat32s(offset, v[:]...)
}

func (m *MatrixUbo) get(offset uint64) mgl32.Mat4 {
	var v mgl32.Mat4
	for i := range v {
		v[i] = m.ubo.Float32(offset + uint64(i)*4)
	}
	return v
}

// MorphingUboSize is the size of the morphing block:
//
//	struct Morphing {
//	    time: f32,
//	}
//
// padded to 16 bytes.
const MorphingUboSize = 16

// MorphingUbo holds the interpolation factor between two keyframes of a
// morphing mesh.
type MorphingUbo struct {
	ubo *resource.UniformBuffer
}

// NewMorphingUbo returns an Uninitialised morphing block.
func NewMorphingUbo(d *device.Device, label string) *MorphingUbo {
	return &MorphingUbo{ubo: resource.NewUniformBuffer(d, label, MorphingUboSize)}
}

// Buffer returns the underlying uniform block.
func (m *MorphingUbo) Buffer() *resource.UniformBuffer { return m.ubo }

// SetTime stores the interpolation factor, clamped to [0, 1].
func (m *MorphingUbo) SetTime(t float32) {
	_ = m.ubo.SetFloat32(0, mgl32.Clamp(t, 0, 1))
}

// Time returns the stored interpolation factor.
func (m *MorphingUbo) Time() float32 { return m.ubo.Float32(0) }
