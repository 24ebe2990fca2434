// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
)

// Uniform block names of the built-in programs.
const (
	MaterialUniform    = "material"
	LightsUniform      = "lights"
	ToneMappingUniform = "tone_mapping"
)

// MaterialUboSize is the size of the material block.
const MaterialUboSize = 48

// MaterialUbo holds the colours of one material pass.
type MaterialUbo struct {
	ubo  *resource.UniformBuffer
	last *scene.Pass
}

// NewMaterialUbo returns an Uninitialised material block.
func NewMaterialUbo(d *device.Device, label string) *MaterialUbo {
	return &MaterialUbo{ubo: resource.NewUniformBuffer(d, label, MaterialUboSize)}
}

// Buffer returns the underlying uniform block.
func (m *MaterialUbo) Buffer() *resource.UniformBuffer { return m.ubo }

// Set stores the colours of p. Setting the same pass again is a no-op.
func (m *MaterialUbo) Set(p *scene.Pass) {
	if p == m.last && !m.ubo.Dirty() {
		return
	}
	m.last = p
	_ = m.ubo.SetFloat32s(0,
		p.Diffuse.X(), p.Diffuse.Y(), p.Diffuse.Z(), p.Opacity,
		p.Specular.X(), p.Specular.Y(), p.Specular.Z(), p.Shininess,
		p.Emissive, 0, 0, 0)
}

// MaxLights is the number of lights the built-in programs evaluate.
const MaxLights = 8

const (
	lightStride   = 64
	lightsHeader  = 48
	lightsCountAt = 32

	// LightsUboSize is the size of the lights block.
	LightsUboSize = lightsHeader + MaxLights*lightStride
)

// LightsUbo holds the ambient colour, the eye position and up to MaxLights
// lights.
type LightsUbo struct {
	ubo   *resource.UniformBuffer
	frame uint64
}

// NewLightsUbo returns an Uninitialised lights block.
func NewLightsUbo(d *device.Device, label string) *LightsUbo {
	return &LightsUbo{ubo: resource.NewUniformBuffer(d, label, LightsUboSize)}
}

// Buffer returns the underlying uniform block.
func (l *LightsUbo) Buffer() *resource.UniformBuffer { return l.ubo }

// Set stores the lights of frame. Later calls for the same frame are
// no-ops. Lights beyond MaxLights are ignored.
func (l *LightsUbo) Set(frame uint64, ambient, eye mgl32.Vec3, lights []*scene.Light) {
	if l.frame == frame && frame != 0 {
		return
	}
	l.frame = frame
	n := min(len(lights), MaxLights)
	_ = l.ubo.SetFloat32s(0, ambient.X(), ambient.Y(), ambient.Z(), 1, eye.X(), eye.Y(), eye.Z(), 1)
	_ = l.ubo.SetUint32(lightsCountAt, uint32(n))
	for i, light := range lights[:n] {
		pos, dir := light.Position(), light.Direction()
		_ = l.ubo.SetFloat32s(uint64(lightsHeader+i*lightStride),
			pos.X(), pos.Y(), pos.Z(), float32(light.Kind),
			dir.X(), dir.Y(), dir.Z(), light.Range,
			light.Colour.X(), light.Colour.Y(), light.Colour.Z(), light.Intensity,
			float32(math.Cos(float64(light.Cutoff))), 0, 0, 0)
	}
}

// Count returns the stored number of lights.
func (l *LightsUbo) Count() uint32 {
	return binary.LittleEndian.Uint32(l.ubo.Bytes()[lightsCountAt:])
}

// ToneMappingUboSize is the size of the tone mapping block.
const ToneMappingUboSize = 16

// ToneMappingUbo holds the exposure and gamma of a tone mapping operator.
type ToneMappingUbo struct {
	ubo *resource.UniformBuffer
}

// NewToneMappingUbo returns an Uninitialised block with exposure 1 and
// gamma 2.2.
func NewToneMappingUbo(d *device.Device, label string) *ToneMappingUbo {
	t := &ToneMappingUbo{ubo: resource.NewUniformBuffer(d, label, ToneMappingUboSize)}
	t.Set(1, 2.2)
	return t
}

// Buffer returns the underlying uniform block.
func (t *ToneMappingUbo) Buffer() *resource.UniformBuffer { return t.ubo }

// Set stores exposure and gamma.
func (t *ToneMappingUbo) Set(exposure, gamma float32) {
	_ = t.ubo.SetFloat32s(0, exposure, gamma)
}

// Exposure returns the stored exposure.
func (t *ToneMappingUbo) Exposure() float32 { return t.ubo.Float32(0) }

// Gamma returns the stored gamma.
func (t *ToneMappingUbo) Gamma() float32 { return t.ubo.Float32(4) }
