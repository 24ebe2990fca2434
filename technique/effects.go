// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"github.com/gogpu/castor/pipeline"
	"github.com/gogpu/castor/resource"
)

// PostEffect transforms the rendered scene. Apply reads src and writes dst;
// both are single-sampled buffers in the HDR format.
type PostEffect interface {
	Name() string
	Apply(c *Context, src, dst *resource.RenderBuffer) error
}

// ToneMapping maps the HDR scene into the target's colour buffer.
type ToneMapping interface {
	Name() string
	Apply(c *Context, src, dst *resource.RenderBuffer) error
}

// Cleaner is implemented by effects that own resources. The technique
// calls Cleanup when it is cleaned up.
type Cleaner interface {
	Cleanup()
}

// Grayscale converts the scene to luminance.
type Grayscale struct{}

var _ PostEffect = Grayscale{}

// Name implements PostEffect.
func (Grayscale) Name() string { return "grayscale" }

// Apply implements PostEffect.
func (Grayscale) Apply(c *Context, src, dst *resource.RenderBuffer) error {
	program, err := c.FullscreenProgram("grayscale", GrayscaleSource())
	if err != nil {
		return err
	}
	p, err := c.FullscreenPipeline(program)
	if err != nil {
		return err
	}
	return c.Fullscreen(FullscreenPass{
		Label:    "grayscale",
		Pipeline: p,
		Target:   dst,
		Sources:  []Source{{"source", src}},
	})
}

// Built-in tone mapping operators.
const (
	LinearToneMapping   = "linear"
	ReinhardToneMapping = "reinhard"
)

// Operator is a built-in tone mapping operator with exposure and gamma
// correction.
type Operator struct {
	name     string
	Exposure float32
	Gamma    float32
	ubo      *ToneMappingUbo
}

var _ ToneMapping = (*Operator)(nil)

// NewOperator returns the built-in operator called name with exposure 1
// and gamma 2.2. It returns nil for an unknown name.
func NewOperator(name string) *Operator {
	switch name {
	case LinearToneMapping, ReinhardToneMapping:
		return &Operator{name: name, Exposure: 1, Gamma: 2.2}
	}
	return nil
}

// Name implements ToneMapping.
func (o *Operator) Name() string { return o.name }

// Apply implements ToneMapping.
func (o *Operator) Apply(c *Context, src, dst *resource.RenderBuffer) error {
	program, err := c.FullscreenProgram("tone_mapping."+o.name, ToneMappingSource(o.name))
	if err != nil {
		return err
	}
	if o.ubo == nil {
		o.ubo = NewToneMappingUbo(c.Device(), "tone_mapping."+o.name)
	}
	p, err := c.FullscreenPipeline(program, pipeline.WithUniform(ToneMappingUniform, o.ubo.Buffer()))
	if err != nil {
		return err
	}
	o.ubo.Set(o.Exposure, o.Gamma)
	if ubo, ok := p.Uniform(ToneMappingUniform); ok && ubo != o.ubo.Buffer() {
		// Pipeline built by another instance of the operator.
		_ = ubo.SetFloat32s(0, o.Exposure, o.Gamma)
	}
	return c.Fullscreen(FullscreenPass{
		Label:    "tone_mapping." + o.name,
		Pipeline: p,
		Target:   dst,
		Sources:  []Source{{"source", src}},
	})
}
