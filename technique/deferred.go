// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/pipeline"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
	"github.com/gogpu/castor/shader"
)

// G-buffer texture bindings of the lighting program.
const (
	gbufferAlbedo   = "gbuffer_albedo"
	gbufferNormal   = "gbuffer_normal"
	gbufferPosition = "gbuffer_position"
)

// Deferred renders opaque objects into a G-buffer, lights it in one
// fullscreen pass and draws blended objects forward on top, reusing the
// G-buffer depth. It needs float render targets and runs single-sampled.
type Deferred struct {
	geometry *shader.Program
	lighting *shader.Program
	forward  *shader.Program
	lights   *LightsUbo

	albedo   *resource.RenderBuffer
	normal   *resource.RenderBuffer
	position *resource.RenderBuffer
	depth    *resource.RenderBuffer
	hdr      *resource.RenderBuffer
	bufs     buffers
}

var _ Strategy = (*Deferred)(nil)

// NewDeferred returns a deferred strategy.
func NewDeferred() *Deferred { return &Deferred{} }

// Name implements Strategy.
func (d *Deferred) Name() string { return "deferred" }

// Initialise implements Strategy.
func (d *Deferred) Initialise(c *Context, w, h uint32) error {
	d.Cleanup()
	if !c.Device().Info().Features.Has(device.FeatureFloatTargets) {
		return fmt.Errorf("%w: deferred shading needs float render targets", ErrUnsupported)
	}
	var err error
	if d.geometry, err = c.ObjectProgram("deferred.geometry", GBufferSource()); err != nil {
		return err
	}
	if d.lighting, err = c.FullscreenProgram("deferred.lighting", LightingSource()); err != nil {
		return err
	}
	if d.forward, err = c.ObjectProgram("forward", ForwardSource()); err != nil {
		return err
	}
	if d.lights == nil {
		d.lights = NewLightsUbo(c.Device(), "deferred.lights")
	}

	targets := []struct {
		rb     **resource.RenderBuffer
		label  string
		format gputypes.TextureFormat
	}{
		{&d.albedo, "deferred.albedo", gputypes.TextureFormatRGBA8Unorm},
		{&d.normal, "deferred.normal", gputypes.TextureFormatRGBA16Float},
		{&d.position, "deferred.position", gputypes.TextureFormatRGBA16Float},
		{&d.depth, "deferred.depth", c.DepthFormat()},
		{&d.hdr, "deferred.hdr", c.HDRFormat()},
	}
	for _, t := range targets {
		if *t.rb, err = d.bufs.add(c, t.label, t.format, 1, w, h); err != nil {
			d.Cleanup()
			return err
		}
	}
	return nil
}

// Begin implements Strategy. It opens the cleared G-buffer pass.
func (d *Deferred) Begin(c *Context) error {
	if d.hdr == nil {
		return errNotInitialised
	}
	return c.Device().BeginPass(device.PassDescriptor{
		Label: "deferred.geometry",
		Colors: []device.ColorAttachment{
			{Texture: d.albedo.Handle(), Clear: true},
			{Texture: d.normal.Handle(), Clear: true},
			{Texture: d.position.Handle(), Clear: true},
		},
		Depth: &device.DepthAttachment{Texture: d.depth.Handle(), Clear: true, Depth: 1},
	})
}

// Render implements Strategy.
func (d *Deferred) Render(c *Context, objects []*scene.Geometry) error {
	opaque, blended := splitBlended(objects)
	err := c.DrawObjects(opaque, d.geometry, Opaque, true, 1)
	if err = errors.Join(err, c.Device().EndPass()); err != nil {
		return err
	}

	light, err := c.FullscreenPipeline(d.lighting, pipeline.WithUniform(LightsUniform, d.lights.Buffer()))
	if err != nil {
		return err
	}
	c.SetLights(d.lights)
	err = c.Fullscreen(FullscreenPass{
		Label:    "deferred.lighting",
		Pipeline: light,
		Target:   d.hdr,
		Clear:    c.Background(),
		Sources: []Source{
			{gbufferAlbedo, d.albedo},
			{gbufferNormal, d.normal},
			{gbufferPosition, d.position},
		},
	})
	if err != nil || len(blended) == 0 {
		return err
	}

	err = c.Device().BeginPass(device.PassDescriptor{
		Label:  "deferred.blended",
		Colors: []device.ColorAttachment{{Texture: d.hdr.Handle()}},
		Depth:  &device.DepthAttachment{Texture: d.depth.Handle()},
	})
	if err != nil {
		return err
	}
	c.SortBackToFront(blended)
	err = c.DrawObjects(blended, d.forward, Blended, true, 1)
	return errors.Join(err, c.Device().EndPass())
}

// Output implements Strategy.
func (d *Deferred) Output() *resource.RenderBuffer { return d.hdr }

// Cleanup implements Strategy. The lights block belongs to the lighting
// pipeline and is released with the pipeline cache.
func (d *Deferred) Cleanup() {
	d.bufs.destroy()
	d.albedo, d.normal, d.position, d.depth, d.hdr = nil, nil, nil, nil, nil
}
