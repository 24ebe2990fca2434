// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
	"github.com/gogpu/castor/shader"
)

// Forward shades every object in a single multisampled pass: opaque passes
// first, then blended passes back to front. The pass resolves into a
// single-sampled HDR buffer.
type Forward struct {
	program *shader.Program
	msaa    *resource.RenderBuffer
	hdr     *resource.RenderBuffer
	depth   *resource.RenderBuffer
	samples uint32
	bufs    buffers
}

var _ Strategy = (*Forward)(nil)

// NewForward returns a forward strategy.
func NewForward() *Forward { return &Forward{} }

// Name implements Strategy.
func (f *Forward) Name() string { return "forward" }

// Initialise implements Strategy.
func (f *Forward) Initialise(c *Context, w, h uint32) error {
	f.Cleanup()
	program, err := c.ObjectProgram("forward", ForwardSource())
	if err != nil {
		if program, err = c.Fallback(); err != nil {
			return err
		}
	}
	f.program = program
	f.samples = c.Samples()
	if f.hdr, err = f.bufs.add(c, "forward.hdr", c.HDRFormat(), 1, w, h); err != nil {
		f.Cleanup()
		return err
	}
	if f.samples > 1 {
		if f.msaa, err = f.bufs.add(c, "forward.msaa", c.HDRFormat(), f.samples, w, h); err != nil {
			f.Cleanup()
			return err
		}
	}
	if f.depth, err = f.bufs.add(c, "forward.depth", c.DepthFormat(), f.samples, w, h); err != nil {
		f.Cleanup()
		return err
	}
	return nil
}

// Begin implements Strategy.
func (f *Forward) Begin(c *Context) error {
	if f.hdr == nil {
		return errNotInitialised
	}
	colour := device.ColorAttachment{Texture: f.hdr.Handle(), Clear: true, Color: c.Background()}
	if f.msaa != nil {
		colour.Texture, colour.Resolve = f.msaa.Handle(), f.hdr.Handle()
	}
	return c.Device().BeginPass(device.PassDescriptor{
		Label:  "forward",
		Colors: []device.ColorAttachment{colour},
		Depth:  &device.DepthAttachment{Texture: f.depth.Handle(), Clear: true, Depth: 1},
	})
}

// Render implements Strategy.
func (f *Forward) Render(c *Context, objects []*scene.Geometry) error {
	opaque, blended := splitBlended(objects)
	err := c.DrawObjects(opaque, f.program, Opaque, true, f.samples)
	if err == nil && len(blended) > 0 {
		c.SortBackToFront(blended)
		err = c.DrawObjects(blended, f.program, Blended, true, f.samples)
	}
	return errors.Join(err, c.Device().EndPass())
}

// Output implements Strategy.
func (f *Forward) Output() *resource.RenderBuffer { return f.hdr }

// Cleanup implements Strategy.
func (f *Forward) Cleanup() {
	f.bufs.destroy()
	f.msaa, f.hdr, f.depth = nil, nil, nil
}
