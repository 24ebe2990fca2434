// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
)

// Strategy turns the visible objects of a frame into draw calls. Forward
// and Deferred are built in; plugins may supply others.
//
// The technique calls Initialise once per target size, then Begin and
// Render once per frame. Begin opens and clears the strategy's first pass.
// Render draws into it, closes every pass it opened and leaves the lit
// scene, single-sampled, in Output.
type Strategy interface {
	Name() string
	Initialise(c *Context, w, h uint32) error
	Begin(c *Context) error
	Render(c *Context, objects []*scene.Geometry) error
	Output() *resource.RenderBuffer
	Cleanup()
}

// buffers tracks the render buffers of a strategy.
type buffers []*resource.RenderBuffer

func (b *buffers) add(c *Context, label string, format gputypes.TextureFormat, samples, w, h uint32) (*resource.RenderBuffer, error) {
	rb, err := c.NewRenderBuffer(label, format, samples, w, h)
	if err != nil {
		return nil, err
	}
	*b = append(*b, rb)
	return rb, nil
}

func (b *buffers) destroy() {
	for _, rb := range *b {
		rb.Destroy()
	}
	*b = (*b)[:0]
}

// splitBlended returns the geometries with opaque and blended passes.
func splitBlended(objects []*scene.Geometry) (opaque, blended []*scene.Geometry) {
	for _, g := range objects {
		hasOpaque, hasBlended := false, false
		for i := range g.Mesh().Submeshes() {
			mat := g.Material(i)
			if mat == nil {
				hasOpaque = true
				continue
			}
			for _, p := range mat.Passes() {
				if p.Blended() {
					hasBlended = true
				} else {
					hasOpaque = true
				}
			}
		}
		if hasOpaque {
			opaque = append(opaque, g)
		}
		if hasBlended {
			blended = append(blended, g)
		}
	}
	return opaque, blended
}

var errNotInitialised = errors.New("technique: strategy not initialised")
