// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/resource"
)

// Target is the presentable output of a technique: a single-sampled colour
// buffer and an optional depth buffer of the same size.
//
// Example:
//
//	target := technique.NewTarget(dev, "main", 1280, 720)
//	if err := target.Initialise(); err != nil {
//		return err
//	}
//	defer target.Destroy()
type Target struct {
	label  string
	width  uint32
	height uint32
	colour *resource.RenderBuffer
	depth  *resource.RenderBuffer
}

// TargetOption configures a Target.
type TargetOption func(*targetOptions)

type targetOptions struct {
	format gputypes.TextureFormat
	depth  gputypes.TextureFormat
}

// WithTargetFormat sets the colour format. The default is RGBA8Unorm.
func WithTargetFormat(f gputypes.TextureFormat) TargetOption {
	return func(o *targetOptions) { o.format = f }
}

// WithTargetDepth adds a depth buffer in format f. Undefined removes it.
func WithTargetDepth(f gputypes.TextureFormat) TargetOption {
	return func(o *targetOptions) { o.depth = f }
}

// NewTarget returns an Uninitialised target of w x h pixels.
func NewTarget(d *device.Device, label string, w, h uint32, opts ...TargetOption) *Target {
	o := targetOptions{format: gputypes.TextureFormatRGBA8Unorm}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Target{
		label:  label,
		width:  w,
		height: h,
		colour: resource.NewRenderBuffer(d, label+".colour", o.format, 1),
	}
	if o.depth != gputypes.TextureFormatUndefined {
		t.depth = resource.NewRenderBuffer(d, label+".depth", o.depth, 1)
	}
	return t
}

// Label returns the target label.
func (t *Target) Label() string { return t.label }

// Size returns the dimensions in pixels.
func (t *Target) Size() (w, h uint32) { return t.width, t.height }

// Format returns the colour format.
func (t *Target) Format() gputypes.TextureFormat { return t.colour.Format() }

// Colour returns the colour buffer.
func (t *Target) Colour() *resource.RenderBuffer { return t.colour }

// Depth returns the depth buffer, or nil.
func (t *Target) Depth() *resource.RenderBuffer { return t.depth }

// Initialise allocates the buffers. On failure nothing stays allocated.
func (t *Target) Initialise() error {
	if t.width == 0 || t.height == 0 {
		return &TargetError{Target: t.label, Reason: "zero size"}
	}
	for _, rb := range t.buffers() {
		if err := initRenderBuffer(rb, t.width, t.height); err != nil {
			t.Cleanup()
			return &TargetError{Target: t.label, Reason: "initialise", Err: err}
		}
	}
	return nil
}

func initRenderBuffer(rb *resource.RenderBuffer, w, h uint32) error {
	if rb.State() == resource.Initialised {
		return nil
	}
	if err := rb.Create(w, h); err != nil {
		return err
	}
	return rb.Initialise()
}

// Ready reports whether the target can be rendered into.
func (t *Target) Ready() bool {
	if t.width == 0 || t.height == 0 {
		return false
	}
	for _, rb := range t.buffers() {
		if rb.State() != resource.Initialised {
			return false
		}
	}
	return true
}

// Resize reallocates the buffers at w x h. Either every buffer is resized
// or the target keeps its previous size.
func (t *Target) Resize(w, h uint32) error {
	if w == 0 || h == 0 {
		return &TargetError{Target: t.label, Reason: "zero size"}
	}
	if !t.Ready() {
		t.width, t.height = w, h
		return nil
	}
	bufs := t.buffers()
	for i, rb := range bufs {
		if err := rb.Resize(w, h); err != nil {
			var rollback error
			for _, done := range bufs[:i] {
				rollback = errors.Join(rollback, done.Resize(t.width, t.height))
			}
			return &TargetError{Target: t.label, Reason: "resize", Err: errors.Join(err, rollback)}
		}
	}
	t.width, t.height = w, h
	return nil
}

func (t *Target) buffers() []*resource.RenderBuffer {
	if t.depth == nil {
		return []*resource.RenderBuffer{t.colour}
	}
	return []*resource.RenderBuffer{t.colour, t.depth}
}

// Cleanup releases the buffers. The target may be initialised again.
func (t *Target) Cleanup() {
	for _, rb := range t.buffers() {
		rb.Cleanup()
	}
}

// Destroy releases the buffers for good.
func (t *Target) Destroy() {
	for _, rb := range t.buffers() {
		rb.Destroy()
	}
}
