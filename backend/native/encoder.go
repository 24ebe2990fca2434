// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/internal/logging"
)

// retired holds releases that wait for a submission to complete.
type retired struct {
	index   uint64
	release []func()
}

// encoder records one frame: a command encoder with at most one open pass,
// plus the state the device layer bound.
type encoder struct {
	b *Backend

	cmd  hal.CommandEncoder
	pass hal.RenderPassEncoder
	// desc is the open pass, kept across a split so it can resume.
	desc   *device.PassDescriptor
	target passTarget

	blend   device.BlendState
	rast    device.RasteriserState
	depth   device.DepthStencilState
	ms      device.MultisampleState
	program device.Handle
	slots   map[device.Slot]device.Handle

	// applied is what the open pass encoder has seen.
	applied  map[device.Slot]device.Handle
	pipeline hal.RenderPipeline
	bound    []hal.BindGroup
	groups   map[bindGroupKey]hal.BindGroup
	scratch  []byte

	garbage   []func()
	inflight  []retired
	last      uint64
	submitted uint64
	splits    uint64
}

// passTarget is the attachment layout pipelines are built against.
type passTarget struct {
	colors  []gputypes.TextureFormat
	depth   gputypes.TextureFormat
	samples uint32
	width   uint32
	height  uint32
}

func newEncoder(b *Backend) *encoder {
	return &encoder{
		b:       b,
		blend:   device.DefaultBlendState(),
		rast:    device.DefaultRasteriserState(),
		depth:   device.DefaultDepthStencilState(),
		ms:      device.DefaultMultisampleState(),
		slots:   make(map[device.Slot]device.Handle),
		applied: make(map[device.Slot]device.Handle),
		groups:  make(map[bindGroupKey]hal.BindGroup),
	}
}

// release runs fn after the next submission completes.
func (e *encoder) release(fn func()) { e.garbage = append(e.garbage, fn) }

// forget drops every reference to h: slots and cached bind groups.
func (e *encoder) forget(h device.Handle) {
	for s, bound := range e.slots {
		if bound == h {
			delete(e.slots, s)
		}
	}
	if e.program == h {
		e.program = device.InvalidHandle
	}
	for k, g := range e.groups {
		if k.uses(h) {
			delete(e.groups, k)
			e.release(func() { e.b.device.DestroyBindGroup(g) })
		}
	}
}

func (e *encoder) begin() error {
	if e.cmd != nil {
		return nil
	}
	cmd, err := e.b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "castor.frame"})
	if err != nil {
		return err
	}
	if err := cmd.BeginEncoding("castor.frame"); err != nil {
		cmd.Destroy()
		return err
	}
	e.cmd = cmd
	return nil
}

// beginPass opens p. A resumed pass loads every attachment.
func (e *encoder) beginPass(p *device.PassDescriptor, resume bool) error {
	if err := e.begin(); err != nil {
		return err
	}
	desc := &hal.RenderPassDescriptor{Label: p.Label}
	var t passTarget
	for _, c := range p.Colors {
		tex, ok := e.b.textures[c.Texture]
		if !ok {
			return fmt.Errorf("%w: colour attachment %d", ErrUnknownHandle, c.Texture)
		}
		a := hal.RenderPassColorAttachment{
			View:       tex.view,
			LoadOp:     loadOp(c.Clear && !resume),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: c.Color,
		}
		if r, ok := e.b.textures[c.Resolve]; ok {
			a.ResolveTarget = r.view
		}
		desc.ColorAttachments = append(desc.ColorAttachments, a)
		t.colors = append(t.colors, tex.desc.Format)
		t.samples, t.width, t.height = tex.desc.Samples, tex.desc.Width, tex.desc.Height
	}
	if d := p.Depth; d != nil {
		tex, ok := e.b.textures[d.Texture]
		if !ok {
			return fmt.Errorf("%w: depth attachment %d", ErrUnknownHandle, d.Texture)
		}
		a := &hal.RenderPassDepthStencilAttachment{
			View:            tex.view,
			DepthLoadOp:     loadOp(d.Clear && !resume),
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: d.Depth,
		}
		if tex.desc.Format.HasStencil() {
			a.StencilLoadOp = loadOp(d.ClearStencil && !resume)
			a.StencilStoreOp = gputypes.StoreOpStore
			a.StencilClearValue = d.Stencil
		}
		desc.DepthStencilAttachment = a
		t.depth = tex.desc.Format
		if len(p.Colors) == 0 {
			t.samples, t.width, t.height = tex.desc.Samples, tex.desc.Width, tex.desc.Height
		}
	}

	e.pass = e.cmd.BeginRenderPass(desc)
	e.desc = p
	e.target = t
	e.pipeline = nil
	e.bound = e.bound[:0]
	clear(e.applied)
	e.pass.SetViewport(0, 0, float32(t.width), float32(t.height), 0, 1)
	e.pass.SetBlendConstant(&e.blend.Constant)
	e.pass.SetStencilReference(e.depth.StencilReference)
	return nil
}

func (e *encoder) endPass() {
	if e.pass == nil {
		return
	}
	e.pass.End()
	e.pass = nil
}

// flush ends the open pass and submits everything recorded so far.
func (e *encoder) flush() error {
	e.endPass()
	if e.cmd == nil {
		return nil
	}
	cmd := e.cmd
	e.cmd = nil
	cb, err := cmd.EndEncoding()
	if err != nil {
		cmd.Destroy()
		return err
	}
	index, err := e.b.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		e.b.device.FreeCommandBuffer(cb)
		cmd.Destroy()
		return err
	}
	e.submitted++
	e.last = index
	release := append(e.garbage, func() {
		e.b.device.FreeCommandBuffer(cb)
		cmd.Destroy()
	})
	e.garbage = nil
	e.inflight = append(e.inflight, retired{index: index, release: release})
	e.collect(e.b.queue.PollCompleted())
	return nil
}

// write runs a queue write in order with the recorded commands.
func (e *encoder) write(fn func() error) error {
	if e.cmd == nil {
		return fn()
	}
	resume := e.desc
	inPass := e.pass != nil
	if err := e.flush(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if !inPass {
		return nil
	}
	e.splits++
	logging.Logger().Debug("native: pass split for upload", "pass", resume.Label)
	return e.beginPass(resume, true)
}

// collect runs the releases of submissions up to completed.
func (e *encoder) collect(completed uint64) {
	n := 0
	for _, r := range e.inflight {
		if r.index > completed {
			break
		}
		for _, fn := range r.release {
			fn()
		}
		n++
	}
	e.inflight = e.inflight[n:]
}

// abort discards the recording of an abandoned frame.
func (e *encoder) abort() {
	if e.pass != nil {
		e.pass.End()
		e.pass = nil
	}
	if e.cmd != nil {
		e.cmd.DiscardEncoding()
		e.cmd.Destroy()
		e.cmd = nil
	}
	e.desc = nil
	if len(e.garbage) > 0 {
		e.inflight = append(e.inflight, retired{index: e.last, release: e.garbage})
		e.garbage = nil
	}
}

// destroy releases the cached bind groups.
func (e *encoder) destroy() {
	for k, g := range e.groups {
		e.b.device.DestroyBindGroup(g)
		delete(e.groups, k)
	}
}
