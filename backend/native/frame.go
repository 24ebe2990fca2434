// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor/device"
)

// BindState implements device.Backend. States are baked into pipelines at
// draw time; only the blend constant and the stencil reference are dynamic.
func (b *Backend) BindState(s device.State) error {
	e := b.enc
	switch s := s.(type) {
	case device.BlendState:
		e.blend = s
		if e.pass != nil {
			e.pass.SetBlendConstant(&e.blend.Constant)
		}
	case device.RasteriserState:
		if s.Wireframe {
			return fmt.Errorf("native: wireframe rasterisation is not available")
		}
		e.rast = s
	case device.DepthStencilState:
		e.depth = s
		if e.pass != nil {
			e.pass.SetStencilReference(s.StencilReference)
		}
	case device.MultisampleState:
		e.ms = s
	default:
		return fmt.Errorf("native: unknown state %T", s)
	}
	return nil
}

// BindProgram implements device.Backend.
func (b *Backend) BindProgram(h device.Handle) error {
	if _, ok := b.programs[h]; !ok {
		return fmt.Errorf("%w: program %d", ErrUnknownHandle, h)
	}
	b.enc.program = h
	return nil
}

// BindResource implements device.Backend.
func (b *Backend) BindResource(slot device.Slot, h device.Handle) error {
	if !h.IsValid() {
		delete(b.enc.slots, slot)
		return nil
	}
	if !b.known(h) {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	b.enc.slots[slot] = h
	return nil
}

func (b *Backend) known(h device.Handle) bool {
	if _, ok := b.buffers[h]; ok {
		return true
	}
	if _, ok := b.textures[h]; ok {
		return true
	}
	_, ok := b.samplers[h]
	return ok
}

// BeginPass implements device.Backend.
func (b *Backend) BeginPass(p *device.PassDescriptor) error {
	if b.closed {
		return ErrClosed
	}
	if b.enc.pass != nil {
		return fmt.Errorf("native: pass %q already open", b.enc.desc.Label)
	}
	return b.enc.beginPass(p, false)
}

// EndPass implements device.Backend.
func (b *Backend) EndPass() error {
	if b.enc.pass == nil {
		return ErrNoPass
	}
	b.enc.endPass()
	b.enc.desc = nil
	return nil
}

// Draw implements device.Backend. The render pipeline for the bound program,
// states and attachments is created on first use.
func (b *Backend) Draw(call device.DrawCall) error {
	e := b.enc
	if e.pass == nil {
		return ErrNoPass
	}
	p, ok := b.programs[e.program]
	if !ok {
		return fmt.Errorf("%w: program %d", ErrUnknownHandle, e.program)
	}
	pl, err := b.pipelines.getOrCreate(e.program, e.pipelineHash(), func() (hal.RenderPipeline, error) {
		return b.createPipeline(p)
	})
	if err != nil {
		return err
	}
	if pl != e.pipeline {
		e.pass.SetPipeline(pl)
		e.pipeline = pl
		e.bound = e.bound[:0]
	}

	for g := range p.bindings {
		bg, err := b.bindGroup(e.program, p, g)
		if err != nil {
			return err
		}
		for len(e.bound) <= g {
			e.bound = append(e.bound, nil)
		}
		if e.bound[g] != bg {
			e.pass.SetBindGroup(uint32(g), bg, nil)
			e.bound[g] = bg
		}
	}

	for i := range p.desc.VertexLayout {
		slot := device.VertexSlot(uint32(i))
		buf, h, err := b.slotBuffer(slot)
		if err != nil {
			return err
		}
		if e.applied[slot] != h {
			e.pass.SetVertexBuffer(uint32(i), buf, 0)
			e.applied[slot] = h
		}
	}

	if call.Indexed() {
		slot := device.IndexSlot()
		buf, h, err := b.slotBuffer(slot)
		if err != nil {
			return err
		}
		format := call.IndexFormat
		if format == gputypes.IndexFormatUndefined {
			format = gputypes.IndexFormatUint32
		}
		e.pass.SetIndexBuffer(buf, format, 0)
		e.applied[slot] = h
		e.pass.DrawIndexed(call.IndexCount, call.Instances(), call.FirstIndex, call.BaseVertex, 0)
		return nil
	}
	e.pass.Draw(call.VertexCount, call.Instances(), call.FirstVertex, 0)
	return nil
}

func (b *Backend) slotBuffer(slot device.Slot) (hal.Buffer, device.Handle, error) {
	h := b.enc.slots[slot]
	buf, ok := b.buffers[h]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnbound, slot)
	}
	return buf.buf, h, nil
}

func (b *Backend) createPipeline(p *program) (hal.RenderPipeline, error) {
	e := b.enc
	t := e.target
	ms := e.ms.Descriptor()
	ms.Count = max(t.samples, 1)
	desc := &hal.RenderPipelineDescriptor{
		Label:  p.desc.Label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: p.desc.VertexEntry,
			Buffers:    p.desc.VertexLayout,
		},
		Primitive:   e.rast.Primitive(),
		Multisample: ms,
	}
	if t.depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = depthStencilState(e.depth, t.depth, e.rast)
	}
	if p.fragments {
		targets := make([]gputypes.ColorTargetState, len(t.colors))
		for i, f := range t.colors {
			targets[i] = gputypes.ColorTargetState{Format: f, Blend: e.blend.Equation(), WriteMask: e.blend.WriteMask}
		}
		desc.Fragment = &hal.FragmentState{Module: p.module, EntryPoint: p.desc.FragmentEntry, Targets: targets}
	}
	return b.device.CreateRenderPipeline(desc)
}

// bindGroup returns the bind group of group g built from the bound slots.
func (b *Backend) bindGroup(ph device.Handle, p *program, g int) (hal.BindGroup, error) {
	e := b.enc
	bindings := p.bindings[g]
	if len(bindings) > maxGroupBindings {
		return nil, fmt.Errorf("native: group %d has %d bindings, max %d", g, len(bindings), maxGroupBindings)
	}
	key := bindGroupKey{program: ph, group: uint32(g)}
	for i, bd := range bindings {
		h := e.slots[slotOf(bd)]
		if !h.IsValid() {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnbound, slotOf(bd), bd.Name)
		}
		key.handles[i] = h
	}
	if bg, ok := e.groups[key]; ok {
		return bg, nil
	}

	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, bd := range bindings {
		h := key.handles[i]
		entries[i].Binding = bd.Binding
		switch bd.Kind {
		case device.BindingUniform:
			buf, ok := b.buffers[h]
			if !ok {
				return nil, fmt.Errorf("%w: %s is not a buffer", ErrUnbound, bd.Name)
			}
			entries[i].Resource = gputypes.BufferBinding{Buffer: buf.buf.NativeHandle(), Size: bd.Size}
		case device.BindingTexture:
			t, ok := b.textures[h]
			if !ok {
				return nil, fmt.Errorf("%w: %s is not a texture", ErrUnbound, bd.Name)
			}
			entries[i].Resource = gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}
		case device.BindingSampler:
			s, ok := b.samplers[h]
			if !ok {
				return nil, fmt.Errorf("%w: %s is not a sampler", ErrUnbound, bd.Name)
			}
			entries[i].Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
		}
	}
	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s.group%d", p.desc.Label, g),
		Layout:  p.groups[g],
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	e.groups[key] = bg
	return bg, nil
}

// Present implements device.Backend: it submits the frame and releases
// objects whose submissions have completed.
func (b *Backend) Present() error {
	if b.closed {
		return ErrClosed
	}
	b.enc.desc = nil
	if err := b.enc.flush(); err != nil {
		return err
	}
	b.enc.collect(b.queue.PollCompleted())
	return nil
}
