// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/shader"
)

// Package errors.
var (
	// ErrNoProgram is returned when a pipeline is created without a program.
	ErrNoProgram = errors.New("pipeline: no program")

	// ErrProgramNotReady is returned when the program is not Initialised.
	ErrProgramNotReady = errors.New("pipeline: program not initialised")

	// ErrUnknownBinding is returned for a uniform name the program does not
	// declare.
	ErrUnknownBinding = errors.New("pipeline: program has no such binding")

	// ErrBindingSize is returned when a uniform block is smaller than the
	// program expects.
	ErrBindingSize = errors.New("pipeline: uniform block too small")

	// ErrNotReady is returned by Apply when an attached resource could not
	// be bound. The caller skips the draw.
	ErrNotReady = errors.New("pipeline: resource not ready")
)

// Key identifies a pipeline: a program and the four fixed-function states.
// Keys are comparable and used directly as map keys.
type Key struct {
	Program      *shader.Program
	Blend        device.BlendState
	Rasteriser   device.RasteriserState
	DepthStencil device.DepthStencilState
	Multisample  device.MultisampleState
}

// DefaultKey returns a key with program and the backend default states.
func DefaultKey(program *shader.Program) Key {
	return Key{
		Program:      program,
		Blend:        device.DefaultBlendState(),
		Rasteriser:   device.DefaultRasteriserState(),
		DepthStencil: device.DefaultDepthStencilState(),
		Multisample:  device.DefaultMultisampleState(),
	}
}

// States returns the fixed-function states in bind order.
func (k Key) States() [4]device.State {
	return [4]device.State{k.Blend, k.Rasteriser, k.DepthStencil, k.Multisample}
}

// Bindable is a resource that can be attached to a slot.
type Bindable interface {
	Bind(slot device.Slot) bool
}

type uniform struct {
	name string
	slot device.Slot
	ubo  *resource.UniformBuffer
}

type attachment struct {
	name string
	slot device.Slot
	res  Bindable
}

// Option configures a Pipeline.
type Option func(*config)

type config struct {
	uniforms    []uniform
	attachments []attachment
}

// WithUniform attaches ubo to the uniform binding called name. The pipeline
// takes ownership: it initialises the block if needed and cleans it up.
func WithUniform(name string, ubo *resource.UniformBuffer) Option {
	return func(c *config) { c.uniforms = append(c.uniforms, uniform{name: name, ubo: ubo}) }
}

// WithResource attaches a texture or sampler to the binding called name.
// The pipeline does not own it.
func WithResource(name string, res Bindable) Option {
	return func(c *config) { c.attachments = append(c.attachments, attachment{name: name, res: res}) }
}

// Pipeline is a program, its fixed-function states and its uniform blocks,
// ready to be applied before draws.
//
// A Pipeline belongs to the render thread.
type Pipeline struct {
	dev         *device.Device
	key         Key
	uniforms    []uniform
	attachments []attachment
}

// New creates a pipeline for key on d. The program must be Initialised and
// every state must be supported by the feature level; uniform blocks are
// created and initialised here so that Update and Apply never allocate.
func New(d *device.Device, key Key, opts ...Option) (*Pipeline, error) {
	if key.Program == nil {
		return nil, ErrNoProgram
	}
	if key.Program.State() != resource.Initialised {
		return nil, fmt.Errorf("%w: %q is %s", ErrProgramNotReady, key.Program.Label(), key.Program.State())
	}
	for _, s := range key.States() {
		if err := d.CheckState(s); err != nil {
			return nil, err
		}
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Pipeline{dev: d, key: key}
	module := key.Program.Module()
	for _, u := range cfg.uniforms {
		b, ok := module.Binding(u.name)
		if !ok || b.Kind != device.BindingUniform {
			return nil, fmt.Errorf("%w: uniform %q in %q", ErrUnknownBinding, u.name, key.Program.Label())
		}
		if u.ubo.Size() < b.Size {
			return nil, fmt.Errorf("%w: %q is %d bytes, program expects %d", ErrBindingSize, u.name, u.ubo.Size(), b.Size)
		}
		u.slot = device.UniformSlot(b.Group, b.Binding)
		p.uniforms = append(p.uniforms, u)
	}
	for _, a := range cfg.attachments {
		b, ok := module.Binding(a.name)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownBinding, a.name, key.Program.Label())
		}
		switch b.Kind {
		case device.BindingTexture:
			a.slot = device.TextureSlot(b.Group, b.Binding)
		case device.BindingSampler:
			a.slot = device.SamplerSlot(b.Group, b.Binding)
		default:
			return nil, fmt.Errorf("%w: %q is a uniform block", ErrUnknownBinding, a.name)
		}
		p.attachments = append(p.attachments, a)
	}

	// On failure only the blocks New created are released.
	fresh := make([]bool, len(p.uniforms))
	for i, u := range p.uniforms {
		fresh[i] = u.ubo.State() == resource.Uninitialised
	}
	for i, u := range p.uniforms {
		if err := initialise(u.ubo); err != nil {
			for j, done := range p.uniforms[:i+1] {
				if fresh[j] {
					done.ubo.Cleanup()
				}
			}
			return nil, err
		}
	}
	return p, nil
}

func initialise(u *resource.UniformBuffer) error {
	switch u.State() {
	case resource.Initialised:
		return nil
	case resource.Uninitialised:
		if err := u.Create(); err != nil {
			return err
		}
	}
	return u.Initialise()
}

// Key returns the pipeline key.
func (p *Pipeline) Key() Key { return p.key }

// Program returns the pipeline program.
func (p *Pipeline) Program() *shader.Program { return p.key.Program }

// Uniform returns the block attached to name.
func (p *Pipeline) Uniform(name string) (*resource.UniformBuffer, bool) {
	for _, u := range p.uniforms {
		if u.name == name {
			return u.ubo, true
		}
	}
	return nil, false
}

// Update writes every modified uniform block to its backend buffer. It
// only rewrites existing buffers.
func (p *Pipeline) Update() error {
	for _, u := range p.uniforms {
		if err := u.ubo.Flush(); err != nil {
			return fmt.Errorf("pipeline: update %q: %w", u.name, err)
		}
	}
	return nil
}

// Apply binds the states that differ from the device cache, then the
// program, then the uniform blocks and attached resources.
func (p *Pipeline) Apply() error {
	for _, s := range p.key.States() {
		if _, err := p.dev.BindState(s); err != nil {
			return err
		}
	}
	if !p.key.Program.Bind() {
		return fmt.Errorf("%w: program %q", ErrNotReady, p.key.Program.Label())
	}
	for _, u := range p.uniforms {
		if !u.ubo.Bind(u.slot) {
			return fmt.Errorf("%w: uniform %q", ErrNotReady, u.name)
		}
	}
	for _, a := range p.attachments {
		if !a.res.Bind(a.slot) {
			return fmt.Errorf("%w: %q", ErrNotReady, a.name)
		}
	}
	return nil
}

// Cleanup releases the uniform blocks the pipeline owns.
func (p *Pipeline) Cleanup() {
	for _, u := range p.uniforms {
		u.ubo.Cleanup()
	}
}
