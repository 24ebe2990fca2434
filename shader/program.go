// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"weak"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/internal/logging"
	"github.com/gogpu/castor/resource"
)

// Program is a shader program resource: a compiled module bound to one
// device. It follows the resource lifecycle.
//
// Compile is pure CPU work and may run on any goroutine. Create,
// Initialise, Bind and Cleanup belong to the render thread.
type Program struct {
	dev      weak.Pointer[device.Device]
	label    string
	source   string
	compiler *Compiler
	vertex   string
	fragment string
	layout   []gputypes.VertexBufferLayout

	module *Module
	handle device.Handle
	state  resource.State
}

var _ resource.Resource = (*Program)(nil)

// ProgramOption configures a Program.
type ProgramOption func(*Program)

// WithCompiler compiles through c and its cache.
func WithCompiler(c *Compiler) ProgramOption {
	return func(p *Program) { p.compiler = c }
}

// WithEntryPoints selects the vertex and fragment entry points. Empty names
// pick the first entry point of the stage.
func WithEntryPoints(vertex, fragment string) ProgramOption {
	return func(p *Program) { p.vertex, p.fragment = vertex, fragment }
}

// WithVertexLayout declares the vertex buffers of the vertex stage.
func WithVertexLayout(layouts ...gputypes.VertexBufferLayout) ProgramOption {
	return func(p *Program) { p.layout = layouts }
}

// NewProgram returns an Uninitialised program for WGSL source.
func NewProgram(d *device.Device, label, source string, opts ...ProgramOption) *Program {
	p := &Program{dev: weak.Make(d), label: label, source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Label returns the debug label.
func (p *Program) Label() string { return p.label }

// State returns the lifecycle state.
func (p *Program) State() resource.State { return p.state }

// Handle returns the backend program handle.
func (p *Program) Handle() device.Handle { return p.handle }

// Module returns the compiled module, or nil before Compile.
func (p *Program) Module() *Module { return p.module }

// Source returns the WGSL source.
func (p *Program) Source() string { return p.source }

// Compile validates and reflects the source. It is called by Create if
// needed.
func (p *Program) Compile() error {
	if p.module != nil {
		return nil
	}
	var (
		m   *Module
		err error
	)
	if p.compiler != nil {
		m, err = p.compiler.Compile(p.label, p.source)
	} else {
		m, err = Compile(p.label, p.source)
	}
	if err != nil {
		return err
	}
	p.module = m
	return nil
}

// Descriptor returns the device descriptor of the compiled program.
func (p *Program) Descriptor() (device.ProgramDescriptor, error) {
	if err := p.Compile(); err != nil {
		return device.ProgramDescriptor{}, err
	}
	vs, err := p.module.EntryPoint(StageVertex, p.vertex)
	if err != nil {
		return device.ProgramDescriptor{}, err
	}
	var fs string
	if p.fragment != "" || hasStage(p.module, StageFragment) {
		if fs, err = p.module.EntryPoint(StageFragment, p.fragment); err != nil {
			return device.ProgramDescriptor{}, err
		}
	}
	return device.ProgramDescriptor{
		Label:         p.label,
		Source:        p.source,
		SPIRV:         p.module.SPIRV,
		VertexEntry:   vs,
		FragmentEntry: fs,
		Bindings:      p.module.Bindings,
		VertexLayout:  p.layout,
	}, nil
}

func hasStage(m *Module, s Stage) bool {
	for _, ep := range m.EntryPoints {
		if ep.Stage == s {
			return true
		}
	}
	return false
}

// Create compiles the program if needed and creates the backend program.
// Compilation and backend failures are returned as *resource.AllocationError
// and leave the program Uninitialised.
func (p *Program) Create() error {
	if p.state != resource.Uninitialised {
		return fmt.Errorf("%w: create program %q in state %s", resource.ErrState, p.label, p.state)
	}
	desc, err := p.Descriptor()
	if err != nil {
		return &resource.AllocationError{Label: p.label, Kind: device.KindProgram, Err: err}
	}
	d := p.dev.Value()
	if d == nil {
		return &resource.AllocationError{Label: p.label, Kind: device.KindProgram, Err: resource.ErrNoDevice}
	}
	h, err := d.CreateResource(desc)
	if err != nil {
		return &resource.AllocationError{Label: p.label, Kind: device.KindProgram, Err: err}
	}
	p.handle = h
	p.state = resource.Created
	return nil
}

// Initialise makes the program bindable.
func (p *Program) Initialise() error {
	if p.state != resource.Created {
		return fmt.Errorf("%w: initialise program %q in state %s", resource.ErrState, p.label, p.state)
	}
	p.state = resource.Initialised
	return nil
}

// Bind makes the program current. It returns false without a device call
// when the program is not Initialised.
func (p *Program) Bind() bool {
	if p.state != resource.Initialised {
		return false
	}
	d := p.dev.Value()
	if d == nil {
		return false
	}
	if err := d.BindProgram(p.handle); err != nil {
		logging.Logger().Warn("shader: bind failed", "label", p.label, "err", err)
		return false
	}
	return true
}

func (p *Program) release() {
	if !p.handle.IsValid() {
		return
	}
	if d := p.dev.Value(); d != nil {
		d.DestroyResource(p.handle)
	}
	p.handle = device.InvalidHandle
}

// Cleanup releases the backend program. The compiled module is kept.
func (p *Program) Cleanup() {
	p.release()
	if p.state != resource.Destroyed {
		p.state = resource.Uninitialised
	}
}

// Destroy releases the backend program for good.
func (p *Program) Destroy() {
	p.release()
	p.state = resource.Destroyed
}
