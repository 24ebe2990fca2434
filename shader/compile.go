// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/internal/cache"
	"github.com/gogpu/castor/internal/logging"
)

// Package errors.
var (
	// ErrCompile matches every CompileError via errors.Is.
	ErrCompile = errors.New("shader: compilation failed")

	// ErrNoEntryPoint is returned when a requested entry point is missing.
	ErrNoEntryPoint = errors.New("shader: entry point not found")
)

// Phase is the compilation step that failed.
type Phase string

const (
	PhaseParse    Phase = "parse"
	PhaseLower    Phase = "lower"
	PhaseValidate Phase = "validate"
	PhaseGenerate Phase = "generate"
)

// CompileError reports a WGSL compilation failure.
type CompileError struct {
	Label string
	Phase Phase
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader: %s %q: %v", e.Phase, e.Label, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// Stage is a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
	StageOther
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return "other"
}

func stageOf(s ir.ShaderStage) Stage {
	switch s {
	case ir.StageVertex:
		return StageVertex
	case ir.StageFragment:
		return StageFragment
	case ir.StageCompute:
		return StageCompute
	}
	return StageOther
}

// EntryPoint is one reflected entry point.
type EntryPoint struct {
	Name  string
	Stage Stage
}

// Module is a validated WGSL module with its reflection data. A Module is
// pure data: it holds no backend handle and may be shared between
// goroutines.
type Module struct {
	Label       string
	Source      string
	EntryPoints []EntryPoint
	Bindings    []device.Binding
	// SPIRV is set when the compiler generates SPIR-V.
	SPIRV []uint32
}

// EntryPoint returns the first entry point of stage, or the named one if
// name is not empty.
func (m *Module) EntryPoint(stage Stage, name string) (string, error) {
	for _, ep := range m.EntryPoints {
		if ep.Stage == stage && (name == "" || ep.Name == name) {
			return ep.Name, nil
		}
	}
	if name == "" {
		name = "<any>"
	}
	return "", fmt.Errorf("%w: %s entry %s in %q", ErrNoEntryPoint, stage, name, m.Label)
}

// Binding returns the binding named name.
func (m *Module) Binding(name string) (device.Binding, bool) {
	for _, b := range m.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return device.Binding{}, false
}

// CompilerOption configures a Compiler.
type CompilerOption func(*compilerOptions)

type compilerOptions struct {
	capacity int
	spirv    bool
	version  spirv.Version
	debug    bool
}

// WithCapacity bounds the number of cached modules. Zero means unbounded.
func WithCapacity(n int) CompilerOption {
	return func(o *compilerOptions) { o.capacity = n }
}

// WithSPIRV also generates SPIR-V for every module.
func WithSPIRV(version spirv.Version) CompilerOption {
	return func(o *compilerOptions) {
		o.spirv = true
		o.version = version
	}
}

// WithDebugInfo keeps debug names in generated SPIR-V.
func WithDebugInfo() CompilerOption {
	return func(o *compilerOptions) { o.debug = true }
}

// Compiler validates and reflects WGSL modules and caches the results by
// source. It is safe for concurrent use, so loader goroutines can compile
// ahead of the render thread.
type Compiler struct {
	opts  compilerOptions
	cache *cache.LRU[uint64, *Module]
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...CompilerOption) *Compiler {
	o := compilerOptions{capacity: 64, version: spirv.Version1_3}
	for _, opt := range opts {
		opt(&o)
	}
	return &Compiler{opts: o, cache: cache.New[uint64, *Module](o.capacity, nil)}
}

// Compile returns the module for source, compiling it on a cache miss.
// label names the module in errors and logs.
func (c *Compiler) Compile(label, source string) (*Module, error) {
	return c.cache.GetOrCreate(sourceKey(source), func() (*Module, error) {
		logging.Logger().Debug("shader: compiling", "label", label)
		return compile(label, source, c.opts)
	})
}

// Stats returns the cache statistics.
func (c *Compiler) Stats() cache.Stats { return c.cache.Stats() }

// Purge drops every cached module.
func (c *Compiler) Purge() { c.cache.Clear() }

// Compile validates and reflects source without caching or SPIR-V output.
func Compile(label, source string) (*Module, error) {
	return compile(label, source, compilerOptions{})
}

func sourceKey(source string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(source))
	return h.Sum64()
}

func compile(label, source string, opts compilerOptions) (*Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, &CompileError{Label: label, Phase: PhaseParse, Err: err}
	}
	m, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, &CompileError{Label: label, Phase: PhaseLower, Err: err}
	}
	verrs, err := naga.Validate(m)
	if err != nil {
		return nil, &CompileError{Label: label, Phase: PhaseValidate, Err: err}
	}
	if len(verrs) > 0 {
		return nil, &CompileError{Label: label, Phase: PhaseValidate, Err: verrs[0]}
	}

	mod := &Module{Label: label, Source: source}
	for _, ep := range m.EntryPoints {
		mod.EntryPoints = append(mod.EntryPoints, EntryPoint{Name: ep.Name, Stage: stageOf(ep.Stage)})
	}
	mod.Bindings = reflectBindings(m)

	if opts.spirv {
		code, err := naga.GenerateSPIRV(m, spirv.Options{Version: opts.version, Debug: opts.debug})
		if err != nil {
			return nil, &CompileError{Label: label, Phase: PhaseGenerate, Err: err}
		}
		mod.SPIRV = words(code)
	}
	return mod, nil
}

// reflectBindings lists uniform blocks, textures and samplers.
func reflectBindings(m *ir.Module) []device.Binding {
	var out []device.Binding
	for _, gv := range m.GlobalVariables {
		if gv.Binding == nil || int(gv.Type) >= len(m.Types) {
			continue
		}
		b := device.Binding{Name: gv.Name, Group: gv.Binding.Group, Binding: gv.Binding.Binding}
		inner := m.Types[gv.Type].Inner
		switch {
		case gv.Space == ir.SpaceUniform:
			b.Kind = device.BindingUniform
			b.Size = typeSize(m, inner)
		case isImage(inner):
			b.Kind = device.BindingTexture
		case isSampler(inner):
			b.Kind = device.BindingSampler
		default:
			continue
		}
		out = append(out, b)
	}
	return out
}

func isImage(t ir.TypeInner) bool {
	_, ok := t.(ir.ImageType)
	return ok
}

func isSampler(t ir.TypeInner) bool {
	_, ok := t.(ir.SamplerType)
	return ok
}

// typeSize returns the uniform layout size of t.
func typeSize(m *ir.Module, t ir.TypeInner) uint64 {
	switch t := t.(type) {
	case ir.StructType:
		return uint64(t.Span)
	case ir.ScalarType:
		return uint64(t.Width)
	case ir.VectorType:
		n := uint64(t.Size)
		if n == 3 {
			n = 4
		}
		return n * uint64(t.Scalar.Width)
	case ir.MatrixType:
		rows := uint64(t.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint64(t.Columns) * rows * uint64(t.Scalar.Width)
	case ir.ArrayType:
		if t.Size.Constant != nil {
			return uint64(*t.Size.Constant) * uint64(t.Stride)
		}
	}
	return 0
}

// words converts little-endian SPIR-V bytes to 32-bit words.
func words(code []byte) []uint32 {
	out := make([]uint32, len(code)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return out
}
