// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/internal/logging"
	"github.com/gogpu/castor/pipeline"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
	"github.com/gogpu/castor/shader"
)

// Stats are cumulative technique counters.
type Stats struct {
	Frames    uint64
	Abandoned uint64
	Draws     uint64
	// Skipped counts draws dropped because no pipeline or buffer was ready.
	Skipped uint64
	// Fallbacks counts draws that used the fallback pipeline.
	Fallbacks uint64
	// EffectsSkipped counts failing post effects and tone mappings.
	EffectsSkipped uint64
}

// objectUniforms are the blocks of one object pipeline.
type objectUniforms struct {
	matrices *pipeline.MatrixUbo
	material *MaterialUbo
	lights   *LightsUbo
}

// Context is the render-thread state shared by a technique, its strategy
// and its effects: the device, the shader compiler, the pipeline cache and
// the frame being rendered.
type Context struct {
	dev       *device.Device
	compiler  *shader.Compiler
	pipelines *pipeline.Cache
	samples   uint32
	hdr       gputypes.TextureFormat
	depth     gputypes.TextureFormat

	programs map[string]*shader.Program
	failed   map[string]error
	objects  map[*pipeline.Pipeline]*objectUniforms
	meshes   map[*scene.Mesh]struct{}
	fallback *shader.Program
	material *scene.Material

	frame  uint64
	target *Target
	graph  *scene.Graph
	camera *scene.Camera
	lights []*scene.Light

	stats Stats
}

func newContext(d *device.Device, compiler *shader.Compiler, samples uint32) *Context {
	info := d.Info()
	if samples == 0 || !info.Features.Has(device.FeatureMultisample) {
		samples = 1
	}
	samples = min(samples, max(info.MaxSamples, 1))
	hdr := gputypes.TextureFormatRGBA8Unorm
	if info.Features.Has(device.FeatureFloatTargets) {
		hdr = gputypes.TextureFormatRGBA16Float
	}
	if compiler == nil {
		compiler = shader.NewCompiler()
	}
	return &Context{
		dev:       d,
		compiler:  compiler,
		pipelines: pipeline.NewCache(),
		samples:   samples,
		hdr:       hdr,
		depth:     gputypes.TextureFormatDepth24Plus,
		programs:  make(map[string]*shader.Program),
		failed:    make(map[string]error),
		objects:   make(map[*pipeline.Pipeline]*objectUniforms),
		meshes:    make(map[*scene.Mesh]struct{}),
		material:  scene.NewMaterial("default"),
	}
}

// Device returns the render device.
func (c *Context) Device() *device.Device { return c.dev }

// Compiler returns the shader compiler shared by every program.
func (c *Context) Compiler() *shader.Compiler { return c.compiler }

// Pipelines returns the pipeline cache.
func (c *Context) Pipelines() *pipeline.Cache { return c.pipelines }

// Samples returns the MSAA sample count of the scene buffers.
func (c *Context) Samples() uint32 { return c.samples }

// HDRFormat is the colour format of the scene buffers.
func (c *Context) HDRFormat() gputypes.TextureFormat { return c.hdr }

// DepthFormat is the depth format of the scene buffers.
func (c *Context) DepthFormat() gputypes.TextureFormat { return c.depth }

// Frame returns the number of the frame being rendered.
func (c *Context) Frame() uint64 { return c.frame }

// Target returns the target of the frame.
func (c *Context) Target() *Target { return c.target }

// Graph returns the scene of the frame, nil before RenderObjects.
func (c *Context) Graph() *scene.Graph { return c.graph }

// Camera returns the camera of the frame.
func (c *Context) Camera() *scene.Camera { return c.camera }

// Background returns the clear colour of the scene.
func (c *Context) Background() gputypes.Color {
	if c.graph == nil {
		return gputypes.Color{A: 1}
	}
	bg := c.graph.Background
	return gputypes.Color{R: float64(bg.X()), G: float64(bg.Y()), B: float64(bg.Z()), A: float64(bg.W())}
}

// Program returns the Initialised program called label, building it from
// source on first use. A failure is remembered and returned again without
// recompiling.
func (c *Context) Program(label, source string, opts ...shader.ProgramOption) (*shader.Program, error) {
	if p, ok := c.programs[label]; ok {
		return p, nil
	}
	if err, ok := c.failed[label]; ok {
		return nil, err
	}
	opts = append([]shader.ProgramOption{shader.WithCompiler(c.compiler)}, opts...)
	p := shader.NewProgram(c.dev, label, source, opts...)
	err := p.Create()
	if err == nil {
		if err = p.Initialise(); err != nil {
			p.Cleanup()
		}
	}
	if err != nil {
		c.failed[label] = err
		logging.Logger().Warn("technique: program unavailable", "label", label, "err", err)
		return nil, err
	}
	c.programs[label] = p
	logging.Logger().Debug("technique: program ready", "label", label)
	return p, nil
}

// ObjectProgram returns a program drawing scene meshes.
func (c *Context) ObjectProgram(label, source string) (*shader.Program, error) {
	layout := scene.VertexDeclaration().Layout(gputypes.VertexStepModeVertex)
	return c.Program(label, source, shader.WithVertexLayout(layout))
}

// FullscreenProgram returns a post-processing program drawn with a single
// triangle.
func (c *Context) FullscreenProgram(label, source string) (*shader.Program, error) {
	return c.Program(label, source, shader.WithEntryPoints(FullscreenVertexEntry, FragmentEntry))
}

// Fallback returns the unlit program objects degrade to.
func (c *Context) Fallback() (*shader.Program, error) {
	if c.fallback != nil {
		return c.fallback, nil
	}
	p, err := c.ObjectProgram("fallback", FallbackSource())
	if err != nil {
		return nil, err
	}
	c.fallback = p
	return p, nil
}

// NewRenderBuffer creates and initialises a w x h render buffer.
func (c *Context) NewRenderBuffer(label string, format gputypes.TextureFormat, samples, w, h uint32) (*resource.RenderBuffer, error) {
	rb := resource.NewRenderBuffer(c.dev, label, format, samples)
	if err := rb.Create(w, h); err != nil {
		return nil, err
	}
	if err := rb.Initialise(); err != nil {
		rb.Destroy()
		return nil, err
	}
	return rb, nil
}

// ObjectKey returns the pipeline key drawing pass with program. depth
// selects depth testing; samples is the sample count of the pass.
func (c *Context) ObjectKey(program *shader.Program, pass *scene.Pass, depth bool, samples uint32) pipeline.Key {
	key := pipeline.DefaultKey(program)
	key.Rasteriser.CullMode = gputypes.CullModeBack
	if pass.TwoSided {
		key.Rasteriser.CullMode = gputypes.CullModeNone
	}
	key.Rasteriser.Wireframe = pass.Wireframe
	if pass.Blended() {
		key.Blend = device.AlphaBlendState()
	}
	if depth {
		key.DepthStencil = device.OpaqueDepthState()
		key.DepthStencil.DepthWrite = !pass.Blended()
	}
	key.Multisample.Count = max(samples, 1)
	return key
}

func (c *Context) newObjectPipeline(key pipeline.Key) (*pipeline.Pipeline, error) {
	label := key.Program.Label()
	module := key.Program.Module()
	u := &objectUniforms{matrices: pipeline.NewMatrixUbo(c.dev, label+".matrices")}
	opts := []pipeline.Option{pipeline.WithUniform(pipeline.MatricesUniform, u.matrices.Buffer())}
	if _, ok := module.Binding(MaterialUniform); ok {
		u.material = NewMaterialUbo(c.dev, label+".material")
		opts = append(opts, pipeline.WithUniform(MaterialUniform, u.material.Buffer()))
	}
	if _, ok := module.Binding(LightsUniform); ok {
		u.lights = NewLightsUbo(c.dev, label+".lights")
		opts = append(opts, pipeline.WithUniform(LightsUniform, u.lights.Buffer()))
	}
	p, err := pipeline.New(c.dev, key, opts...)
	if err != nil {
		return nil, err
	}
	c.objects[p] = u
	return p, nil
}

// objectPipeline returns the pipeline for key, degrading to the fallback
// program with default states when it cannot be created.
func (c *Context) objectPipeline(key pipeline.Key) (*pipeline.Pipeline, bool) {
	p, err := c.pipelines.GetOrCreate(key, c.newObjectPipeline)
	if err == nil {
		return p, false
	}
	fb, ferr := c.Fallback()
	if ferr != nil {
		return nil, false
	}
	fkey := pipeline.DefaultKey(fb)
	fkey.DepthStencil = key.DepthStencil
	fkey.Multisample = key.Multisample
	p, ferr = c.pipelines.GetOrCreate(fkey, c.newObjectPipeline)
	if ferr != nil {
		return nil, false
	}
	return p, true
}

// FullscreenPipeline returns the cached single-sampled pipeline of program.
// opts are only used when the pipeline is created.
func (c *Context) FullscreenPipeline(program *shader.Program, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	return c.pipelines.GetOrCreate(pipeline.DefaultKey(program), func(key pipeline.Key) (*pipeline.Pipeline, error) {
		return pipeline.New(c.dev, key, opts...)
	})
}

// ObjectFilter selects the material passes drawn by DrawObjects.
type ObjectFilter func(*scene.Pass) bool

// Opaque selects passes without blending.
func Opaque(p *scene.Pass) bool { return !p.Blended() }

// Blended selects passes with blending.
func Blended(p *scene.Pass) bool { return p.Blended() }

// DrawObjects draws every submesh pass of geoms accepted by filter with
// program into the open pass. Meshes are initialised on first use. A draw
// whose pipeline or buffers are not ready is skipped; only device failures
// are returned.
func (c *Context) DrawObjects(geoms []*scene.Geometry, program *shader.Program, filter ObjectFilter, depth bool, samples uint32) error {
	if c.camera == nil {
		return fmt.Errorf("%w: draw without camera", ErrState)
	}
	view, proj := c.camera.View(), c.camera.Projection()
	eye := c.camera.World().Col(3).Vec3()
	for _, g := range geoms {
		mesh := g.Mesh()
		if !c.ensureMesh(mesh) {
			c.stats.Skipped++
			continue
		}
		world := g.World()
		for i, sm := range mesh.Submeshes() {
			mat := g.Material(i)
			if mat == nil {
				mat = c.material
			}
			for _, pass := range mat.Passes() {
				if filter != nil && !filter(pass) {
					continue
				}
				p, fellBack := c.objectPipeline(c.ObjectKey(program, pass, depth, samples))
				if p == nil {
					c.stats.Skipped++
					continue
				}
				if fellBack {
					c.stats.Fallbacks++
				}
				u := c.objects[p]
				u.matrices.SetProjection(proj)
				u.matrices.SetView(view)
				u.matrices.SetModel(world)
				if u.material != nil {
					u.material.Set(pass)
				}
				if u.lights != nil {
					u.lights.Set(c.frame, c.ambient(), eye, c.lights)
				}
				if err := c.drawSubmesh(p, sm); err != nil {
					if errors.Is(err, pipeline.ErrNotReady) {
						logging.Logger().Debug("technique: draw skipped", "object", g.Name(), "err", err)
						c.stats.Skipped++
						continue
					}
					return err
				}
				c.stats.Draws++
			}
		}
	}
	return nil
}

func (c *Context) drawSubmesh(p *pipeline.Pipeline, sm *scene.Submesh) error {
	if err := p.Update(); err != nil {
		return err
	}
	if err := p.Apply(); err != nil {
		return err
	}
	if !sm.VertexBuffer().Bind(device.VertexSlot(0)) {
		return fmt.Errorf("%w: vertex buffer", pipeline.ErrNotReady)
	}
	if ibo := sm.IndexBuffer(); ibo != nil && !ibo.Bind() {
		return fmt.Errorf("%w: index buffer", pipeline.ErrNotReady)
	}
	return c.dev.Draw(sm.DrawCall())
}

func (c *Context) ensureMesh(m *scene.Mesh) bool {
	if m == nil {
		return false
	}
	if m.Ready() {
		return true
	}
	if err := m.Initialise(c.dev); err != nil {
		logging.Logger().Warn("technique: mesh unavailable", "mesh", m.Name(), "err", err)
		return false
	}
	c.meshes[m] = struct{}{}
	return true
}

func (c *Context) ambient() mgl32.Vec3 {
	if c.graph == nil {
		return mgl32.Vec3{}
	}
	return c.graph.Ambient
}

// SetLights stores the frame's lights into l.
func (c *Context) SetLights(l *LightsUbo) {
	var eye mgl32.Vec3
	if c.camera != nil {
		eye = c.camera.World().Col(3).Vec3()
	}
	l.Set(c.frame, c.ambient(), eye, c.lights)
}

// SortBackToFront orders geoms by decreasing distance from the camera.
func (c *Context) SortBackToFront(geoms []*scene.Geometry) {
	if c.camera == nil {
		return
	}
	eye := c.camera.World().Col(3).Vec3()
	slices.SortStableFunc(geoms, func(a, b *scene.Geometry) int {
		da := a.World().Col(3).Vec3().Sub(eye).Len()
		db := b.World().Col(3).Vec3().Sub(eye).Len()
		return cmp.Compare(db, da)
	})
}

// Source is a render buffer sampled by a fullscreen pass through the
// texture binding called Name.
type Source struct {
	Name   string
	Buffer *resource.RenderBuffer
}

// FullscreenPass describes one post-processing pass.
type FullscreenPass struct {
	Label    string
	Pipeline *pipeline.Pipeline
	Target   *resource.RenderBuffer
	Clear    gputypes.Color
	Sources  []Source
}

// Fullscreen runs a fullscreen pass in its own render pass.
func (c *Context) Fullscreen(fp FullscreenPass) error {
	if err := fp.Pipeline.Update(); err != nil {
		return err
	}
	err := c.dev.BeginPass(device.PassDescriptor{
		Label:  fp.Label,
		Colors: []device.ColorAttachment{{Texture: fp.Target.Handle(), Clear: true, Color: fp.Clear}},
	})
	if err != nil {
		return err
	}
	err = c.fullscreen(fp)
	return errors.Join(err, c.dev.EndPass())
}

func (c *Context) fullscreen(fp FullscreenPass) error {
	if err := fp.Pipeline.Apply(); err != nil {
		return err
	}
	module := fp.Pipeline.Program().Module()
	for _, s := range fp.Sources {
		b, ok := module.Binding(s.Name)
		if !ok || b.Kind != device.BindingTexture {
			return fmt.Errorf("%w: texture %q", pipeline.ErrUnknownBinding, s.Name)
		}
		if !s.Buffer.Bind(device.TextureSlot(b.Group, b.Binding)) {
			return fmt.Errorf("%w: %q", pipeline.ErrNotReady, s.Name)
		}
	}
	return c.dev.Draw(device.DrawCall{VertexCount: 3})
}

// Stats returns the counters.
func (c *Context) Stats() Stats { return c.stats }

func (c *Context) begin(target *Target) {
	c.frame++
	c.target = target
	c.graph, c.camera, c.lights = nil, nil, nil
	c.stats.Frames++
}

// cleanup releases every pipeline, program and mesh the context created.
func (c *Context) cleanup() {
	c.pipelines.DestroyAll()
	clear(c.objects)
	for label, p := range c.programs {
		p.Destroy()
		delete(c.programs, label)
	}
	clear(c.failed)
	c.fallback = nil
	for m := range c.meshes {
		m.Cleanup()
		delete(c.meshes, m)
	}
}
