// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/recording"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/shader"
)

const morphSource = `
struct Matrices {
    projection: mat4x4<f32>,
    view: mat4x4<f32>,
    model: mat4x4<f32>,
    normal: mat4x4<f32>,
}

struct Morphing {
    time: f32,
}

@group(0) @binding(0) var<uniform> matrices: Matrices;
@group(0) @binding(1) var<uniform> morphing: Morphing;
@group(1) @binding(0) var albedo: texture_2d<f32>;
@group(1) @binding(1) var albedo_sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) next: vec3<f32>, @location(2) uv: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    let p = mix(position, next, vec3<f32>(morphing.time));
    out.position = matrices.projection * matrices.view * matrices.model * vec4<f32>(p, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(albedo, albedo_sampler, in.uv);
}
`

// =============================================================================
// Helpers
// =============================================================================

type fixture struct {
	rec  *recording.Recorder
	dev  *device.Device
	prog *shader.Program
}

func newFixture(t *testing.T, opts ...recording.Option) *fixture {
	t.Helper()
	rec := recording.NewRecorder(opts...)
	d := device.New(rec)
	p := shader.NewProgram(d, "morph", morphSource)
	if err := p.Create(); err != nil {
		t.Fatal(err)
	}
	if err := p.Initialise(); err != nil {
		t.Fatal(err)
	}
	return &fixture{rec: rec, dev: d, prog: p}
}

func (f *fixture) texture(t *testing.T) (*resource.Texture, *resource.Sampler) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	tex := resource.NewTexture(f.dev, device.TextureDescriptor{Label: "albedo", MipLevels: 1})
	if err := tex.SetImage(img); err != nil {
		t.Fatal(err)
	}
	if err := tex.Create(); err != nil {
		t.Fatal(err)
	}
	if err := tex.Initialise(); err != nil {
		t.Fatal(err)
	}
	s := resource.NewSampler(f.dev, resource.LinearSampler("linear"))
	if err := s.Create(); err != nil {
		t.Fatal(err)
	}
	if err := s.Initialise(); err != nil {
		t.Fatal(err)
	}
	return tex, s
}

func (f *fixture) pipeline(t *testing.T, key Key) (*Pipeline, *MatrixUbo, *MorphingUbo) {
	t.Helper()
	tex, s := f.texture(t)
	m := NewMatrixUbo(f.dev, "matrices")
	mo := NewMorphingUbo(f.dev, "morphing")
	p, err := New(f.dev, key,
		WithUniform(MatricesUniform, m.Buffer()),
		WithUniform(MorphingUniform, mo.Buffer()),
		WithResource("albedo", tex),
		WithResource("albedo_sampler", s))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return p, m, mo
}

func commandTypes(cmds []recording.Command) []recording.CommandType {
	out := make([]recording.CommandType, len(cmds))
	for i, c := range cmds {
		out[i] = c.Type()
	}
	return out
}

// =============================================================================
// Apply
// =============================================================================

func TestApplyOrder(t *testing.T) {
	f := newFixture(t)
	key := DefaultKey(f.prog)
	key.Blend = device.AlphaBlendState()
	p, _, _ := f.pipeline(t, key)

	mark := f.rec.Len()
	if err := p.Apply(); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	got := commandTypes(f.rec.Commands()[mark:])
	want := []recording.CommandType{
		recording.CmdBindState, // blend, the only non-default state
		recording.CmdBindProgram,
		recording.CmdBindResource, recording.CmdBindResource,
		recording.CmdBindResource, recording.CmdBindResource,
	}
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commands = %v, want %v", got, want)
		}
	}
}

func TestApplySuppressesUnchangedState(t *testing.T) {
	f := newFixture(t)
	opaque, _, _ := f.pipeline(t, DefaultKey(f.prog))
	blendKey := DefaultKey(f.prog)
	blendKey.Blend = device.AlphaBlendState()
	blended, _, _ := f.pipeline(t, blendKey)

	for i := 0; i < 3; i++ {
		if err := opaque.Apply(); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.rec.Count(recording.CmdBindState); n != 0 {
		t.Errorf("default pipeline issued %d state binds", n)
	}
	if n := f.rec.Count(recording.CmdBindProgram); n != 1 {
		t.Errorf("program binds = %d, want 1", n)
	}

	if err := blended.Apply(); err != nil {
		t.Fatal(err)
	}
	if err := blended.Apply(); err != nil {
		t.Fatal(err)
	}
	if n := f.rec.Count(recording.CmdBindState); n != 1 {
		t.Errorf("state binds = %d, want 1", n)
	}
	if err := opaque.Apply(); err != nil {
		t.Fatal(err)
	}
	if n := f.rec.Count(recording.CmdBindState); n != 2 {
		t.Errorf("state binds = %d, want 2 after switching back", n)
	}
}

func TestApplyUnfilledTexture(t *testing.T) {
	f := newFixture(t)
	tex := resource.NewTexture(f.dev, device.TextureDescriptor{Label: "empty", Width: 4, Height: 4})
	if err := tex.Create(); err != nil {
		t.Fatal(err)
	}
	if err := tex.Initialise(); err != nil {
		t.Fatal(err)
	}
	p, err := New(f.dev, DefaultKey(f.prog), WithResource("albedo", tex))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Apply(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Apply() = %v, want ErrNotReady", err)
	}
}

// =============================================================================
// Update
// =============================================================================

func TestUpdateWritesWithoutAllocating(t *testing.T) {
	f := newFixture(t)
	p, m, mo := f.pipeline(t, DefaultKey(f.prog))
	creates := f.rec.Count(recording.CmdCreate)
	writes := f.rec.Count(recording.CmdWriteBuffer)

	if err := p.Update(); err != nil {
		t.Fatal(err)
	}
	if n := f.rec.Count(recording.CmdWriteBuffer); n != writes {
		t.Errorf("clean update wrote %d buffers", n-writes)
	}

	m.SetModel(mgl32.Translate3D(1, 2, 3))
	mo.SetTime(0.5)
	if err := p.Update(); err != nil {
		t.Fatal(err)
	}
	if n := f.rec.Count(recording.CmdWriteBuffer); n != writes+2 {
		t.Errorf("writes = %d, want %d", n, writes+2)
	}
	if n := f.rec.Count(recording.CmdCreate); n != creates {
		t.Errorf("Update created %d backend objects", n-creates)
	}
}

func TestPipelineCleanupReleasesUniforms(t *testing.T) {
	f := newFixture(t)
	p, m, _ := f.pipeline(t, DefaultKey(f.prog))
	if u, ok := p.Uniform(MatricesUniform); !ok || u != m.Buffer() {
		t.Fatal("Uniform(matrices) not found")
	}
	p.Cleanup()
	if m.Buffer().State() != resource.Uninitialised {
		t.Errorf("matrices state = %v", m.Buffer().State())
	}
}

// =============================================================================
// New
// =============================================================================

func TestNewErrors(t *testing.T) {
	f := newFixture(t)
	raw := shader.NewProgram(f.dev, "raw", morphSource)

	wire := DefaultKey(f.prog)
	wire.Rasteriser.Wireframe = true

	tests := []struct {
		name string
		key  Key
		opts []Option
		want error
	}{
		{"no program", Key{}, nil, ErrNoProgram},
		{"program not initialised", DefaultKey(raw), nil, ErrProgramNotReady},
		{"unsupported state", wire, nil, device.ErrUnsupported},
		{"unknown uniform", DefaultKey(f.prog),
			[]Option{WithUniform("lights", resource.NewUniformBuffer(f.dev, "lights", 16))}, ErrUnknownBinding},
		{"small uniform", DefaultKey(f.prog),
			[]Option{WithUniform(MatricesUniform, resource.NewUniformBuffer(f.dev, "m", 64))}, ErrBindingSize},
		{"uniform as texture", DefaultKey(f.prog),
			[]Option{WithResource(MatricesUniform, resource.NewSampler(f.dev, resource.LinearSampler("s")))}, ErrUnknownBinding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(f.dev, tt.key, tt.opts...); !errors.Is(err, tt.want) {
				t.Errorf("New() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewFailureReleasesCreatedUniforms(t *testing.T) {
	refused := errors.New("upload refused")
	tests := []struct {
		name     string
		prepared bool // matrices initialised before New
	}{
		{"fresh blocks", false},
		{"caller owned block", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			armed, writes := false, 0
			f := newFixture(t, recording.WithFailure(func(c recording.Command) error {
				if !armed || c.Type() != recording.CmdWriteBuffer {
					return nil
				}
				if writes++; writes == 2 || tt.prepared {
					return refused
				}
				return nil
			}))
			m := NewMatrixUbo(f.dev, "matrices")
			mo := NewMorphingUbo(f.dev, "morphing")
			if tt.prepared {
				if err := m.Buffer().Create(); err != nil {
					t.Fatal(err)
				}
				if err := m.Buffer().Initialise(); err != nil {
					t.Fatal(err)
				}
			}
			live := f.rec.Live()
			armed = true

			_, err := New(f.dev, DefaultKey(f.prog),
				WithUniform(MatricesUniform, m.Buffer()),
				WithUniform(MorphingUniform, mo.Buffer()))
			if !errors.Is(err, refused) {
				t.Fatalf("New() = %v, want %v", err, refused)
			}
			if f.rec.Live() != live {
				t.Errorf("live = %d, want %d", f.rec.Live(), live)
			}
			if got := mo.Buffer().State(); got != resource.Uninitialised {
				t.Errorf("morphing state = %v, want Uninitialised", got)
			}
			want := resource.Uninitialised
			if tt.prepared {
				want = resource.Initialised
			}
			if got := m.Buffer().State(); got != want {
				t.Errorf("matrices state = %v, want %v", got, want)
			}
		})
	}
}

// =============================================================================
// Cache
// =============================================================================

func TestCacheReuses(t *testing.T) {
	f := newFixture(t)
	c := NewCache()
	calls := 0
	create := func(k Key) (*Pipeline, error) {
		calls++
		return New(f.dev, k, WithUniform(MatricesUniform, NewMatrixUbo(f.dev, "m").Buffer()))
	}

	key := DefaultKey(f.prog)
	a, err := c.GetOrCreate(key, create)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.GetOrCreate(DefaultKey(f.prog), create)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || calls != 1 {
		t.Errorf("same key built %d pipelines", calls)
	}

	other := key
	other.DepthStencil = device.OpaqueDepthState()
	if _, err := c.GetOrCreate(other, create); err != nil {
		t.Fatal(err)
	}
	s := c.Stats()
	if s.Len != 2 || s.Hits != 1 || s.Misses != 2 || s.HitRate != 1.0/3.0 {
		t.Errorf("stats = %+v", s)
	}

	live := f.rec.Live()
	c.DestroyAll()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after DestroyAll", c.Len())
	}
	if f.rec.Live() != live-2 {
		t.Errorf("live = %d, want %d", f.rec.Live(), live-2)
	}
}

func TestCacheRemembersFailure(t *testing.T) {
	c := NewCache()
	boom := errors.New("boom")
	calls := 0
	create := func(Key) (*Pipeline, error) {
		calls++
		return nil, boom
	}
	for i := 0; i < 3; i++ {
		if _, err := c.GetOrCreate(Key{}, create); !errors.Is(err, boom) {
			t.Fatalf("GetOrCreate() = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times", calls)
	}
	if s := c.Stats(); s.Failures != 1 || s.Len != 0 {
		t.Errorf("stats = %+v", s)
	}
	c.Forget(Key{})
	_, _ = c.GetOrCreate(Key{}, create)
	if calls != 2 {
		t.Errorf("Forget did not clear the failure")
	}
}

// =============================================================================
// Uniform blocks
// =============================================================================

func TestMatrixUbo(t *testing.T) {
	m := NewMatrixUbo(nil, "m")
	if !m.Model().ApproxEqual(mgl32.Ident4()) {
		t.Error("model should start as identity")
	}
	model := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	m.SetModel(model)
	if !m.Model().ApproxEqual(model) {
		t.Errorf("Model() = %v", m.Model())
	}
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	m.SetView(view)
	if !m.View().ApproxEqual(view) || !m.Projection().ApproxEqual(mgl32.Ident4()) {
		t.Error("view/projection mismatch")
	}
	if m.Buffer().Size() != MatrixUboSize {
		t.Errorf("size = %d", m.Buffer().Size())
	}
}

func TestMorphingUboClamps(t *testing.T) {
	m := NewMorphingUbo(nil, "morph")
	for _, tt := range []struct{ in, want float32 }{{0.25, 0.25}, {-1, 0}, {3, 1}} {
		m.SetTime(tt.in)
		if got := m.Time(); got != tt.want {
			t.Errorf("SetTime(%v): Time() = %v", tt.in, got)
		}
	}
}
