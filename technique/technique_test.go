// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/frame"
	"github.com/gogpu/castor/recording"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
)

// =============================================================================
// Helpers
// =============================================================================

func newDevice(opts ...recording.Option) (*recording.Recorder, *device.Device) {
	rec := recording.NewRecorder(opts...)
	return rec, device.New(rec)
}

func newTarget(t *testing.T, d *device.Device) *Target {
	t.Helper()
	target := NewTarget(d, "main", 64, 48, WithTargetDepth(gputypes.TextureFormatDepth24Plus))
	if err := target.Initialise(); err != nil {
		t.Fatalf("target Initialise() = %v", err)
	}
	return target
}

// testScene returns a graph with a cube five units in front of the camera,
// one light and, for every extra material, another cube using it.
func testScene(t *testing.T, materials ...*scene.Material) (*scene.Graph, *scene.Camera) {
	t.Helper()
	g := scene.NewGraph()
	add := func(name string, mat *scene.Material) {
		n, err := g.CreateNode(name, nil)
		if err != nil {
			t.Fatal(err)
		}
		n.SetPosition(mgl32.Vec3{0, 0, -5})
		if err := g.AddGeometry(scene.NewGeometry(name, scene.NewMesh(name, scene.Cube(1, mat))), n); err != nil {
			t.Fatal(err)
		}
	}
	add("cube", scene.NewMaterial("white"))
	for _, m := range materials {
		add("cube."+m.Name(), m)
	}
	if err := g.AddLight(scene.NewLight("sun", scene.LightDirectional), nil); err != nil {
		t.Fatal(err)
	}
	cam := scene.NewCamera("eye", 64, 48)
	if err := g.AddCamera(cam, nil); err != nil {
		t.Fatal(err)
	}
	return g, cam
}

type failingEffect struct {
	openPass bool
}

func (failingEffect) Name() string { return "failing" }

func (f failingEffect) Apply(c *Context, _, dst *resource.RenderBuffer) error {
	if f.openPass {
		err := c.Device().BeginPass(device.PassDescriptor{
			Colors: []device.ColorAttachment{{Texture: dst.Handle(), Clear: true}},
		})
		if err != nil {
			return err
		}
	}
	return errors.New("effect exploded")
}

type failingToneMapping struct{ calls int }

func (*failingToneMapping) Name() string { return "broken" }

func (f *failingToneMapping) Apply(*Context, *resource.RenderBuffer, *resource.RenderBuffer) error {
	f.calls++
	return errors.New("no tone today")
}

// =============================================================================
// State machine
// =============================================================================

func TestRenderObjectsBeforePrepare(t *testing.T) {
	rec, d := newDevice()
	tech, err := New(d, NewForward())
	if err != nil {
		t.Fatal(err)
	}
	g, cam := testScene(t)

	err = tech.RenderObjects(g, cam)
	var te *TargetError
	if !errors.As(err, &te) || !errors.Is(err, ErrTarget) {
		t.Fatalf("RenderObjects() = %v, want *TargetError", err)
	}
	if tech.State() != Idle {
		t.Errorf("State() = %v, want Idle", tech.State())
	}
	if rec.Len() != 0 {
		t.Errorf("backend saw %d commands", rec.Len())
	}
}

func TestPrepareRejectsUninitialisedTarget(t *testing.T) {
	_, d := newDevice()
	tech, _ := New(d, NewForward())

	if err := tech.Prepare(NewTarget(d, "lazy", 64, 48)); !errors.Is(err, ErrTarget) {
		t.Errorf("Prepare(uninitialised) = %v, want ErrTarget", err)
	}
	if err := tech.Prepare(nil); !errors.Is(err, ErrTarget) {
		t.Errorf("Prepare(nil) = %v, want ErrTarget", err)
	}
	if tech.State() != Idle {
		t.Errorf("State() = %v, want Idle", tech.State())
	}
}

func TestStepsOutOfOrder(t *testing.T) {
	_, d := newDevice()
	tech, _ := New(d, NewForward())
	target := newTarget(t, d)

	if err := tech.ApplyPostEffects(); !errors.Is(err, ErrState) {
		t.Errorf("ApplyPostEffects() in Idle = %v", err)
	}
	if err := tech.Present(); !errors.Is(err, ErrState) {
		t.Errorf("Present() in Idle = %v", err)
	}
	if err := tech.Prepare(target); err != nil {
		t.Fatal(err)
	}
	if err := tech.Prepare(target); !errors.Is(err, ErrState) {
		t.Errorf("second Prepare() = %v", err)
	}
	if err := tech.ApplyToneMapping(); !errors.Is(err, ErrState) {
		t.Errorf("ApplyToneMapping() in TargetPrepared = %v", err)
	}
	if tech.State() != TargetPrepared {
		t.Errorf("State() = %v, want TargetPrepared", tech.State())
	}
	tech.Abandon()
	if tech.State() != Idle || d.InPass() {
		t.Errorf("after Abandon: state %v, in pass %v", tech.State(), d.InPass())
	}
}

func TestNewWithoutStrategy(t *testing.T) {
	_, d := newDevice()
	if _, err := New(d, nil); !errors.Is(err, ErrNoStrategy) {
		t.Errorf("New(nil) = %v", err)
	}
}

// =============================================================================
// Frames
// =============================================================================

func TestForwardFrame(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward())
	target := newTarget(t, d)
	g, cam := testScene(t)

	steps := []struct {
		name string
		run  func() error
		want State
	}{
		{"prepare", func() error { return tech.Prepare(target) }, TargetPrepared},
		{"objects", func() error { return tech.RenderObjects(g, cam) }, ObjectsRendered},
		{"post", tech.ApplyPostEffects, PostEffectsApplied},
		{"tone", tech.ApplyToneMapping, PostEffectsApplied},
		{"present", tech.Present, Idle},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if tech.State() != s.want {
			t.Fatalf("after %s: state %v, want %v", s.name, tech.State(), s.want)
		}
	}

	if got := rec.Count(recording.CmdDraw); got != 2 {
		t.Errorf("draws = %d, want 2 (cube and tone mapping)", got)
	}
	if got := rec.Count(recording.CmdBeginPass); got != 2 {
		t.Errorf("passes = %d, want 2", got)
	}
	if got := rec.Count(recording.CmdPresent); got != 1 {
		t.Errorf("presents = %d, want 1", got)
	}
	if s := tech.Stats(); s.Draws != 1 || s.Frames != 1 || s.Fallbacks != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestForwardMultisamplesAndResolves(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward(), WithSamples(4))
	target := newTarget(t, d)
	if err := tech.Prepare(target); err != nil {
		t.Fatal(err)
	}
	defer tech.Abandon()

	var begin *recording.BeginPassCommand
	for _, c := range rec.Commands() {
		if bp, ok := c.(recording.BeginPassCommand); ok {
			begin = &bp
		}
	}
	if begin == nil {
		t.Fatal("no pass begun")
	}
	colour := begin.Pass.Colors[0]
	if !colour.Resolve.IsValid() || !colour.Clear {
		t.Errorf("colour attachment = %+v, want cleared with resolve", colour)
	}
	desc, _ := rec.Describe(colour.Texture)
	if td := desc.(device.TextureDescriptor); td.Samples != 4 || td.Format != gputypes.TextureFormatRGBA16Float {
		t.Errorf("msaa buffer = %+v", td)
	}
}

func TestPipelinesAreReusedAcrossFrames(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward())
	target := newTarget(t, d)
	g, cam := testScene(t)

	for i := 0; i < 3; i++ {
		if err := tech.Render(target, g, cam); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	s := tech.Context().Pipelines().Stats()
	if s.Len != 2 || s.Misses != 2 {
		t.Errorf("pipeline cache = %+v, want 2 pipelines built once", s)
	}
	if got := rec.Count(recording.CmdPresent); got != 3 {
		t.Errorf("presents = %d", got)
	}
}

func TestUnsupportedPipelineFallsBack(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward())
	target := newTarget(t, d)

	wire := scene.NewMaterial("wire")
	wire.Pass(0).Wireframe = true
	g, cam := testScene(t, wire)

	if err := tech.Render(target, g, cam); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	s := tech.Stats()
	if s.Fallbacks != 1 || s.Draws != 2 || s.Skipped != 0 {
		t.Errorf("stats = %+v, want one fallback draw", s)
	}
	if got := rec.Count(recording.CmdDraw); got != 3 {
		t.Errorf("draws = %d, want 3", got)
	}
	if tech.Context().Pipelines().Stats().Failures != 1 {
		t.Error("wireframe pipeline should have failed once")
	}
}

func TestFailingPostEffectIsSkipped(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward(),
		WithPostEffects(failingEffect{openPass: true}, Grayscale{}, failingEffect{}))
	target := newTarget(t, d)
	g, cam := testScene(t)

	if err := tech.Render(target, g, cam); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if s := tech.Stats(); s.EffectsSkipped != 2 {
		t.Errorf("EffectsSkipped = %d, want 2", s.EffectsSkipped)
	}
	// cube, grayscale, tone mapping
	if got := rec.Count(recording.CmdDraw); got != 3 {
		t.Errorf("draws = %d, want 3", got)
	}
	if got := rec.Count(recording.CmdPresent); got != 1 {
		t.Errorf("presents = %d, want 1", got)
	}
}

func TestFailingToneMappingFallsBackToLinear(t *testing.T) {
	rec, d := newDevice()
	broken := &failingToneMapping{}
	tech, _ := New(d, NewForward(), WithToneMapping(broken))
	target := newTarget(t, d)
	g, cam := testScene(t)

	if err := tech.Render(target, g, cam); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if broken.calls != 1 {
		t.Errorf("tone mapping called %d times", broken.calls)
	}
	if got := rec.Count(recording.CmdDraw); got != 2 {
		t.Errorf("draws = %d, want cube and linear tone mapping", got)
	}
}

func TestPresentDrainsPostRender(t *testing.T) {
	_, d := newDevice()
	q := frame.NewQueue()
	tech, _ := New(d, NewForward(), WithEvents(q))
	target := newTarget(t, d)
	g, cam := testScene(t)

	drained := false
	if err := q.PostFunc(frame.PostRender, "screenshot", func() error {
		drained = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := q.BeginTick(); err != nil {
		t.Fatal(err)
	}
	for _, class := range []frame.EventType{frame.PreRender, frame.QueueRender} {
		if err := q.Process(class); err != nil {
			t.Fatal(err)
		}
	}
	if err := tech.Prepare(target); err != nil {
		t.Fatal(err)
	}
	if err := tech.RenderObjects(g, cam); err != nil {
		t.Fatal(err)
	}
	if err := tech.ApplyPostEffects(); err != nil {
		t.Fatal(err)
	}
	if drained {
		t.Fatal("PostRender event applied before Present")
	}
	if err := tech.Present(); err != nil {
		t.Fatal(err)
	}
	if !drained {
		t.Error("Present did not drain PostRender")
	}
	if rolled := q.EndTick(); rolled != 0 {
		t.Errorf("EndTick rolled %d events", rolled)
	}
}

func TestDeferredFrame(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewDeferred())
	target := newTarget(t, d)

	glass := scene.NewMaterial("glass")
	glass.Pass(0).Opacity = 0.5
	g, cam := testScene(t, glass)

	if err := tech.Render(target, g, cam); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	// geometry, lighting, blended, tone mapping
	if got := rec.Count(recording.CmdBeginPass); got != 4 {
		t.Errorf("passes = %d, want 4", got)
	}
	// opaque cube, lighting, glass cube, tone mapping
	if got := rec.Count(recording.CmdDraw); got != 4 {
		t.Errorf("draws = %d, want 4", got)
	}
	if s := tech.Stats(); s.Draws != 2 || s.Skipped != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDeferredNeedsFloatTargets(t *testing.T) {
	_, d := newDevice(recording.WithFeatures(device.FeatureMultisample))
	tech, _ := New(d, NewDeferred())
	target := newTarget(t, d)

	err := tech.Prepare(target)
	if !errors.Is(err, ErrTarget) || !errors.Is(err, ErrUnsupported) {
		t.Errorf("Prepare() = %v, want TargetError wrapping ErrUnsupported", err)
	}
	if tech.State() != Idle {
		t.Errorf("State() = %v", tech.State())
	}
}

func TestDeviceFailureAbandonsFrame(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward())
	target := newTarget(t, d)
	g, cam := testScene(t)

	rec.SetFailure(func(c recording.Command) error {
		if c.Type() == recording.CmdDraw {
			return errors.New("device lost")
		}
		return nil
	})
	if err := tech.Prepare(target); err != nil {
		t.Fatal(err)
	}
	if err := tech.RenderObjects(g, cam); !errors.Is(err, device.ErrBackend) {
		t.Fatalf("RenderObjects() = %v, want backend error", err)
	}
	if tech.State() != Idle || d.InPass() {
		t.Errorf("after failure: state %v, in pass %v", tech.State(), d.InPass())
	}
	if _, ok := d.CurrentState(device.StateBlend); ok {
		t.Error("state cache survived the abandoned frame")
	}
	if tech.Stats().Abandoned != 1 {
		t.Errorf("Abandoned = %d", tech.Stats().Abandoned)
	}

	rec.SetFailure(nil)
	if err := tech.Render(target, g, cam); err != nil {
		t.Errorf("next frame = %v", err)
	}
}

// =============================================================================
// Resources
// =============================================================================

func TestCleanupReleasesEverything(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward(), WithPostEffects(Grayscale{}))
	target := newTarget(t, d)
	g, cam := testScene(t)

	if err := tech.Render(target, g, cam); err != nil {
		t.Fatal(err)
	}
	tech.Cleanup()
	target.Destroy()
	if rec.Live() != 0 {
		t.Errorf("Live() = %d after cleanup", rec.Live())
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestTargetResizeReinitialisesStrategy(t *testing.T) {
	rec, d := newDevice()
	tech, _ := New(d, NewForward())
	target := newTarget(t, d)
	g, cam := testScene(t)

	if err := tech.Render(target, g, cam); err != nil {
		t.Fatal(err)
	}
	live := rec.Live()
	if err := target.Resize(128, 96); err != nil {
		t.Fatal(err)
	}
	if err := tech.Render(target, g, cam); err != nil {
		t.Fatal(err)
	}
	if rec.Live() != live {
		t.Errorf("Live() = %d after resize, want %d", rec.Live(), live)
	}
	desc, _ := rec.Describe(tech.Strategy().Output().Handle())
	if td := desc.(device.TextureDescriptor); td.Width != 128 || td.Height != 96 {
		t.Errorf("strategy output = %dx%d", td.Width, td.Height)
	}
}

func TestTargetResizeIsAtomic(t *testing.T) {
	rec, d := newDevice()
	target := newTarget(t, d)

	rec.SetFailure(func(c recording.Command) error {
		if cc, ok := c.(recording.CreateCommand); ok && cc.Descriptor.Name() == "main.depth" {
			return errors.New("out of memory")
		}
		return nil
	})
	if err := target.Resize(256, 256); !errors.Is(err, ErrTarget) {
		t.Fatalf("Resize() = %v, want TargetError", err)
	}
	if w, h := target.Size(); w != 64 || h != 48 {
		t.Errorf("Size() = %dx%d, want 64x48", w, h)
	}
	if w, h := target.Colour().Size(); w != 64 || h != 48 {
		t.Errorf("colour = %dx%d, want 64x48", w, h)
	}
	if !target.Ready() {
		t.Error("target not ready after failed resize")
	}
}

// =============================================================================
// Uniform blocks
// =============================================================================

func TestLightsUboLayout(t *testing.T) {
	_, d := newDevice()
	l := NewLightsUbo(d, "lights")
	lights := make([]*scene.Light, MaxLights+2)
	for i := range lights {
		lights[i] = scene.NewLight("l", scene.LightPoint)
	}
	l.Set(1, mgl32.Vec3{0.1, 0.2, 0.3}, mgl32.Vec3{0, 0, 5}, lights)
	if l.Count() != MaxLights {
		t.Errorf("Count() = %d, want %d", l.Count(), MaxLights)
	}
	if got := l.Buffer().Float32(4); got != 0.2 {
		t.Errorf("ambient.g = %v", got)
	}
	if got := l.Buffer().Float32(lightsHeader + 12); got != float32(scene.LightPoint) {
		t.Errorf("first light kind = %v", got)
	}

	l.Set(1, mgl32.Vec3{}, mgl32.Vec3{}, nil)
	if l.Count() != MaxLights {
		t.Error("second Set in the same frame rewrote the block")
	}
}

func TestOperators(t *testing.T) {
	if NewOperator("filmic") != nil {
		t.Error("unknown operator accepted")
	}
	for _, name := range []string{LinearToneMapping, ReinhardToneMapping} {
		op := NewOperator(name)
		if op == nil || op.Name() != name || op.Exposure != 1 {
			t.Errorf("NewOperator(%q) = %+v", name, op)
		}
	}
	_, d := newDevice()
	ubo := NewToneMappingUbo(d, "tm")
	if ubo.Exposure() != 1 || ubo.Gamma() != 2.2 {
		t.Errorf("defaults = %v, %v", ubo.Exposure(), ubo.Gamma())
	}
}
