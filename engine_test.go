// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/castor/frame"
	"github.com/gogpu/castor/plugin"
	"github.com/gogpu/castor/recording"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
	"github.com/gogpu/castor/technique"
)

// =============================================================================
// Helpers
// =============================================================================

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 64, 48
	cfg.FrameRate = 0
	return cfg
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *recording.Recorder) {
	t.Helper()
	rec := recording.NewRecorder()
	opts = append([]Option{WithConfig(testConfig()), WithBackend(rec)}, opts...)
	e, err := New(opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
	return e, rec
}

func addCube(t *testing.T, e *Engine) {
	t.Helper()
	n, err := e.Scene().CreateNode("cube", nil)
	if err != nil {
		t.Fatal(err)
	}
	n.SetPosition(mgl32.Vec3{0, 0, -5})
	mesh := scene.NewMesh("cube", scene.Cube(1, scene.NewMaterial("white")))
	if err := e.Scene().AddGeometry(scene.NewGeometry("cube", mesh), n); err != nil {
		t.Fatal(err)
	}
	if err := e.Scene().AddLight(scene.NewLight("sun", scene.LightDirectional), nil); err != nil {
		t.Fatal(err)
	}
}

// explodingStrategy panics while drawing.
type explodingStrategy struct{}

func (explodingStrategy) Name() string                                        { return "exploding" }
func (explodingStrategy) Initialise(*technique.Context, uint32, uint32) error { return nil }
func (explodingStrategy) Begin(*technique.Context) error                      { return nil }
func (explodingStrategy) Render(*technique.Context, []*scene.Geometry) error  { panic("boom") }
func (explodingStrategy) Output() *resource.RenderBuffer                      { return nil }
func (explodingStrategy) Cleanup()                                            {}

func explodingPlugin() plugin.Library {
	return plugin.Static(&plugin.Func{
		PluginName: "exploding",
		Kind:       plugin.TypeTechnique,
		Load: func(r plugin.Registrar) error {
			r.RegisterTechnique("exploding", func() technique.Strategy { return explodingStrategy{} })
			return nil
		},
	})
}

// =============================================================================
// Construction
// =============================================================================

func TestNewRegistersBuiltins(t *testing.T) {
	e, _ := newEngine(t)
	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"techniques", e.Plugins().Techniques(), []string{"deferred", "forward"}},
		{"post effects", e.Plugins().PostEffects(), []string{"grayscale"}},
		{"tone mappings", e.Plugins().ToneMappings(), []string{"linear", "reinhard"}},
		{"renderers", e.Plugins().Renderers(), []string{"native", "noop", "recording"}},
	}
	for _, tt := range tests {
		if !slices.Equal(tt.got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if e.Renderer() != "recording" || e.Technique().Name() != "forward" {
		t.Errorf("renderer %q technique %q", e.Renderer(), e.Technique().Name())
	}
	if w, h := e.Target().Size(); w != 64 || h != 48 {
		t.Errorf("target size = %dx%d", w, h)
	}
}

func TestNewSelectsRendererPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.Renderer = RendererRecording
	e, err := New(WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer e.Close()
	if e.Renderer() != RendererRecording || e.Device().Name() != "recording" {
		t.Errorf("renderer = %q, device = %q", e.Renderer(), e.Device().Name())
	}

	cfg.Renderer = "vapour"
	if _, err := New(WithConfig(cfg)); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("New(unknown renderer) = %v, want ErrNoRenderer", err)
	}
}

func TestNewRejectsUnknownNames(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"technique", func(c *Config) { c.Technique = "raytraced" }, ErrUnknownTechnique},
		{"post effect", func(c *Config) { c.PostEffects = []string{"bloom"} }, ErrUnknownPostEffect},
		{"tone mapping", func(c *Config) { c.ToneMapping = "aces" }, ErrUnknownToneMapping},
		{"invalid config", func(c *Config) { c.SampleCount = 3 }, ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			rec := recording.NewRecorder()
			_, err := New(WithConfig(cfg), WithBackend(rec))
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() = %v, want %v", err, tt.want)
			}
			if tt.want != ErrConfig && !rec.Closed() {
				t.Error("backend left open after a failed New")
			}
			if rec.Live() != 0 {
				t.Errorf("%d resources leaked", rec.Live())
			}
		})
	}
}

func TestNewScansMissingPluginDir(t *testing.T) {
	cfg := testConfig()
	cfg.PluginDirs = []string{t.TempDir() + "/absent"}
	e, err := New(WithConfig(cfg), WithBackend(recording.NewRecorder()))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Error(err)
	}
}

func TestNoopRenderer(t *testing.T) {
	cfg := testConfig()
	cfg.Renderer = RendererNoop
	e, err := New(WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if !e.Target().Ready() {
		t.Error("target not initialised on the noop renderer")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

// =============================================================================
// Frames
// =============================================================================

func TestRenderFrame(t *testing.T) {
	e, rec := newEngine(t)
	addCube(t, e)
	if err := e.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame() = %v", err)
	}
	if got := rec.Count(recording.CmdDraw); got != 2 {
		t.Errorf("draws = %d, want 2 (cube and tone mapping)", got)
	}
	if got := rec.Count(recording.CmdPresent); got != 1 {
		t.Errorf("presents = %d, want 1", got)
	}
	if s := e.Stats(); s.Frames != 1 || s.Abandoned != 0 || s.Technique.Frames != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestEventsRunInPriorityOrderAroundTheFrame(t *testing.T) {
	e, rec := newEngine(t)
	var order []string
	post := func(typ frame.EventType, name string) {
		err := e.PostFunc(typ, name, func() error {
			order = append(order, name)
			if typ == frame.PostRender && rec.Count(recording.CmdPresent) != 1 {
				t.Error("PostRender event ran before the frame was presented")
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	post(frame.PostRender, "post")
	post(frame.QueueRender, "queue")
	post(frame.PreRender, "pre.1")
	post(frame.PreRender, "pre.2")

	if err := e.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	want := []string{"pre.1", "pre.2", "queue", "post"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestEventPostedDuringFrameWaits(t *testing.T) {
	e, _ := newEngine(t)
	var ran int
	err := e.PostFunc(frame.PreRender, "outer", func() error {
		return e.PostFunc(frame.PreRender, "inner", func() error {
			ran++
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if ran != 0 {
		t.Fatal("event posted during the frame ran in the same frame")
	}
	if err := e.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if ran != 1 {
		t.Errorf("inner ran %d times, want 1", ran)
	}
}

func TestFailingEventAbandonsFrame(t *testing.T) {
	e, rec := newEngine(t)
	var queued int
	if err := e.PostFunc(frame.PreRender, "broken", func() error { return errors.New("no") }); err != nil {
		t.Fatal(err)
	}
	if err := e.PostFunc(frame.QueueRender, "later", func() error { queued++; return nil }); err != nil {
		t.Fatal(err)
	}

	err := e.RenderFrame()
	if !errors.Is(err, frame.ErrApply) {
		t.Fatalf("RenderFrame() = %v, want ApplyError", err)
	}
	if rec.Count(recording.CmdPresent) != 0 || queued != 0 {
		t.Errorf("abandoned frame presented %d times, ran %d events", rec.Count(recording.CmdPresent), queued)
	}

	if err := e.RenderFrame(); err != nil {
		t.Fatalf("second RenderFrame() = %v", err)
	}
	if queued != 1 {
		t.Errorf("rolled event ran %d times, want 1", queued)
	}
	if s := e.Stats(); s.Frames != 1 || s.Abandoned != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestContinuePolicyKeepsFrame(t *testing.T) {
	cfg := testConfig()
	cfg.EventFailurePolicy = "continue"
	e, rec := newEngine(t, WithConfig(cfg))
	if err := e.PostFunc(frame.PreRender, "broken", func() error { return errors.New("no") }); err != nil {
		t.Fatal(err)
	}
	if err := e.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame() = %v", err)
	}
	if rec.Count(recording.CmdPresent) != 1 {
		t.Error("frame not presented")
	}
}

func TestPanicAbandonsFrame(t *testing.T) {
	e, _ := newEngine(t, WithPlugins(explodingPlugin()))
	if err := e.SetTechnique("exploding"); err != nil {
		t.Fatal(err)
	}
	err := e.RenderFrame()
	if !errors.Is(err, ErrFramePanic) {
		t.Fatalf("RenderFrame() = %v, want ErrFramePanic", err)
	}
	if e.Technique().State() != technique.Idle {
		t.Errorf("technique state = %v, want Idle", e.Technique().State())
	}
	if e.Events().Ticking() {
		t.Error("tick left open after a panic")
	}
	if s := e.Stats(); s.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", s.Abandoned)
	}
}

func TestSetTechnique(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.SetTechnique("deferred"); err != nil {
		t.Fatal(err)
	}
	if e.Technique().Name() != "forward" {
		t.Fatal("technique switched before the next frame")
	}
	if err := e.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame() = %v", err)
	}
	if e.Technique().Name() != "deferred" || e.Config().Technique != "deferred" {
		t.Errorf("technique = %q", e.Technique().Name())
	}
	if err := e.SetTechnique("raytraced"); !errors.Is(err, ErrUnknownTechnique) {
		t.Errorf("SetTechnique(unknown) = %v", err)
	}
}

func TestResize(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if err := e.Resize(32, 16); err != nil {
		t.Fatal(err)
	}
	if err := e.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame() = %v", err)
	}
	if w, h := e.Target().Size(); w != 32 || h != 16 {
		t.Errorf("target size = %dx%d, want 32x16", w, h)
	}
	if e.Camera().Projection() == (mgl32.Mat4{}) {
		t.Error("camera projection is empty")
	}
}

// =============================================================================
// Run and Close
// =============================================================================

func TestRunUntilCancelled(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var nested, closing error
	var frames int
	var tick func() error
	tick = func() error {
		frames++
		if frames == 1 {
			nested = e.Run(ctx)
			closing = e.Close()
		}
		if frames == 3 {
			cancel()
			return nil
		}
		return e.PostFunc(frame.PostRender, "tick", tick)
	}
	if err := e.PostFunc(frame.PostRender, "tick", tick); err != nil {
		t.Fatal(err)
	}

	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if frames != 3 || e.Stats().Frames != 3 {
		t.Errorf("frames = %d, engine frames = %d", frames, e.Stats().Frames)
	}
	if !errors.Is(nested, ErrRunning) || !errors.Is(closing, ErrRunning) {
		t.Errorf("nested Run = %v, Close = %v, want ErrRunning", nested, closing)
	}
}

func TestClose(t *testing.T) {
	rec := recording.NewRecorder()
	e, err := New(WithConfig(testConfig()), WithBackend(rec))
	if err != nil {
		t.Fatal(err)
	}
	addCube(t, e)
	if err := e.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !rec.Closed() || rec.Live() != 0 {
		t.Errorf("backend closed %v with %d live resources", rec.Closed(), rec.Live())
	}
	if len(e.Plugins().Plugins()) != 0 {
		t.Error("plugins still loaded")
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := e.RenderFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("RenderFrame after Close = %v, want ErrClosed", err)
	}
}
