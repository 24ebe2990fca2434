// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/frame"
	"github.com/gogpu/castor/internal/logging"
	"github.com/gogpu/castor/plugin"
	"github.com/gogpu/castor/scene"
	"github.com/gogpu/castor/shader"
	"github.com/gogpu/castor/technique"
)

// Stats are cumulative engine counters.
type Stats struct {
	Frames uint64
	// Abandoned counts frames that returned an error.
	Abandoned uint64
	Device    device.Stats
	Events    frame.Stats
	Technique technique.Stats
}

// Engine owns the device, the frame event queue, the plugin registry and
// the active render technique.
//
// Post, PostFunc, SetTechnique and Resize may be called from any goroutine.
// Every other method belongs to the render thread: the goroutine that
// created the engine and calls RenderFrame or Run.
type Engine struct {
	cfg      Config
	plugins  *plugin.Registry
	events   *frame.Queue
	compiler *shader.Compiler
	renderer string

	dev    *device.Device
	target *technique.Target
	tech   *technique.Technique
	graph  *scene.Graph
	camera *scene.Camera

	frames    uint64
	abandoned uint64
	running   atomic.Bool
	closed    bool
}

// New creates an engine: it loads the built-in and configured plugins,
// opens a renderer and creates the main target and technique.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	regOpts := []plugin.Option{plugin.WithRendererPriority(rendererPriority...)}
	if o.loader != nil {
		regOpts = append(regOpts, plugin.WithLoader(o.loader))
	}
	e := &Engine{
		cfg:      cfg,
		plugins:  plugin.NewRegistry(regOpts...),
		events:   frame.NewQueue(frame.WithFailurePolicy(cfg.Policy())),
		compiler: shader.NewCompiler(),
		graph:    scene.NewGraph(),
	}
	if err := e.init(o); err != nil {
		_ = e.Close()
		return nil, err
	}
	logging.Logger().Info("castor: engine ready",
		"renderer", e.renderer,
		"technique", e.tech.Name(),
		"width", cfg.Width,
		"height", cfg.Height)
	return e, nil
}

func (e *Engine) init(o options) error {
	if o.backend != nil {
		e.dev = device.New(o.backend)
		e.renderer = e.dev.Name()
	}
	if err := e.loadPlugins(o.plugins); err != nil {
		return err
	}
	if e.dev == nil {
		b, name, err := e.openRenderer()
		if err != nil {
			return err
		}
		e.dev = device.New(b)
		e.renderer = name
	}

	e.target = technique.NewTarget(e.dev, "main", e.cfg.Width, e.cfg.Height,
		technique.WithTargetDepth(gputypes.TextureFormatDepth24Plus))
	if err := e.target.Initialise(); err != nil {
		return err
	}

	tech, err := e.newTechnique(e.cfg.Technique)
	if err != nil {
		return err
	}
	e.tech = tech

	e.camera = scene.NewCamera("main", e.cfg.Width, e.cfg.Height)
	return e.graph.AddCamera(e.camera, nil)
}

func (e *Engine) loadPlugins(extra []plugin.Library) error {
	for _, p := range builtins() {
		if err := e.plugins.Load(plugin.Static(p)); err != nil {
			return err
		}
	}
	for _, lib := range extra {
		if err := e.plugins.Load(lib); err != nil {
			return err
		}
	}
	for _, dir := range e.cfg.PluginDirs {
		if err := e.plugins.Scan(dir); err != nil {
			logging.Logger().Warn("castor: plugin scan", "dir", dir, "err", err)
		}
	}
	return nil
}

// openRenderer opens the configured renderer, or the best one that opens.
func (e *Engine) openRenderer() (device.Backend, string, error) {
	if name := e.cfg.Renderer; name != "" {
		f, ok := e.plugins.Renderer(name)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrNoRenderer, name)
		}
		b, err := f()
		if err != nil {
			return nil, "", fmt.Errorf("castor: open renderer %q: %w", name, err)
		}
		return b, name, nil
	}

	best, _ := e.plugins.BestRenderer()
	candidates := e.plugins.Renderers()
	if best != "" {
		candidates = slices.DeleteFunc(candidates, func(n string) bool { return n == best })
		candidates = append([]string{best}, candidates...)
	}
	errs := []error{ErrNoRenderer}
	for _, name := range candidates {
		f, ok := e.plugins.Renderer(name)
		if !ok {
			continue
		}
		b, err := f()
		if err == nil {
			return b, name, nil
		}
		logging.Logger().Warn("castor: renderer unavailable", "renderer", name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, "", errors.Join(errs...)
}

func (e *Engine) newTechnique(name string) (*technique.Technique, error) {
	strategy, ok := e.plugins.Technique(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTechnique, name)
	}
	opts := []technique.Option{
		technique.WithSamples(e.cfg.SampleCount),
		technique.WithCompiler(e.compiler),
		technique.WithEvents(e.events),
	}
	for _, n := range e.cfg.PostEffects {
		pe, ok := e.plugins.PostEffect(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPostEffect, n)
		}
		opts = append(opts, technique.WithPostEffects(pe))
	}
	if n := e.cfg.ToneMapping; n != "" {
		tm, ok := e.plugins.ToneMapping(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToneMapping, n)
		}
		opts = append(opts, technique.WithToneMapping(tm))
	}
	return technique.New(e.dev, strategy, opts...)
}

// Config returns the configuration, including runtime changes made by
// SetTechnique and Resize.
func (e *Engine) Config() Config { return e.cfg }

// Renderer returns the name of the open renderer.
func (e *Engine) Renderer() string { return e.renderer }

// Device returns the render device.
func (e *Engine) Device() *device.Device { return e.dev }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Events returns the frame event queue.
func (e *Engine) Events() *frame.Queue { return e.events }

// Technique returns the active render technique.
func (e *Engine) Technique() *technique.Technique { return e.tech }

// Target returns the main render target.
func (e *Engine) Target() *technique.Target { return e.target }

// Scene returns the scene graph.
func (e *Engine) Scene() *scene.Graph { return e.graph }

// Camera returns the camera frames are rendered through.
func (e *Engine) Camera() *scene.Camera { return e.camera }

// SetCamera renders through cam from the next frame on.
func (e *Engine) SetCamera(cam *scene.Camera) { e.camera = cam }

// Post enqueues ev for the next frame.
func (e *Engine) Post(ev frame.Event) error { return e.events.Post(ev) }

// PostFunc enqueues fn as an event of class t.
func (e *Engine) PostFunc(t frame.EventType, name string, fn func() error) error {
	return e.events.PostFunc(t, name, fn)
}

// SetTechnique switches to the technique registered as name at the start of
// the next frame. The old technique is cleaned up once the new one exists.
func (e *Engine) SetTechnique(name string) error {
	if !slices.Contains(e.plugins.Techniques(), name) {
		return fmt.Errorf("%w: %q", ErrUnknownTechnique, name)
	}
	return e.events.PostFunc(frame.QueueRender, "castor.technique."+name, func() error {
		return e.switchTechnique(name)
	})
}

func (e *Engine) switchTechnique(name string) error {
	if e.tech != nil && e.tech.Name() == name {
		return nil
	}
	next, err := e.newTechnique(name)
	if err != nil {
		return err
	}
	prev := e.tech
	e.tech = next
	e.cfg.Technique = name
	if prev != nil {
		prev.Cleanup()
	}
	logging.Logger().Info("castor: technique selected", "technique", name)
	return nil
}

// Resize resizes the main target and camera at the start of the next frame.
func (e *Engine) Resize(w, h uint32) error {
	return e.events.PostFunc(frame.PreRender, "castor.resize", func() error {
		if err := e.target.Resize(w, h); err != nil {
			return err
		}
		e.cfg.Width, e.cfg.Height = w, h
		if e.camera != nil {
			e.camera.Resize(w, h)
		}
		return nil
	})
}

// RenderFrame runs one frame: the PreRender and QueueRender events, then
// every technique step. The technique's Present drains the PostRender
// events. A failing event or step abandons the frame; events not yet
// applied roll over to the next frame. A panic is recovered and returned
// wrapping ErrFramePanic.
func (e *Engine) RenderFrame() (err error) {
	if e.closed {
		return ErrClosed
	}
	if err := e.events.BeginTick(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			e.tech.Abandon()
			err = fmt.Errorf("%w: %v", ErrFramePanic, r)
		}
		e.events.EndTick()
		if err != nil {
			e.abandoned++
			logging.Logger().Warn("castor: frame abandoned", "frame", e.frames+e.abandoned, "err", err)
			return
		}
		e.frames++
	}()

	for _, t := range []frame.EventType{frame.PreRender, frame.QueueRender} {
		if err := e.events.Process(t); err != nil {
			return err
		}
	}
	return e.tech.Render(e.target, e.graph, e.camera)
}

// Run renders frames until ctx is done, paced by the configured frame
// rate. It locks the calling goroutine to its OS thread; backends that
// need thread affinity must be created on that thread too. Frame errors
// are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var pace <-chan time.Time
	if e.cfg.FrameRate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(e.cfg.FrameRate))
		defer ticker.Stop()
		pace = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := e.RenderFrame(); errors.Is(err, ErrClosed) {
			return err
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-pace:
			}
		}
	}
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{Frames: e.frames, Abandoned: e.abandoned, Events: e.events.Stats()}
	if e.dev != nil {
		s.Device = e.dev.Stats()
	}
	if e.tech != nil {
		s.Technique = e.tech.Stats()
	}
	return s
}

// Close releases the technique, its meshes and the target, closes
// the device and unloads every plugin in reverse load order. Events still
// queued are discarded.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	if e.running.Load() {
		return ErrRunning
	}
	e.closed = true
	e.events.Close()
	if e.tech != nil {
		e.tech.Cleanup()
	}
	if e.target != nil {
		e.target.Destroy()
	}
	var errs []error
	if e.dev != nil {
		errs = append(errs, e.dev.Close())
	}
	errs = append(errs, e.plugins.Close())
	return errors.Join(errs...)
}
