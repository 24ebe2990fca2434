// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"
	"fmt"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/frame"
	"github.com/gogpu/castor/internal/logging"
	"github.com/gogpu/castor/resource"
	"github.com/gogpu/castor/scene"
	"github.com/gogpu/castor/shader"
)

// Option configures a Technique.
type Option func(*options)

type options struct {
	name        string
	samples     uint32
	compiler    *shader.Compiler
	events      *frame.Queue
	effects     []PostEffect
	toneMapping ToneMapping
}

func defaultOptions() options {
	return options{samples: 4}
}

// WithName names the technique. The default is the strategy name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSamples requests n samples per pixel for strategies that multisample.
// The count is clamped to the device limits. Default: 4.
func WithSamples(n uint32) Option {
	return func(o *options) { o.samples = n }
}

// WithCompiler shares a shader compiler with the technique.
func WithCompiler(c *shader.Compiler) Option {
	return func(o *options) { o.compiler = c }
}

// WithEvents lets Present drain the PostRender events of q.
func WithEvents(q *frame.Queue) Option {
	return func(o *options) { o.events = q }
}

// WithPostEffects appends post effects, applied in order.
func WithPostEffects(effects ...PostEffect) Option {
	return func(o *options) { o.effects = append(o.effects, effects...) }
}

// WithToneMapping selects the tone mapping. Default: linear.
func WithToneMapping(tm ToneMapping) Option {
	return func(o *options) { o.toneMapping = tm }
}

// Technique renders frames through a strategy, a post effect chain and a
// tone mapping. Each frame walks the states
//
//	Idle -> TargetPrepared -> ObjectsRendered -> PostEffectsApplied -> Presented -> Idle
//
// through Prepare, RenderObjects, ApplyPostEffects (followed by
// ApplyToneMapping) and Present. A step called out of order returns
// ErrState and changes nothing; a step that fails abandons the frame and
// returns to Idle.
//
// A Technique belongs to the render thread.
type Technique struct {
	name     string
	ctx      *Context
	strategy Strategy
	effects  []PostEffect
	tone     ToneMapping
	linear   *Operator
	events   *frame.Queue

	state      State
	width      uint32
	height     uint32
	ready      bool
	post       [2]*resource.RenderBuffer
	current    *resource.RenderBuffer
	toneMapped bool
}

// New creates a technique on d driven by strategy.
func New(d *device.Device, strategy Strategy, opts ...Option) (*Technique, error) {
	if strategy == nil {
		return nil, ErrNoStrategy
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = strategy.Name()
	}
	t := &Technique{
		name:     o.name,
		ctx:      newContext(d, o.compiler, o.samples),
		strategy: strategy,
		effects:  o.effects,
		tone:     o.toneMapping,
		linear:   NewOperator(LinearToneMapping),
		events:   o.events,
	}
	if t.tone == nil {
		t.tone = t.linear
	}
	return t, nil
}

// Name returns the strategy name.
func (t *Technique) Name() string { return t.name }

// State returns the lifecycle state.
func (t *Technique) State() State { return t.state }

// Strategy returns the render strategy.
func (t *Technique) Strategy() Strategy { return t.strategy }

// Context returns the shared render context.
func (t *Technique) Context() *Context { return t.ctx }

// Stats returns the cumulative frame counters.
func (t *Technique) Stats() Stats { return t.ctx.stats }

// ToneMapping returns the active tone mapping.
func (t *Technique) ToneMapping() ToneMapping { return t.tone }

// PostEffects returns the post effect chain.
func (t *Technique) PostEffects() []PostEffect { return t.effects }

// AddPostEffect appends e to the chain.
func (t *Technique) AddPostEffect(e PostEffect) { t.effects = append(t.effects, e) }

// SetToneMapping replaces the tone mapping. nil restores the linear
// operator.
func (t *Technique) SetToneMapping(tm ToneMapping) {
	if tm == nil {
		tm = t.linear
	}
	t.tone = tm
}

// SetEvents sets the queue whose PostRender events Present drains.
func (t *Technique) SetEvents(q *frame.Queue) { t.events = q }

func (t *Technique) stepError(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrState, op, t.state)
}

// Prepare binds and clears the render targets of a new frame. It fails
// with a *TargetError, and stays Idle, when target is not Initialised or
// the strategy cannot allocate its buffers for it.
func (t *Technique) Prepare(target *Target) error {
	if t.state != Idle {
		return t.stepError("prepare")
	}
	if target == nil {
		return &TargetError{Target: "<nil>", Reason: "no target"}
	}
	if !target.Ready() {
		return &TargetError{Target: target.Label(), Reason: "not initialised"}
	}
	w, h := target.Size()
	if !t.ready || w != t.width || h != t.height {
		if err := t.initialise(w, h); err != nil {
			return &TargetError{Target: target.Label(), Reason: "allocate " + t.strategy.Name() + " buffers", Err: err}
		}
	}
	t.ctx.begin(target)
	t.current, t.toneMapped = nil, false
	if err := t.strategy.Begin(t.ctx); err != nil {
		t.Abandon()
		return &TargetError{Target: target.Label(), Reason: "begin", Err: err}
	}
	t.state = TargetPrepared
	return nil
}

func (t *Technique) initialise(w, h uint32) error {
	t.releasePost()
	t.ready = false
	if err := t.strategy.Initialise(t.ctx, w, h); err != nil {
		return err
	}
	t.width, t.height, t.ready = w, h, true
	logging.Logger().Info("technique: initialised", "technique", t.name, "strategy", t.strategy.Name(),
		"width", w, "height", h, "samples", t.ctx.Samples())
	return nil
}

// RenderObjects draws the objects of graph visible from cam. A nil cam
// uses the first camera of the graph or a default perspective. Called
// before Prepare it returns a *TargetError and stays Idle.
func (t *Technique) RenderObjects(graph *scene.Graph, cam *scene.Camera) error {
	switch t.state {
	case TargetPrepared:
	case Idle:
		return &TargetError{Target: t.name, Reason: "render objects before prepare"}
	default:
		return t.stepError("render objects")
	}
	if graph == nil {
		graph = scene.NewGraph()
	}
	if cam == nil {
		w, h := t.ctx.target.Size()
		cam = scene.NewCamera("default", w, h)
	}
	t.ctx.graph, t.ctx.camera, t.ctx.lights = graph, cam, graph.Lights()
	if err := t.strategy.Render(t.ctx, graph.Visible(cam)); err != nil {
		t.Abandon()
		return fmt.Errorf("technique: render objects: %w", err)
	}
	t.current = t.strategy.Output()
	t.state = ObjectsRendered
	return nil
}

// ApplyPostEffects runs the post effect chain in order. A failing effect is
// logged and skipped; the chain continues with its input.
func (t *Technique) ApplyPostEffects() error {
	if t.state != ObjectsRendered {
		return t.stepError("apply post effects")
	}
	for _, e := range t.effects {
		dst, err := t.pingPong()
		if err == nil {
			err = e.Apply(t.ctx, t.current, dst)
		}
		if err != nil {
			t.ctx.stats.EffectsSkipped++
			logging.Logger().Warn("technique: post effect skipped", "effect", e.Name(), "err", err)
			t.closePass()
			continue
		}
		t.current = dst
	}
	t.state = PostEffectsApplied
	return nil
}

// pingPong returns the post buffer not holding the current image.
func (t *Technique) pingPong() (*resource.RenderBuffer, error) {
	for i, rb := range t.post {
		if rb == nil {
			var err error
			label := fmt.Sprintf("%s.post%d", t.name, i)
			if rb, err = t.ctx.NewRenderBuffer(label, t.ctx.HDRFormat(), 1, t.width, t.height); err != nil {
				return nil, err
			}
			t.post[i] = rb
		}
		if rb != t.current {
			return rb, nil
		}
	}
	return nil, errors.New("technique: no free post buffer")
}

// closePass closes a pass left open by a failing effect.
func (t *Technique) closePass() {
	if t.ctx.dev.InPass() {
		if err := t.ctx.dev.EndPass(); err != nil {
			logging.Logger().Warn("technique: end pass", "err", err)
		}
	}
}

// ApplyToneMapping maps the scene into the target colour buffer. When the
// selected tone mapping fails the linear operator is tried; when that fails
// too the step is skipped and the target keeps its previous contents.
func (t *Technique) ApplyToneMapping() error {
	if t.state != PostEffectsApplied || t.toneMapped {
		return t.stepError("apply tone mapping")
	}
	t.toneMapped = true
	dst := t.ctx.target.Colour()
	err := t.tone.Apply(t.ctx, t.current, dst)
	if err == nil {
		return nil
	}
	t.ctx.stats.EffectsSkipped++
	logging.Logger().Warn("technique: tone mapping failed", "tone_mapping", t.tone.Name(), "err", err)
	t.closePass()
	if t.tone == ToneMapping(t.linear) {
		return nil
	}
	if err := t.linear.Apply(t.ctx, t.current, dst); err != nil {
		t.ctx.stats.EffectsSkipped++
		logging.Logger().Warn("technique: tone mapping skipped", "err", err)
		t.closePass()
	}
	return nil
}

// Present finishes the frame and returns to Idle. Tone mapping is applied
// first if it was not. Present is where the PostRender events of the
// current tick drain; their failure is returned after the frame is
// presented.
func (t *Technique) Present() error {
	if t.state != PostEffectsApplied {
		return t.stepError("present")
	}
	if !t.toneMapped {
		if err := t.ApplyToneMapping(); err != nil {
			return err
		}
	}
	if err := t.ctx.dev.Present(); err != nil {
		t.Abandon()
		return fmt.Errorf("technique: present: %w", err)
	}
	t.state = Presented
	var err error
	if t.events != nil && t.events.Ticking() {
		err = t.events.Process(frame.PostRender)
	}
	t.state = Idle
	return err
}

// Render runs every step of a frame.
func (t *Technique) Render(target *Target, graph *scene.Graph, cam *scene.Camera) error {
	if err := t.Prepare(target); err != nil {
		return err
	}
	if err := t.RenderObjects(graph, cam); err != nil {
		return err
	}
	if err := t.ApplyPostEffects(); err != nil {
		return err
	}
	if err := t.ApplyToneMapping(); err != nil {
		return err
	}
	return t.Present()
}

// Abandon drops the frame in progress. Draws already issued are kept; the
// state cache is invalidated so the next Prepare binds everything again.
func (t *Technique) Abandon() {
	t.closePass()
	t.ctx.dev.InvalidateStates()
	if t.state != Idle {
		logging.Logger().Warn("technique: frame abandoned", "technique", t.name, "state", t.state.String())
		t.ctx.stats.Abandoned++
	}
	t.state = Idle
	t.current, t.toneMapped = nil, false
}

func (t *Technique) releasePost() {
	for i, rb := range t.post {
		if rb != nil {
			rb.Destroy()
			t.post[i] = nil
		}
	}
}

// Cleanup abandons any frame in progress and releases every resource the
// technique created. Meshes it initialised are cleaned up too.
func (t *Technique) Cleanup() {
	if t.state != Idle {
		t.Abandon()
	}
	t.strategy.Cleanup()
	for _, e := range t.effects {
		if c, ok := e.(Cleaner); ok {
			c.Cleanup()
		}
	}
	if c, ok := t.tone.(Cleaner); ok {
		c.Cleanup()
	}
	t.releasePost()
	t.ctx.cleanup()
	t.ready = false
}
