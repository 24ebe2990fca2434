// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package recording

import (
	"errors"
	"fmt"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/gputypes"
)

// ErrClosed is returned by a Recorder after Close.
var ErrClosed = errors.New("recording: backend closed")

// Option configures a Recorder.
type Option func(*options)

type options struct {
	name        string
	features    device.Features
	limits      gputypes.Limits
	maxSamples  uint32
	unsupported map[gputypes.TextureFormat]bool
	fail        func(Command) error
}

func defaultOptions() options {
	return options{
		name:        "recording",
		features:    device.FeatureMultisample | device.FeatureFloatTargets | device.FeatureDepthClamp | device.FeatureAnisotropy,
		limits:      gputypes.DefaultLimits(),
		maxSamples:  4,
		unsupported: make(map[gputypes.TextureFormat]bool),
	}
}

// WithName sets the backend name reported by Info.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithFeatures replaces the advertised feature level.
func WithFeatures(f device.Features) Option {
	return func(o *options) { o.features = f }
}

// WithLimits replaces the advertised limits.
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithMaxSamples sets the largest supported sample count.
func WithMaxSamples(n uint32) Option {
	return func(o *options) { o.maxSamples = n }
}

// WithUnsupportedFormats makes SupportsFormat reject formats.
func WithUnsupportedFormats(formats ...gputypes.TextureFormat) Option {
	return func(o *options) {
		for _, f := range formats {
			o.unsupported[f] = true
		}
	}
}

// WithFailure installs a hook consulted before every call. A non-nil error
// is returned to the device and the call is not recorded.
func WithFailure(fn func(Command) error) Option {
	return func(o *options) { o.fail = fn }
}

// Recorder is a device.Backend that performs no native work and records
// every accepted call as a Command. It is deterministic, which makes it the
// backend of choice for tests and frame capture.
//
// Example:
//
//	rec := recording.NewRecorder()
//	dev := device.New(rec)
//	// ... render a frame ...
//	r := rec.Finish()
//	r.Playback(otherBackend)
//
// The Recorder is not safe for concurrent use.
type Recorder struct {
	opts     options
	commands []Command
	counts   [cmdCount]uint64
	failures uint64
	live     map[device.Handle]device.Descriptor
	closed   bool
}

var _ device.Backend = (*Recorder)(nil)

// NewRecorder creates a Recorder.
func NewRecorder(opts ...Option) *Recorder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Recorder{
		opts:     o,
		commands: make([]Command, 0, 256),
		live:     make(map[device.Handle]device.Descriptor),
	}
}

// SetFailure replaces the failure hook. nil removes it.
func (r *Recorder) SetFailure(fn func(Command) error) { r.opts.fail = fn }

// record runs the failure hook and appends c on success.
func (r *Recorder) record(c Command) error {
	if r.closed {
		return ErrClosed
	}
	if r.opts.fail != nil {
		if err := r.opts.fail(c); err != nil {
			r.failures++
			return err
		}
	}
	r.commands = append(r.commands, c)
	r.counts[c.Type()]++
	return nil
}

// Info implements device.Backend.
func (r *Recorder) Info() device.Info {
	return device.Info{
		Name:       r.opts.name,
		API:        gputypes.BackendEmpty,
		Adapter:    "command recorder",
		Features:   r.opts.features,
		Limits:     r.opts.limits,
		MaxSamples: r.opts.maxSamples,
	}
}

// SupportsFormat implements device.Backend.
func (r *Recorder) SupportsFormat(format gputypes.TextureFormat, _ gputypes.TextureUsage) bool {
	return !r.opts.unsupported[format]
}

// CreateResource implements device.Backend.
func (r *Recorder) CreateResource(h device.Handle, desc device.Descriptor) error {
	if _, dup := r.live[h]; dup {
		return fmt.Errorf("recording: handle %d already live", h)
	}
	if err := r.record(CreateCommand{Handle: h, Descriptor: desc}); err != nil {
		return err
	}
	r.live[h] = desc
	return nil
}

// DestroyResource implements device.Backend.
func (r *Recorder) DestroyResource(h device.Handle) {
	if r.record(DestroyCommand{Handle: h}) == nil {
		delete(r.live, h)
	}
}

// WriteBuffer implements device.Backend. The data is copied.
func (r *Recorder) WriteBuffer(h device.Handle, offset uint64, data []byte) error {
	return r.record(WriteBufferCommand{Handle: h, Offset: offset, Data: append([]byte(nil), data...)})
}

// WriteTexture implements device.Backend. The data is copied.
func (r *Recorder) WriteTexture(h device.Handle, level uint32, data []byte) error {
	return r.record(WriteTextureCommand{Handle: h, Level: level, Data: append([]byte(nil), data...)})
}

// BindState implements device.Backend.
func (r *Recorder) BindState(s device.State) error {
	return r.record(BindStateCommand{State: s})
}

// BindProgram implements device.Backend.
func (r *Recorder) BindProgram(h device.Handle) error {
	return r.record(BindProgramCommand{Handle: h})
}

// BindResource implements device.Backend.
func (r *Recorder) BindResource(slot device.Slot, h device.Handle) error {
	return r.record(BindResourceCommand{Slot: slot, Handle: h})
}

// BeginPass implements device.Backend.
func (r *Recorder) BeginPass(p *device.PassDescriptor) error {
	pass := *p
	pass.Colors = append([]device.ColorAttachment(nil), p.Colors...)
	if p.Depth != nil {
		depth := *p.Depth
		pass.Depth = &depth
	}
	return r.record(BeginPassCommand{Pass: pass})
}

// Draw implements device.Backend.
func (r *Recorder) Draw(call device.DrawCall) error {
	return r.record(DrawCommand{Call: call})
}

// EndPass implements device.Backend.
func (r *Recorder) EndPass() error { return r.record(EndPassCommand{}) }

// Present implements device.Backend.
func (r *Recorder) Present() error { return r.record(PresentCommand{}) }

// Close implements device.Backend.
func (r *Recorder) Close() error {
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool { return r.closed }

// Count returns how many commands of type t were recorded since creation
// or the last Reset.
func (r *Recorder) Count(t CommandType) uint64 {
	if t >= cmdCount {
		return 0
	}
	return r.counts[t]
}

// Failures returns how many calls the failure hook rejected.
func (r *Recorder) Failures() uint64 { return r.failures }

// Len returns the number of recorded commands.
func (r *Recorder) Len() int { return len(r.commands) }

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []Command {
	return append([]Command(nil), r.commands...)
}

// Last returns the most recent command, or nil.
func (r *Recorder) Last() Command {
	if len(r.commands) == 0 {
		return nil
	}
	return r.commands[len(r.commands)-1]
}

// Live returns the number of backend objects not yet destroyed.
func (r *Recorder) Live() int { return len(r.live) }

// Describe returns the descriptor a live handle was created with.
func (r *Recorder) Describe(h device.Handle) (device.Descriptor, bool) {
	d, ok := r.live[h]
	return d, ok
}

// Reset drops the recorded commands and counters. Live objects are kept.
func (r *Recorder) Reset() {
	r.commands = r.commands[:0]
	r.counts = [cmdCount]uint64{}
	r.failures = 0
}

// Finish returns the recorded commands as an immutable Recording and
// resets the recorder.
func (r *Recorder) Finish() *Recording {
	rec := &Recording{commands: r.Commands()}
	r.Reset()
	return rec
}
