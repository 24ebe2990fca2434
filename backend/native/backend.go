// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/internal/logging"
)

// Option configures Open.
type Option func(*options)

type options struct {
	api     gputypes.Backend
	hal     hal.Backend
	adapter string
	limits  gputypes.Limits
	samples uint32
}

// WithAPI selects a registered graphics API instead of the best available.
func WithAPI(api gputypes.Backend) Option {
	return func(o *options) { o.api = api }
}

// WithHAL uses b directly, e.g. noop.API{} in tests.
func WithHAL(b hal.Backend) Option {
	return func(o *options) { o.hal = b }
}

// WithAdapter picks the first adapter whose name contains name.
func WithAdapter(name string) Option {
	return func(o *options) { o.adapter = name }
}

// WithLimits requests device limits.
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithMaxSamples caps the reported sample count.
func WithMaxSamples(n uint32) Option {
	return func(o *options) { o.samples = n }
}

type buffer struct {
	buf  hal.Buffer
	size uint64
}

type texture struct {
	tex  hal.Texture
	view hal.TextureView
	desc device.TextureDescriptor
}

type program struct {
	desc      device.ProgramDescriptor
	module    hal.ShaderModule
	groups    []hal.BindGroupLayout
	bindings  [][]device.Binding
	layout    hal.PipelineLayout
	fragments bool
}

// Backend implements device.Backend over a gogpu/wgpu HAL device. It
// renders offscreen: Present submits the frame's command buffers.
//
// Queue writes run before commands that are still being encoded, so a
// buffer or texture write flushes the open encoder first. A write inside a
// render pass ends the pass, submits it and resumes it with its attachments
// loaded.
type Backend struct {
	variant  gputypes.Backend
	instance hal.Instance
	adapter  hal.ExposedAdapter
	device   hal.Device
	queue    hal.Queue
	info     device.Info

	buffers  map[device.Handle]*buffer
	textures map[device.Handle]*texture
	samplers map[device.Handle]hal.Sampler
	programs map[device.Handle]*program

	enc       *encoder
	pipelines *pipelineCache
	closed    bool
}

var _ device.Backend = (*Backend)(nil)

// Open selects a HAL backend and adapter and opens a device on it.
func Open(opts ...Option) (*Backend, error) {
	o := options{limits: gputypes.DefaultLimits(), samples: 4}
	for _, opt := range opts {
		opt(&o)
	}
	hb, err := selectHAL(o)
	if err != nil {
		return nil, err
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	i := selectAdapter(adapters, o.adapter)
	if i < 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	exposed := adapters[i]
	open, err := exposed.Adapter.Open(0, o.limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	b := &Backend{
		variant:   hb.Variant(),
		instance:  instance,
		adapter:   exposed,
		device:    open.Device,
		queue:     open.Queue,
		buffers:   make(map[device.Handle]*buffer),
		textures:  make(map[device.Handle]*texture),
		samplers:  make(map[device.Handle]hal.Sampler),
		programs:  make(map[device.Handle]*program),
		pipelines: newPipelineCache(),
	}
	b.info = b.describe(o)
	b.enc = newEncoder(b)
	logging.Logger().Info("native: device opened",
		"api", b.variant, "adapter", exposed.Info.Name, "features", b.info.Features)
	return b, nil
}

func selectHAL(o options) (hal.Backend, error) {
	if o.hal != nil {
		return o.hal, nil
	}
	if o.api != gputypes.BackendEmpty {
		if b, ok := hal.GetBackend(o.api); ok {
			return b, nil
		}
		b, err := hal.CreateBackend(o.api)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoBackend, o.api, err)
		}
		return b, nil
	}
	b, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBackend, err)
	}
	return b, nil
}

// selectAdapter prefers a named adapter, then a discrete or integrated GPU.
func selectAdapter(adapters []hal.ExposedAdapter, name string) int {
	if name != "" {
		return slices.IndexFunc(adapters, func(a hal.ExposedAdapter) bool {
			return strings.Contains(a.Info.Name, name)
		})
	}
	for i, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU || a.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return i
		}
	}
	if len(adapters) == 0 {
		return -1
	}
	return 0
}

// describe derives the feature level from the adapter capabilities.
func (b *Backend) describe(o options) device.Info {
	a := b.adapter
	caps := func(f gputypes.TextureFormat, flag hal.TextureFormatCapabilityFlags) bool {
		return a.Adapter.TextureFormatCapabilities(f).Flags&flag == flag
	}
	var f device.Features
	if caps(gputypes.TextureFormatRGBA8Unorm, hal.TextureFormatCapabilityMultisample|hal.TextureFormatCapabilityMultisampleResolve) {
		f |= device.FeatureMultisample
	}
	if caps(gputypes.TextureFormatRGBA16Float, hal.TextureFormatCapabilityRenderAttachment) {
		f |= device.FeatureFloatTargets
	}
	if a.Features.Contains(gputypes.FeatureDepthClipControl) {
		f |= device.FeatureDepthClamp
	}
	if a.Capabilities.DownlevelCapabilities.Flags&hal.DownlevelFlagsAnisotropicFiltering != 0 {
		f |= device.FeatureAnisotropy
	}
	samples := uint32(1)
	if f.Has(device.FeatureMultisample) {
		samples = o.samples
	}
	return device.Info{
		Name:       strings.ToLower(b.variant.String()),
		API:        b.variant,
		Adapter:    a.Info.Name,
		Features:   f,
		Limits:     o.limits,
		MaxSamples: samples,
	}
}

// Info implements device.Backend.
func (b *Backend) Info() device.Info { return b.info }

// SupportsFormat implements device.Backend.
func (b *Backend) SupportsFormat(format gputypes.TextureFormat, usage gputypes.TextureUsage) bool {
	flags := b.adapter.Adapter.TextureFormatCapabilities(format).Flags
	if usage.Contains(gputypes.TextureUsageRenderAttachment) && flags&hal.TextureFormatCapabilityRenderAttachment == 0 {
		return false
	}
	if usage.Contains(gputypes.TextureUsageTextureBinding) && flags&hal.TextureFormatCapabilitySampled == 0 {
		return false
	}
	if usage.Contains(gputypes.TextureUsageStorageBinding) && flags&hal.TextureFormatCapabilityStorage == 0 {
		return false
	}
	return true
}

// CreateResource implements device.Backend.
func (b *Backend) CreateResource(h device.Handle, desc device.Descriptor) error {
	if b.closed {
		return ErrClosed
	}
	switch d := desc.(type) {
	case device.BufferDescriptor:
		buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
			Label: d.Label,
			Size:  align4(d.Size),
			Usage: d.Usage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		b.buffers[h] = &buffer{buf: buf, size: align4(d.Size)}
	case device.TextureDescriptor:
		d = d.Normalized()
		if d.Samples == 1 && !d.Format.IsDepthStencil() {
			d.Usage |= gputypes.TextureUsageCopyDst
		}
		tex, err := b.device.CreateTexture(textureDescriptor(d))
		if err != nil {
			return err
		}
		view, err := b.device.CreateTextureView(tex, viewDescriptor(d))
		if err != nil {
			b.device.DestroyTexture(tex)
			return err
		}
		b.textures[h] = &texture{tex: tex, view: view, desc: d}
	case device.SamplerDescriptor:
		s, err := b.device.CreateSampler(samplerDescriptor(d))
		if err != nil {
			return err
		}
		b.samplers[h] = s
	case device.ProgramDescriptor:
		p, err := b.createProgram(d)
		if err != nil {
			return err
		}
		b.programs[h] = p
	default:
		return fmt.Errorf("native: unsupported descriptor %T", desc)
	}
	return nil
}

func (b *Backend) createProgram(d device.ProgramDescriptor) (*program, error) {
	src := hal.ShaderSource{WGSL: d.Source}
	if len(d.SPIRV) > 0 && b.variant == gputypes.BackendVulkan {
		src = hal.ShaderSource{SPIRV: d.SPIRV}
	}
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: d.Label, Source: src})
	if err != nil {
		return nil, err
	}
	p := &program{desc: d, module: module, fragments: d.FragmentEntry != ""}

	var groups uint32
	filtering := false
	for _, bd := range d.Bindings {
		groups = max(groups, bd.Group+1)
		filtering = filtering || bd.Kind == device.BindingSampler
	}
	p.bindings = make([][]device.Binding, groups)
	for _, bd := range d.Bindings {
		p.bindings[bd.Group] = append(p.bindings[bd.Group], bd)
	}
	for g, bs := range p.bindings {
		entries := make([]gputypes.BindGroupLayoutEntry, len(bs))
		for i, bd := range bs {
			entries[i] = layoutEntry(bd, filtering)
		}
		l, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s.group%d", d.Label, g),
			Entries: entries,
		})
		if err != nil {
			b.destroyProgram(p)
			return nil, err
		}
		p.groups = append(p.groups, l)
	}
	p.layout, err = b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            d.Label,
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		b.destroyProgram(p)
		return nil, err
	}
	return p, nil
}

func (b *Backend) destroyProgram(p *program) {
	if p.layout != nil {
		b.device.DestroyPipelineLayout(p.layout)
	}
	for _, l := range p.groups {
		b.device.DestroyBindGroupLayout(l)
	}
	b.device.DestroyShaderModule(p.module)
}

// DestroyResource implements device.Backend. Native objects are released
// once the GPU has finished the submissions that may use them.
func (b *Backend) DestroyResource(h device.Handle) {
	b.enc.forget(h)
	if buf, ok := b.buffers[h]; ok {
		delete(b.buffers, h)
		b.enc.release(func() { b.device.DestroyBuffer(buf.buf) })
		return
	}
	if t, ok := b.textures[h]; ok {
		delete(b.textures, h)
		b.enc.release(func() {
			b.device.DestroyTextureView(t.view)
			b.device.DestroyTexture(t.tex)
		})
		return
	}
	if s, ok := b.samplers[h]; ok {
		delete(b.samplers, h)
		b.enc.release(func() { b.device.DestroySampler(s) })
		return
	}
	if p, ok := b.programs[h]; ok {
		delete(b.programs, h)
		for _, pl := range b.pipelines.evict(h) {
			b.enc.release(func() { b.device.DestroyRenderPipeline(pl) })
		}
		b.enc.release(func() { b.destroyProgram(p) })
	}
}

// WriteBuffer implements device.Backend. Sizes are padded to four bytes.
func (b *Backend) WriteBuffer(h device.Handle, offset uint64, data []byte) error {
	buf, ok := b.buffers[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if n := align4(uint64(len(data))); n != uint64(len(data)) {
		padded := make([]byte, n)
		copy(padded, data)
		data = padded
	}
	if offset+uint64(len(data)) > buf.size {
		return fmt.Errorf("native: write of %d bytes at %d overflows %d", len(data), offset, buf.size)
	}
	return b.enc.write(func() error { return b.queue.WriteBuffer(buf.buf, offset, data) })
}

// WriteTexture implements device.Backend.
func (b *Backend) WriteTexture(h device.Handle, level uint32, data []byte) error {
	t, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	bpp := texelSize(t.desc.Format)
	if bpp == 0 {
		return fmt.Errorf("native: cannot upload %s", t.desc.Format)
	}
	w, hgt := max(t.desc.Width>>level, 1), max(t.desc.Height>>level, 1)
	return b.enc.write(func() error {
		return b.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: t.tex, MipLevel: level, Aspect: gputypes.TextureAspectAll},
			data,
			&hal.ImageDataLayout{BytesPerRow: w * bpp, RowsPerImage: hgt},
			&hal.Extent3D{Width: w, Height: hgt, DepthOrArrayLayers: t.desc.Layers},
		)
	})
}

// Stats returns the pipeline cache statistics.
func (b *Backend) Stats() CacheStats { return b.pipelines.stats() }

// Submissions returns the number of command buffers submitted so far.
func (b *Backend) Submissions() uint64 { return b.enc.submitted }

// Close waits for the GPU and releases every native object.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	var errs []error
	b.enc.abort()
	if err := b.device.WaitIdle(); err != nil {
		errs = append(errs, err)
	}
	b.enc.collect(^uint64(0))
	for h := range b.buffers {
		b.DestroyResource(h)
	}
	for h := range b.textures {
		b.DestroyResource(h)
	}
	for h := range b.samplers {
		b.DestroyResource(h)
	}
	for h := range b.programs {
		b.DestroyResource(h)
	}
	for _, pl := range b.pipelines.evictAll() {
		b.device.DestroyRenderPipeline(pl)
	}
	b.enc.collect(^uint64(0))
	b.enc.destroy()
	b.device.Destroy()
	b.adapter.Adapter.Destroy()
	b.instance.Destroy()
	b.closed = true
	logging.Logger().Info("native: device closed", "api", b.variant)
	return errors.Join(errs...)
}
