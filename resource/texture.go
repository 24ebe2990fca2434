// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"
	"image"
	"math/bits"

	"golang.org/x/image/draw"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/gputypes"
)

// MipLevelCount returns the length of a full mip chain for w x h.
func MipLevelCount(w, h uint32) uint32 {
	m := max(w, h)
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// Texture is a sampled 2D texture whose texels come from an image.
type Texture struct {
	base
	desc   device.TextureDescriptor
	source image.Image
	filled bool
}

var _ Resource = (*Texture)(nil)

// NewTexture returns an Uninitialised texture. desc.Label names it; Width
// and Height may be left zero and taken from the image.
func NewTexture(d *device.Device, desc device.TextureDescriptor) *Texture {
	desc.Usage |= gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = gputypes.TextureFormatRGBA8Unorm
	}
	return &Texture{base: newBase(d, device.KindTexture, desc.Label), desc: desc}
}

// Descriptor returns the texture description.
func (t *Texture) Descriptor() device.TextureDescriptor { return t.desc }

// SetImage assigns the source texels. When the texture has no size yet it
// takes the image bounds. A zero MipLevels requests a full chain.
func (t *Texture) SetImage(img image.Image) error {
	if t.state == Destroyed {
		return stateError("set image", t.state)
	}
	if t.desc.Format != gputypes.TextureFormatRGBA8Unorm && t.desc.Format != gputypes.TextureFormatBGRA8Unorm {
		return fmt.Errorf("%w: %s", ErrFormat, t.desc.Format)
	}
	b := img.Bounds()
	if t.state == Uninitialised && (t.desc.Width == 0 || t.desc.Height == 0) {
		t.desc.Width, t.desc.Height = uint32(b.Dx()), uint32(b.Dy())
	}
	if t.desc.MipLevels == 0 {
		t.desc.MipLevels = MipLevelCount(t.desc.Width, t.desc.Height)
	}
	t.source = img
	if t.state == Initialised {
		if err := t.upload(t.handle, t.desc); err != nil {
			return err
		}
		t.filled = true
	}
	return nil
}

// Create allocates the backend texture.
func (t *Texture) Create() error {
	if t.desc.MipLevels == 0 {
		t.desc.MipLevels = 1
	}
	return t.create(t.desc)
}

// Initialise uploads the mip chain of the assigned image.
func (t *Texture) Initialise() error {
	if t.state != Created {
		return stateError("initialise", t.state)
	}
	if t.source != nil {
		if err := t.upload(t.handle, t.desc); err != nil {
			return err
		}
		t.filled = true
	}
	t.state = Initialised
	return nil
}

// upload scales the source into every mip level of h.
func (t *Texture) upload(h device.Handle, desc device.TextureDescriptor) error {
	d, err := t.device()
	if err != nil {
		return err
	}
	for level, texels := range MipChain(t.source, desc.Width, desc.Height, desc.Normalized().MipLevels) {
		if desc.Format == gputypes.TextureFormatBGRA8Unorm {
			swapRB(texels)
		}
		if err := d.WriteTexture(h, uint32(level), texels); err != nil {
			return err
		}
	}
	return nil
}

// Bind attaches the texture to slot. It returns false without calling the
// device if the texture is not Initialised or has no texels.
func (t *Texture) Bind(slot device.Slot) bool {
	if !t.filled {
		return false
	}
	return t.bind(slot)
}

// Unbind clears slot if the texture occupies it.
func (t *Texture) Unbind(slot device.Slot) { t.unbind(slot) }

// Resize reallocates an Initialised texture at w x h and rescales the
// source image into it. On failure the previous texture is kept.
func (t *Texture) Resize(w, h uint32) error {
	if t.state != Initialised {
		return stateError("resize", t.state)
	}
	if w == t.desc.Width && h == t.desc.Height {
		return nil
	}
	if t.isBound() {
		return fmt.Errorf("%w: resize of %q", ErrBound, t.label)
	}
	desc := t.desc
	desc.Width, desc.Height = w, h
	if desc.MipLevels > 1 {
		desc.MipLevels = MipLevelCount(w, h)
	}
	nh, err := t.allocate(desc)
	if err != nil {
		return err
	}
	if t.source != nil {
		if err := t.upload(nh, desc); err != nil {
			t.destroyHandle(nh)
			return err
		}
	}
	t.destroyHandle(t.handle)
	t.handle = nh
	t.desc = desc
	return nil
}

// Cleanup releases the backend texture and keeps the source image.
func (t *Texture) Cleanup() {
	t.base.Cleanup()
	t.filled = false
}

// Destroy releases the backend texture and the source image.
func (t *Texture) Destroy() {
	t.base.Destroy()
	t.filled = false
	t.source = nil
}

// MipChain returns tightly packed RGBA8 texels of img scaled to w x h and
// each following mip level, halving with bilinear filtering.
func MipChain(img image.Image, w, h, levels uint32) [][]byte {
	if levels == 0 {
		levels = 1
	}
	out := make([][]byte, 0, levels)
	prev := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if img.Bounds().Dx() == int(w) && img.Bounds().Dy() == int(h) {
		draw.Draw(prev, prev.Bounds(), img, img.Bounds().Min, draw.Src)
	} else {
		draw.BiLinear.Scale(prev, prev.Bounds(), img, img.Bounds(), draw.Src, nil)
	}
	out = append(out, prev.Pix)
	for l := uint32(1); l < levels; l++ {
		lw, lh := max(w>>l, 1), max(h>>l, 1)
		next := image.NewRGBA(image.Rect(0, 0, int(lw), int(lh)))
		draw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		out = append(out, next.Pix)
		prev = next
	}
	return out
}

func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// RenderBuffer is a texture rendered into by a pass: a colour target or a
// depth/stencil buffer. Single-sampled render buffers can also be sampled
// by later passes.
type RenderBuffer struct {
	base
	desc device.TextureDescriptor
}

var _ Resource = (*RenderBuffer)(nil)

// NewRenderBuffer returns an Uninitialised render buffer.
func NewRenderBuffer(d *device.Device, label string, format gputypes.TextureFormat, samples uint32) *RenderBuffer {
	if samples == 0 {
		samples = 1
	}
	usage := gputypes.TextureUsageRenderAttachment
	if samples == 1 {
		usage |= gputypes.TextureUsageTextureBinding
	}
	return &RenderBuffer{
		base: newBase(d, device.KindTexture, label),
		desc: device.TextureDescriptor{Label: label, Format: format, Samples: samples, Usage: usage},
	}
}

// Format returns the texel format.
func (r *RenderBuffer) Format() gputypes.TextureFormat { return r.desc.Format }

// Samples returns the sample count.
func (r *RenderBuffer) Samples() uint32 { return r.desc.Samples }

// Size returns the dimensions.
func (r *RenderBuffer) Size() (w, h uint32) { return r.desc.Width, r.desc.Height }

// Create allocates the backend texture at w x h.
func (r *RenderBuffer) Create(w, h uint32) error {
	desc := r.desc
	desc.Width, desc.Height = w, h
	if err := r.create(desc); err != nil {
		return err
	}
	r.desc = desc
	return nil
}

// Initialise makes the render buffer usable as an attachment. Contents are
// undefined until a pass clears them.
func (r *RenderBuffer) Initialise() error {
	if r.state != Created {
		return stateError("initialise", r.state)
	}
	r.state = Initialised
	return nil
}

// Bind attaches the render buffer as a sampled texture.
func (r *RenderBuffer) Bind(slot device.Slot) bool {
	if r.desc.Samples > 1 {
		return false
	}
	return r.bind(slot)
}

// Unbind clears slot if the render buffer occupies it.
func (r *RenderBuffer) Unbind(slot device.Slot) { r.unbind(slot) }

// Resize reallocates the render buffer at w x h. On failure the previous
// buffer is kept.
func (r *RenderBuffer) Resize(w, h uint32) error {
	if r.state != Initialised {
		return stateError("resize", r.state)
	}
	if w == r.desc.Width && h == r.desc.Height {
		return nil
	}
	if r.isBound() {
		return fmt.Errorf("%w: resize of %q", ErrBound, r.label)
	}
	desc := r.desc
	desc.Width, desc.Height = w, h
	nh, err := r.allocate(desc)
	if err != nil {
		return err
	}
	r.destroyHandle(r.handle)
	r.handle = nh
	r.desc = desc
	return nil
}

// Sampler is a texture sampling configuration.
type Sampler struct {
	base
	desc device.SamplerDescriptor
}

var _ Resource = (*Sampler)(nil)

// NewSampler returns an Uninitialised sampler.
func NewSampler(d *device.Device, desc device.SamplerDescriptor) *Sampler {
	return &Sampler{base: newBase(d, device.KindSampler, desc.Label), desc: desc}
}

// LinearSampler describes trilinear filtering with edge clamping.
func LinearSampler(label string) device.SamplerDescriptor {
	return device.SamplerDescriptor{
		Label:        label,
		AddressMode:  gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	}
}

// Create allocates the backend sampler.
func (s *Sampler) Create() error { return s.create(s.desc) }

// Initialise makes the sampler bindable.
func (s *Sampler) Initialise() error {
	if s.state != Created {
		return stateError("initialise", s.state)
	}
	s.state = Initialised
	return nil
}

// Bind attaches the sampler to slot.
func (s *Sampler) Bind(slot device.Slot) bool { return s.bind(slot) }
