// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// validate checks desc against the feature level.
func (d *Device) validate(desc Descriptor) error {
	lim := d.info.Limits
	switch desc := desc.(type) {
	case BufferDescriptor:
		if desc.Size == 0 {
			return fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, desc.Label)
		}
		if lim.MaxBufferSize > 0 && desc.Size > lim.MaxBufferSize {
			return fmt.Errorf("%w: buffer size %d exceeds %d", ErrUnsupported, desc.Size, lim.MaxBufferSize)
		}
	case TextureDescriptor:
		return d.validateTexture(desc.Normalized())
	case SamplerDescriptor:
		if desc.MaxAnisotropy > 1 && !d.info.Features.Has(FeatureAnisotropy) {
			return fmt.Errorf("%w: anisotropy %d", ErrUnsupported, desc.MaxAnisotropy)
		}
	case ProgramDescriptor:
		if desc.Source == "" && len(desc.SPIRV) == 0 {
			return fmt.Errorf("%w: program %q has no source", ErrInvalidDescriptor, desc.Label)
		}
		if desc.VertexEntry == "" {
			return fmt.Errorf("%w: program %q has no vertex entry point", ErrInvalidDescriptor, desc.Label)
		}
		if lim.MaxVertexBuffers > 0 && uint32(len(desc.VertexLayout)) > lim.MaxVertexBuffers {
			return fmt.Errorf("%w: %d vertex buffers, max %d", ErrUnsupported, len(desc.VertexLayout), lim.MaxVertexBuffers)
		}
	default:
		return fmt.Errorf("%w: unsupported descriptor type %T", ErrInvalidDescriptor, desc)
	}
	return nil
}

func (d *Device) validateTexture(desc TextureDescriptor) error {
	lim := d.info.Limits
	if desc.Width == 0 || desc.Height == 0 {
		return fmt.Errorf("%w: texture %q is %dx%d", ErrInvalidDescriptor, desc.Label, desc.Width, desc.Height)
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		return fmt.Errorf("%w: texture %q has no format", ErrInvalidDescriptor, desc.Label)
	}
	if m := lim.MaxTextureDimension2D; m > 0 && (desc.Width > m || desc.Height > m) {
		return fmt.Errorf("%w: texture %dx%d exceeds %d", ErrUnsupported, desc.Width, desc.Height, m)
	}
	if m := lim.MaxTextureArrayLayers; m > 0 && desc.Layers > m {
		return fmt.Errorf("%w: %d layers exceeds %d", ErrUnsupported, desc.Layers, m)
	}
	if desc.Samples > 1 {
		if !d.info.Features.Has(FeatureMultisample) || desc.Samples > d.info.MaxSamples {
			return fmt.Errorf("%w: %d samples", ErrUnsupported, desc.Samples)
		}
		if desc.MipLevels > 1 {
			return fmt.Errorf("%w: multisampled texture with %d mip levels", ErrInvalidDescriptor, desc.MipLevels)
		}
	}
	if IsFloatFormat(desc.Format) && desc.Usage.Contains(gputypes.TextureUsageRenderAttachment) &&
		!d.info.Features.Has(FeatureFloatTargets) {
		return fmt.Errorf("%w: %s render attachment", ErrUnsupported, desc.Format)
	}
	if !d.backend.SupportsFormat(desc.Format, desc.Usage) {
		return fmt.Errorf("%w: format %s with usage %v", ErrUnsupported, desc.Format, desc.Usage)
	}
	return nil
}

// validateState checks optional rasterisation features.
func (d *Device) validateState(s State) error {
	switch s := s.(type) {
	case RasteriserState:
		if s.Wireframe && !d.info.Features.Has(FeatureWireframe) {
			return fmt.Errorf("%w: wireframe", ErrUnsupported)
		}
		if s.UnclippedDepth && !d.info.Features.Has(FeatureDepthClamp) {
			return fmt.Errorf("%w: depth clamp", ErrUnsupported)
		}
	case MultisampleState:
		if s.Count == 0 {
			return fmt.Errorf("%w: zero sample count", ErrInvalidDescriptor)
		}
		if s.Count > 1 && (!d.info.Features.Has(FeatureMultisample) || s.Count > d.info.MaxSamples) {
			return fmt.Errorf("%w: %d samples", ErrUnsupported, s.Count)
		}
	}
	return nil
}

// IsFloatFormat reports whether f stores floating point channels.
func IsFloatFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatR16Float, gputypes.TextureFormatRG16Float, gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatR32Float, gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA32Float,
		gputypes.TextureFormatRG11B10Ufloat:
		return true
	}
	return false
}
