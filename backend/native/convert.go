// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor/device"
)

// align4 rounds n up to the copy alignment of the HAL.
func align4(n uint64) uint64 { return (n + 3) &^ 3 }

// texelSize returns the bytes per texel of uncompressed formats, or zero.
func texelSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatR16Float:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRG16Float, gputypes.TextureFormatR32Float,
		gputypes.TextureFormatRGB10A2Unorm, gputypes.TextureFormatRG11B10Ufloat,
		gputypes.TextureFormatDepth32Float, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8:
		return 4
	case gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatRG32Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	}
	return 0
}

func textureDescriptor(d device.TextureDescriptor) *hal.TextureDescriptor {
	return &hal.TextureDescriptor{
		Label:         d.Label,
		Size:          hal.Extent3D{Width: d.Width, Height: d.Height, DepthOrArrayLayers: d.Layers},
		MipLevelCount: d.MipLevels,
		SampleCount:   d.Samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.Format,
		Usage:         d.Usage,
	}
}

func viewDescriptor(d device.TextureDescriptor) *hal.TextureViewDescriptor {
	dim := gputypes.TextureViewDimension2D
	if d.Layers > 1 {
		dim = gputypes.TextureViewDimension2DArray
	}
	return &hal.TextureViewDescriptor{
		Label:           d.Label,
		Format:          d.Format,
		Dimension:       dim,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   d.MipLevels,
		ArrayLayerCount: d.Layers,
	}
}

func samplerDescriptor(d device.SamplerDescriptor) *hal.SamplerDescriptor {
	aniso := d.MaxAnisotropy
	if aniso == 0 {
		aniso = 1
	}
	return &hal.SamplerDescriptor{
		Label:        d.Label,
		AddressModeU: d.AddressMode,
		AddressModeV: d.AddressMode,
		AddressModeW: d.AddressMode,
		MagFilter:    d.MagFilter,
		MinFilter:    d.MinFilter,
		MipmapFilter: d.MipmapFilter,
		LodMaxClamp:  32,
		Compare:      d.Compare,
		Anisotropy:   aniso,
	}
}

// layoutEntry returns the bind group layout entry of one program binding.
// Programs that declare samplers get filterable textures and filtering
// samplers; others read float targets that may not be filterable.
func layoutEntry(b device.Binding, filtering bool) gputypes.BindGroupLayoutEntry {
	e := gputypes.BindGroupLayoutEntry{Binding: b.Binding, Visibility: gputypes.ShaderStagesVertexFragment}
	switch b.Kind {
	case device.BindingUniform:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: b.Size}
	case device.BindingTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
		if filtering {
			e.Texture.SampleType = gputypes.TextureSampleTypeFloat
		}
	case device.BindingSampler:
		e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return e
}

func slotOf(b device.Binding) device.Slot {
	switch b.Kind {
	case device.BindingTexture:
		return device.TextureSlot(b.Group, b.Binding)
	case device.BindingSampler:
		return device.SamplerSlot(b.Group, b.Binding)
	}
	return device.UniformSlot(b.Group, b.Binding)
}

func depthStencilState(s device.DepthStencilState, format gputypes.TextureFormat, r device.RasteriserState) *hal.DepthStencilState {
	d := s.Descriptor(format, r)
	return &hal.DepthStencilState{
		Format:              d.Format,
		DepthWriteEnabled:   d.DepthWriteEnabled,
		DepthCompare:        d.DepthCompare,
		StencilFront:        stencilFace(d.StencilFront),
		StencilBack:         stencilFace(d.StencilBack),
		StencilReadMask:     d.StencilReadMask,
		StencilWriteMask:    d.StencilWriteMask,
		DepthBias:           d.DepthBias,
		DepthBiasSlopeScale: d.DepthBiasSlopeScale,
		DepthBiasClamp:      d.DepthBiasClamp,
	}
}

func stencilFace(f gputypes.StencilFaceState) hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     f.Compare,
		FailOp:      stencilOp(f.FailOp),
		DepthFailOp: stencilOp(f.DepthFailOp),
		PassOp:      stencilOp(f.PassOp),
	}
}

func stencilOp(op gputypes.StencilOperation) hal.StencilOperation {
	switch op {
	case gputypes.StencilOperationZero:
		return hal.StencilOperationZero
	case gputypes.StencilOperationReplace:
		return hal.StencilOperationReplace
	case gputypes.StencilOperationInvert:
		return hal.StencilOperationInvert
	case gputypes.StencilOperationIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case gputypes.StencilOperationDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case gputypes.StencilOperationIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case gputypes.StencilOperationDecrementWrap:
		return hal.StencilOperationDecrementWrap
	}
	return hal.StencilOperationKeep
}

func loadOp(clear bool) gputypes.LoadOp {
	if clear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}
