// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/castor/device"
)

const tintSource = `
struct Tint { color: vec4<f32> }
@group(0) @binding(0) var<uniform> tint: Tint;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(i), 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return tint.color;
}
`

// =============================================================================
// Helpers
// =============================================================================

func openNoop(t *testing.T) (*Backend, *device.Device) {
	t.Helper()
	b, err := Open(WithHAL(noop.API{}))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	return b, device.New(b)
}

type fixture struct {
	target  device.Handle
	program device.Handle
	tint    device.Handle
}

func newFixture(t *testing.T, d *device.Device) fixture {
	t.Helper()
	var f fixture
	var err error
	f.target, err = d.CreateResource(device.TextureDescriptor{
		Label:  "target",
		Width:  32,
		Height: 32,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.program, err = d.CreateResource(device.ProgramDescriptor{
		Label:         "tint",
		Source:        tintSource,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Bindings:      []device.Binding{{Name: "tint", Kind: device.BindingUniform, Size: 16}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.tint, err = d.CreateResource(device.BufferDescriptor{Label: "tint", Size: 16, Usage: gputypes.BufferUsageUniform})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) begin(t *testing.T, d *device.Device) {
	t.Helper()
	pass := device.PassDescriptor{
		Label:  "main",
		Colors: []device.ColorAttachment{{Texture: f.target, Clear: true}},
	}
	if err := d.BeginPass(pass); err != nil {
		t.Fatal(err)
	}
	if err := d.BindProgram(f.program); err != nil {
		t.Fatal(err)
	}
}

func (f fixture) destroy(d *device.Device) {
	d.DestroyResource(f.tint)
	d.DestroyResource(f.program)
	d.DestroyResource(f.target)
}

// =============================================================================
// Tests
// =============================================================================

func TestOpenDescribesAdapter(t *testing.T) {
	b, _ := openNoop(t)
	defer b.Close()
	info := b.Info()
	if info.API != gputypes.BackendEmpty || info.Adapter != "Noop Adapter" {
		t.Errorf("Info() = %+v", info)
	}
	if !info.Features.Has(device.FeatureMultisample | device.FeatureFloatTargets) {
		t.Errorf("Features = %v", info.Features)
	}
	if info.Features.Has(device.FeatureDepthClamp) || info.MaxSamples != 4 {
		t.Errorf("Features = %v, MaxSamples = %d", info.Features, info.MaxSamples)
	}
}

func TestDrawCachesPipelines(t *testing.T) {
	b, d := openNoop(t)
	f := newFixture(t, d)
	f.begin(t, d)
	if err := d.BindResource(device.UniformSlot(0, 0), f.tint); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := d.Draw(device.DrawCall{VertexCount: 3}); err != nil {
			t.Fatalf("Draw() = %v", err)
		}
	}
	if s := b.Stats(); s.Misses != 1 || s.Hits != 1 || s.Len != 1 {
		t.Errorf("Stats() = %+v", s)
	}

	if _, err := d.BindState(device.AlphaBlendState()); err != nil {
		t.Fatal(err)
	}
	if err := d.Draw(device.DrawCall{VertexCount: 3}); err != nil {
		t.Fatal(err)
	}
	if s := b.Stats(); s.Misses != 2 {
		t.Errorf("blend change did not create a pipeline: %+v", s)
	}
	if err := d.EndPass(); err != nil {
		t.Fatal(err)
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	if b.Submissions() != 1 {
		t.Errorf("Submissions() = %d, want 1", b.Submissions())
	}
	f.destroy(d)
	if err := d.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestDrawWithoutUniformFails(t *testing.T) {
	b, d := openNoop(t)
	defer b.Close()
	f := newFixture(t, d)
	f.begin(t, d)
	err := d.Draw(device.DrawCall{VertexCount: 3})
	if !errors.Is(err, ErrUnbound) || !errors.Is(err, device.ErrBackend) {
		t.Errorf("Draw() = %v, want BackendError wrapping ErrUnbound", err)
	}
}

func TestWriteInsidePassSplitsIt(t *testing.T) {
	b, d := openNoop(t)
	defer b.Close()
	f := newFixture(t, d)
	f.begin(t, d)
	if err := d.BindResource(device.UniformSlot(0, 0), f.tint); err != nil {
		t.Fatal(err)
	}
	if err := d.Draw(device.DrawCall{VertexCount: 3}); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(f.tint, 0, make([]byte, 16)); err != nil {
		t.Fatalf("WriteBuffer() = %v", err)
	}
	if b.enc.splits != 1 || b.Submissions() != 1 {
		t.Errorf("splits = %d, submissions = %d", b.enc.splits, b.Submissions())
	}
	if b.enc.pass == nil {
		t.Fatal("pass not resumed after the upload")
	}
	if err := d.Draw(device.DrawCall{VertexCount: 3}); err != nil {
		t.Fatalf("Draw after split = %v", err)
	}
	if err := d.EndPass(); err != nil {
		t.Fatal(err)
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	if b.Submissions() != 2 {
		t.Errorf("Submissions() = %d, want 2", b.Submissions())
	}
}

func TestWriteOutsideFrameDoesNotSubmit(t *testing.T) {
	b, d := openNoop(t)
	defer b.Close()
	buf, err := d.CreateResource(device.BufferDescriptor{Label: "odd", Size: 6, Usage: gputypes.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(buf, 0, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Errorf("WriteBuffer(6 bytes) = %v", err)
	}
	if b.Submissions() != 0 {
		t.Errorf("Submissions() = %d, want 0", b.Submissions())
	}
}

func TestDestroyEvictsPipelines(t *testing.T) {
	b, d := openNoop(t)
	defer b.Close()
	f := newFixture(t, d)
	f.begin(t, d)
	if err := d.BindResource(device.UniformSlot(0, 0), f.tint); err != nil {
		t.Fatal(err)
	}
	if err := d.Draw(device.DrawCall{VertexCount: 3}); err != nil {
		t.Fatal(err)
	}
	if err := d.EndPass(); err != nil {
		t.Fatal(err)
	}
	f.destroy(d)
	if s := b.Stats(); s.Len != 0 {
		t.Errorf("pipelines survive their program: %+v", s)
	}
	if len(b.enc.groups) != 0 {
		t.Errorf("%d bind groups survive their resources", len(b.enc.groups))
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownAPI(t *testing.T) {
	_, err := Open(WithAPI(gputypes.BackendBrowserWebGPU))
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("Open() = %v, want ErrNoBackend", err)
	}
}
