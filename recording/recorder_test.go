// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package recording

import (
	"errors"
	"testing"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/gputypes"
)

func TestCommandType_String(t *testing.T) {
	tests := []struct {
		ct   CommandType
		want string
	}{
		{CmdCreate, "Create"},
		{CmdDestroy, "Destroy"},
		{CmdWriteBuffer, "WriteBuffer"},
		{CmdWriteTexture, "WriteTexture"},
		{CmdBindState, "BindState"},
		{CmdBindProgram, "BindProgram"},
		{CmdBindResource, "BindResource"},
		{CmdBeginPass, "BeginPass"},
		{CmdDraw, "Draw"},
		{CmdEndPass, "EndPass"},
		{CmdPresent, "Present"},
		{CommandType(254), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ct.String(); got != tt.want {
				t.Errorf("CommandType.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// renderTriangle drives one frame through d.
func renderTriangle(t *testing.T, d *device.Device) (rt, vbo, prog device.Handle) {
	t.Helper()
	var err error
	rt, err = d.CreateResource(device.TextureDescriptor{
		Label: "rt", Width: 32, Height: 32,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	vbo, err = d.CreateResource(device.BufferDescriptor{Label: "vbo", Size: 36, Usage: gputypes.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	prog, err = d.CreateResource(device.ProgramDescriptor{Label: "p", Source: "src", VertexEntry: "vs"})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(vbo, 0, make([]byte, 36)); err != nil {
		t.Fatal(err)
	}
	if err := d.BeginPass(device.PassDescriptor{Colors: []device.ColorAttachment{{Texture: rt, Clear: true}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.BindState(device.AlphaBlendState()); err != nil {
		t.Fatal(err)
	}
	if err := d.BindProgram(prog); err != nil {
		t.Fatal(err)
	}
	if err := d.BindResource(device.VertexSlot(0), vbo); err != nil {
		t.Fatal(err)
	}
	if err := d.Draw(device.DrawCall{VertexCount: 3}); err != nil {
		t.Fatal(err)
	}
	if err := d.EndPass(); err != nil {
		t.Fatal(err)
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	return rt, vbo, prog
}

func TestRecorderCapturesFrame(t *testing.T) {
	rec := NewRecorder()
	d := device.New(rec)
	renderTriangle(t, d)

	want := map[CommandType]uint64{
		CmdCreate:       3,
		CmdWriteBuffer:  1,
		CmdBeginPass:    1,
		CmdBindState:    1,
		CmdBindProgram:  1,
		CmdBindResource: 1,
		CmdDraw:         1,
		CmdEndPass:      1,
		CmdPresent:      1,
	}
	for ct, n := range want {
		if got := rec.Count(ct); got != n {
			t.Errorf("Count(%s) = %d, want %d", ct, got, n)
		}
	}
	if rec.Live() != 3 {
		t.Errorf("Live() = %d, want 3", rec.Live())
	}
	if _, ok := rec.Last().(PresentCommand); !ok {
		t.Errorf("Last() = %T, want PresentCommand", rec.Last())
	}
}

func TestRecordingPlayback(t *testing.T) {
	src := NewRecorder()
	renderTriangle(t, device.New(src))
	capture := src.Finish()

	if src.Len() != 0 || src.Count(CmdDraw) != 0 {
		t.Error("Finish should reset the recorder")
	}
	if capture.Frames() != 1 || capture.Count(CmdDraw) != 1 {
		t.Errorf("capture frames/draws = %d/%d, want 1/1", capture.Frames(), capture.Count(CmdDraw))
	}

	dst := NewRecorder()
	if err := capture.Playback(dst); err != nil {
		t.Fatalf("Playback() = %v", err)
	}
	if dst.Len() != capture.Len() {
		t.Errorf("replayed %d commands, want %d", dst.Len(), capture.Len())
	}
	got, want := dst.Commands(), capture.Commands()
	for i := range want {
		if got[i].Type() != want[i].Type() {
			t.Errorf("command %d = %s, want %s", i, got[i].Type(), want[i].Type())
		}
	}
}

func TestPlaybackStopsAtFailure(t *testing.T) {
	src := NewRecorder()
	renderTriangle(t, device.New(src))
	capture := src.Finish()

	boom := errors.New("boom")
	dst := NewRecorder(WithFailure(func(c Command) error {
		if c.Type() == CmdDraw {
			return boom
		}
		return nil
	}))
	err := capture.Playback(dst)
	if !errors.Is(err, boom) {
		t.Fatalf("Playback() = %v, want boom", err)
	}
	if dst.Count(CmdEndPass) != 0 {
		t.Error("commands after the failure were replayed")
	}
	if dst.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", dst.Failures())
	}
}

func TestRecorderFailureHookRejectsCreate(t *testing.T) {
	oom := errors.New("out of memory")
	rec := NewRecorder(WithFailure(func(c Command) error {
		if cc, ok := c.(CreateCommand); ok && cc.Descriptor.Kind() == device.KindTexture {
			return oom
		}
		return nil
	}))
	d := device.New(rec)

	if _, err := d.CreateResource(device.BufferDescriptor{Label: "ok", Size: 4}); err != nil {
		t.Fatalf("buffer create failed: %v", err)
	}
	_, err := d.CreateResource(device.TextureDescriptor{Label: "t", Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	if !errors.Is(err, oom) || !errors.Is(err, device.ErrBackend) {
		t.Errorf("texture create = %v, want BackendError wrapping oom", err)
	}
	if rec.Live() != 1 || rec.Count(CmdCreate) != 1 {
		t.Errorf("Live/Create = %d/%d, want 1/1", rec.Live(), rec.Count(CmdCreate))
	}
}

func TestRecorderFeatureLevel(t *testing.T) {
	rec := NewRecorder(
		WithName("gles2"),
		WithFeatures(0),
		WithLimits(gputypes.DownlevelLimits()),
		WithUnsupportedFormats(gputypes.TextureFormatRGBA16Float),
	)
	d := device.New(rec)
	if d.Name() != "gles2" {
		t.Errorf("Name() = %q", d.Name())
	}
	_, err := d.CreateResource(device.TextureDescriptor{
		Label: "hdr", Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA16Float,
	})
	if !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("create = %v, want ErrUnsupported", err)
	}
	_, err = d.CreateResource(device.TextureDescriptor{
		Label: "big", Width: 4096, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("create 4096 wide on downlevel = %v, want ErrUnsupported", err)
	}
	if rec.Count(CmdCreate) != 0 {
		t.Error("rejected descriptors reached the recorder")
	}
}

func TestRecorderClose(t *testing.T) {
	rec := NewRecorder()
	d := device.New(rec)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !rec.Closed() {
		t.Error("Closed() = false")
	}
	if err := rec.Present(); !errors.Is(err, ErrClosed) {
		t.Errorf("Present after close = %v, want ErrClosed", err)
	}
}
