// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package recording provides a device backend that captures backend calls
// as commands.
//
// The system follows a Command Pattern with two components:
//
//   - Recorder: a device.Backend that records every accepted call
//   - Recording: an immutable command list that can be replayed onto any
//     other device.Backend
//
// A Recorder performs no native work, so it is also the deterministic
// backend used by tests: the number of recorded commands of each type is
// exactly the number of calls the device layer let through.
//
// # Frame Capture
//
//	rec := recording.NewRecorder()
//	dev := device.New(rec)
//	// render one frame through dev
//	capture := rec.Finish()
//	fmt.Println(capture.Count(recording.CmdDraw), "draws")
//	capture.Playback(halBackend)
//
// # Failure Injection
//
// WithFailure installs a hook that can reject any call, which lets tests
// exercise allocation failures and backend errors:
//
//	rec := recording.NewRecorder(recording.WithFailure(func(c recording.Command) error {
//		if c.Type() == recording.CmdCreate {
//			return errOutOfMemory
//		}
//		return nil
//	}))
package recording
