// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements device.Backend on the gogpu/wgpu hardware
// abstraction layer.
//
// Open selects a HAL backend (Vulkan, Metal, DX12, GLES or the software
// rasteriser), opens the first suitable adapter and returns a Backend
// ready to be wrapped by device.New:
//
//	b, err := native.Open(native.WithAPI(gputypes.BackendVulkan))
//	if err != nil {
//		return err
//	}
//	dev := device.New(b)
//	defer dev.Close()
//
// All draws of a frame are recorded into one command encoder and submitted
// by Present. Pipelines are built lazily from the bound program, states and
// pass targets, and cached until the program is destroyed. Buffer and
// texture uploads go through the queue: an upload issued while a pass is
// open submits the work recorded so far and resumes the pass with its
// attachments loaded.
//
// Destroyed objects are released once the submission that may reference
// them has completed.
package native
