// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource wraps GPU objects in an explicit lifecycle.
//
// Every resource moves through Uninitialised, Created, Initialised and
// Destroyed:
//
//	buf := resource.NewBuffer(dev, "positions", gputypes.BufferUsageVertex)
//	buf.SetData(vertices)
//	if err := buf.Create(uint64(len(vertices))); err != nil {
//		// *AllocationError: the buffer stays Uninitialised
//	}
//	buf.Initialise()           // uploads the data
//	buf.Bind(device.VertexSlot(0))
//	buf.Cleanup()              // back to Uninitialised
//
// Resources hold a weak reference to their device. Nothing is released by
// the garbage collector: Cleanup or Destroy must be called on the render
// thread before the device is closed.
//
// Bind returns false, without any backend call, when the resource is not
// Initialised or has no data. Callers treat that as "skip this draw".
package resource
