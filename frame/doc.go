// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package frame serializes GPU-affecting work onto the render thread.
//
// Producer goroutines post events; the render thread applies them once per
// frame, PreRender first, then QueueRender, then PostRender, and in posting
// order within a class:
//
//	q := frame.NewQueue()
//	go func() {
//		q.PostFunc(frame.PreRender, "upload", func() error {
//			return mesh.Initialise()
//		})
//	}()
//
//	// render thread
//	q.BeginTick()
//	q.Process(frame.PreRender)
//	q.Process(frame.QueueRender)
//	// ... draw ...
//	q.Process(frame.PostRender)
//	q.EndTick()
//
// An event whose Apply returns false is dropped with a warning. A failing
// Apply is governed by the FailurePolicy: by default it aborts the rest of
// the tick and the remaining events roll over to the next one.
package frame
