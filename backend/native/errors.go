// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors.
var (
	// ErrNoBackend is returned when the requested graphics API is not
	// registered with the HAL.
	ErrNoBackend = errors.New("native: graphics API not available")

	// ErrNoAdapter is returned when no adapter matches the options.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrUnknownHandle is returned for handles the backend never created.
	ErrUnknownHandle = errors.New("native: unknown handle")

	// ErrUnbound is returned by Draw when a binding the program reads has no
	// resource in its slot.
	ErrUnbound = errors.New("native: binding has no resource")

	// ErrNoPass is returned by Draw and EndPass outside a render pass.
	ErrNoPass = errors.New("native: no render pass")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("native: backend closed")
)
