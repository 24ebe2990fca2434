// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrBackend matches every BackendError via errors.Is.
	ErrBackend = errors.New("device: backend rejected operation")

	// ErrUnsupported is wrapped by a BackendError when a descriptor or state
	// is outside the active feature level.
	ErrUnsupported = errors.New("device: unsupported by feature level")

	// ErrInvalidDescriptor is wrapped by a BackendError when a descriptor is
	// malformed (zero size, undefined format, missing source).
	ErrInvalidDescriptor = errors.New("device: invalid descriptor")

	// ErrOutOfRange is wrapped by a BackendError when a write exceeds the
	// resource bounds.
	ErrOutOfRange = errors.New("device: write out of range")

	// ErrUnknownHandle is returned for handles the device never issued or
	// has already destroyed.
	ErrUnknownHandle = errors.New("device: unknown resource handle")

	// ErrNoPass is returned when a draw is issued outside a render pass.
	ErrNoPass = errors.New("device: no render pass active")

	// ErrPassActive is returned when a pass is begun while another is open.
	ErrPassActive = errors.New("device: render pass already active")

	// ErrNoProgram is returned when a draw is issued without a bound program.
	ErrNoProgram = errors.New("device: no program bound")

	// ErrResourcesAlive is returned by Close while resources still exist.
	ErrResourcesAlive = errors.New("device: resources still alive")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("device: closed")

	// ErrResourceBound is the panic value raised when a resource is
	// destroyed while still bound to an active pipeline slot.
	ErrResourceBound = errors.New("device: destroying a bound resource")
)

// BackendError reports that the backend rejected an operation.
// The caller may fall back (default pipeline) or skip the draw.
type BackendError struct {
	// Backend is the name of the backend that failed.
	Backend string
	// Op is the rejected operation, e.g. "create texture".
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("device: %s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBackend.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }
