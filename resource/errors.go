// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/castor/device"
)

// Package errors.
var (
	// ErrAllocation matches every AllocationError via errors.Is.
	ErrAllocation = errors.New("resource: allocation failed")

	// ErrState is returned when an operation is called in the wrong
	// lifecycle state, e.g. Initialise before Create.
	ErrState = errors.New("resource: invalid lifecycle state")

	// ErrNoDevice is returned when the device the resource was created for
	// no longer exists.
	ErrNoDevice = errors.New("resource: device released")

	// ErrBound is returned by Resize while the resource is bound.
	ErrBound = errors.New("resource: resource is bound")

	// ErrRange is returned when data does not fit the resource.
	ErrRange = errors.New("resource: data out of range")

	// ErrFormat is returned when image data cannot be converted to the
	// texture format.
	ErrFormat = errors.New("resource: unsupported texel format")
)

// AllocationError reports that the backend refused to allocate a resource.
// The resource stays Uninitialised.
type AllocationError struct {
	// Label is the resource label.
	Label string
	// Kind is the backend object kind.
	Kind device.ResourceKind
	// Err is the underlying cause, usually a *device.BackendError.
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("resource: allocate %s %q: %v", e.Kind, e.Label, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AllocationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAllocation.
func (e *AllocationError) Is(target error) bool { return target == ErrAllocation }

func stateError(op string, s State) error {
	return fmt.Errorf("%w: %s in state %s", ErrState, op, s)
}
