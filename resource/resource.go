// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"
	"weak"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/internal/logging"
)

// State is the lifecycle state of a GPU resource.
type State uint8

const (
	// Uninitialised resources own no backend object.
	Uninitialised State = iota
	// Created resources own a backend object with undefined contents.
	Created
	// Initialised resources hold their data and may be bound.
	Initialised
	// Destroyed resources are finished and cannot be reused.
	Destroyed
)

var stateNames = [...]string{
	Uninitialised: "Uninitialised",
	Created:       "Created",
	Initialised:   "Initialised",
	Destroyed:     "Destroyed",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Resource is implemented by every GPU resource wrapper.
type Resource interface {
	Label() string
	State() State
	Handle() device.Handle
	// Cleanup releases the backend object and returns to Uninitialised.
	Cleanup()
	// Destroy releases the backend object for good.
	Destroy()
}

// base carries the lifecycle shared by all resources. The device reference
// is weak: the Engine owns the device, resources only look it up.
type base struct {
	dev    weak.Pointer[device.Device]
	label  string
	kind   device.ResourceKind
	handle device.Handle
	state  State
}

func newBase(d *device.Device, kind device.ResourceKind, label string) base {
	return base{dev: weak.Make(d), label: label, kind: kind}
}

// Label returns the resource label.
func (r *base) Label() string { return r.label }

// State returns the lifecycle state.
func (r *base) State() State { return r.state }

// Handle returns the backend handle, or device.InvalidHandle if none.
func (r *base) Handle() device.Handle { return r.handle }

func (r *base) device() (*device.Device, error) {
	d := r.dev.Value()
	if d == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNoDevice, r.kind, r.label)
	}
	return d, nil
}

// allocate creates a backend object for desc without touching r.
func (r *base) allocate(desc device.Descriptor) (device.Handle, error) {
	d, err := r.device()
	if err != nil {
		return device.InvalidHandle, &AllocationError{Label: r.label, Kind: r.kind, Err: err}
	}
	h, err := d.CreateResource(desc)
	if err != nil {
		return device.InvalidHandle, &AllocationError{Label: r.label, Kind: r.kind, Err: err}
	}
	return h, nil
}

// create moves an Uninitialised resource to Created.
func (r *base) create(desc device.Descriptor) error {
	if r.state != Uninitialised {
		return stateError("create", r.state)
	}
	h, err := r.allocate(desc)
	if err != nil {
		return err
	}
	r.handle = h
	r.state = Created
	return nil
}

// bindable reports whether Bind may reach the device.
func (r *base) bindable() (*device.Device, bool) {
	if r.state != Initialised {
		return nil, false
	}
	d, err := r.device()
	if err != nil {
		return nil, false
	}
	return d, true
}

func (r *base) bind(slot device.Slot) bool {
	d, ok := r.bindable()
	if !ok {
		return false
	}
	if err := d.BindResource(slot, r.handle); err != nil {
		logging.Logger().Warn("resource: bind failed", "label", r.label, "slot", slot.String(), "err", err)
		return false
	}
	return true
}

// unbind clears slot if r occupies it.
func (r *base) unbind(slot device.Slot) {
	d, ok := r.bindable()
	if !ok {
		return
	}
	if d.Bound(slot) == r.handle {
		d.UnbindResource(slot)
	}
}

// destroyHandle releases h on the device, if the device is still alive.
func (r *base) destroyHandle(h device.Handle) {
	if !h.IsValid() {
		return
	}
	d := r.dev.Value()
	if d == nil {
		logging.Logger().Warn("resource: device released before resource", "kind", r.kind.String(), "label", r.label)
		return
	}
	d.DestroyResource(h)
}

// Cleanup releases the backend object. The resource may be created again.
func (r *base) Cleanup() {
	r.destroyHandle(r.handle)
	r.handle = device.InvalidHandle
	if r.state != Destroyed {
		r.state = Uninitialised
	}
}

// Destroy releases the backend object and makes the resource unusable.
func (r *base) Destroy() {
	r.destroyHandle(r.handle)
	r.handle = device.InvalidHandle
	r.state = Destroyed
}

// isBound reports whether the current handle occupies a device slot.
func (r *base) isBound() bool {
	d := r.dev.Value()
	return d != nil && d.IsBound(r.handle)
}
