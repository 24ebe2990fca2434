// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/gputypes"
)

// UniformBuffer is a fixed-size uniform block with a CPU shadow copy.
//
// Setters only touch the shadow and mark it dirty; Flush writes it to the
// already allocated backend buffer. Neither ever allocates a backend object,
// so per-draw updates stay cheap.
type UniformBuffer struct {
	buf    *Buffer
	shadow []byte
	dirty  bool
}

var _ Resource = (*UniformBuffer)(nil)

// NewUniformBuffer returns an Uninitialised uniform block of size bytes.
func NewUniformBuffer(d *device.Device, label string, size uint64) *UniformBuffer {
	return &UniformBuffer{
		buf:    NewBuffer(d, label, gputypes.BufferUsageUniform),
		shadow: make([]byte, size),
		dirty:  true,
	}
}

// Label returns the debug label.
func (u *UniformBuffer) Label() string { return u.buf.Label() }

// State returns the lifecycle state of the backend buffer.
func (u *UniformBuffer) State() State { return u.buf.State() }

// Handle returns the backend buffer handle.
func (u *UniformBuffer) Handle() device.Handle { return u.buf.Handle() }

// Size returns the block size in bytes.
func (u *UniformBuffer) Size() uint64 { return uint64(len(u.shadow)) }

// Dirty reports whether the shadow copy has changes not yet flushed.
func (u *UniformBuffer) Dirty() bool { return u.dirty }

// Bytes returns the shadow copy. Callers must not modify it.
func (u *UniformBuffer) Bytes() []byte { return u.shadow }

// Cleanup releases the backend buffer. The shadow copy is kept and uploaded
// again by the next Initialise.
func (u *UniformBuffer) Cleanup() { u.buf.Cleanup(); u.dirty = true }

// Destroy releases the backend buffer and makes the block unusable.
func (u *UniformBuffer) Destroy() { u.buf.Destroy() }

// Create allocates the backend buffer.
func (u *UniformBuffer) Create() error { return u.buf.Create(uint64(len(u.shadow))) }

// Initialise uploads the shadow copy.
func (u *UniformBuffer) Initialise() error {
	if err := u.buf.SetData(u.shadow); err != nil {
		return err
	}
	if err := u.buf.Initialise(); err != nil {
		return err
	}
	u.dirty = false
	return nil
}

// Set copies data into the shadow at offset.
func (u *UniformBuffer) Set(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > uint64(len(u.shadow)) {
		return fmt.Errorf("%w: %d bytes at %d in %d byte block %q",
			ErrRange, len(data), offset, len(u.shadow), u.buf.label)
	}
	copy(u.shadow[offset:], data)
	u.dirty = true
	return nil
}

// SetFloat32 stores v at offset.
func (u *UniformBuffer) SetFloat32(offset uint64, v float32) error {
	return u.SetFloat32s(offset, v)
}

// SetFloat32s stores vs contiguously at offset.
func (u *UniformBuffer) SetFloat32s(offset uint64, vs ...float32) error {
	if offset+uint64(len(vs))*4 > uint64(len(u.shadow)) {
		return fmt.Errorf("%w: %d floats at %d in %d byte block %q",
			ErrRange, len(vs), offset, len(u.shadow), u.buf.label)
	}
	for i, v := range vs {
		binary.LittleEndian.PutUint32(u.shadow[offset+uint64(i)*4:], math.Float32bits(v))
	}
	u.dirty = true
	return nil
}

// SetUint32 stores v at offset.
func (u *UniformBuffer) SetUint32(offset uint64, v uint32) error {
	if offset+4 > uint64(len(u.shadow)) {
		return fmt.Errorf("%w: uint32 at %d in %d byte block %q", ErrRange, offset, len(u.shadow), u.buf.label)
	}
	binary.LittleEndian.PutUint32(u.shadow[offset:], v)
	u.dirty = true
	return nil
}

// Float32 reads the float at offset from the shadow.
func (u *UniformBuffer) Float32(offset uint64) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(u.shadow[offset:]))
}

// Flush writes the shadow to the backend if it changed since the last
// flush.
func (u *UniformBuffer) Flush() error {
	if !u.dirty {
		return nil
	}
	if err := u.buf.Write(0, u.shadow); err != nil {
		return err
	}
	u.dirty = false
	return nil
}

// Bind attaches the block to slot.
func (u *UniformBuffer) Bind(slot device.Slot) bool { return u.buf.Bind(slot) }
