// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/castor/device"
	"github.com/gogpu/gputypes"
)

// Buffer is a GPU buffer with a CPU copy of its assigned data.
//
// Lifecycle: Create allocates the backend buffer, Initialise uploads the
// assigned data, Cleanup releases the backend buffer and Destroy finishes
// the resource.
type Buffer struct {
	base
	usage gputypes.BufferUsage
	size  uint64
	data  []byte
}

var _ Resource = (*Buffer)(nil)

// NewBuffer returns an Uninitialised buffer for d.
func NewBuffer(d *device.Device, label string, usage gputypes.BufferUsage) *Buffer {
	return &Buffer{base: newBase(d, device.KindBuffer, label), usage: usage | gputypes.BufferUsageCopyDst}
}

// Size returns the allocated size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Data returns the assigned data. The slice must not be modified.
func (b *Buffer) Data() []byte { return b.data }

// HasData reports whether data has been assigned.
func (b *Buffer) HasData() bool { return len(b.data) > 0 }

// SetData assigns the data uploaded by the next Initialise. On an
// Initialised buffer the data is uploaded immediately and must fit.
func (b *Buffer) SetData(data []byte) error {
	switch b.state {
	case Destroyed:
		return stateError("set data", b.state)
	case Initialised:
		if uint64(len(data)) > b.size {
			return fmt.Errorf("%w: %d bytes into %d byte buffer %q", ErrRange, len(data), b.size, b.label)
		}
		if err := b.upload(0, data); err != nil {
			return err
		}
	}
	b.data = append(b.data[:0], data...)
	return nil
}

// Create allocates a backend buffer of size bytes. On failure it returns an
// *AllocationError and the buffer stays Uninitialised.
func (b *Buffer) Create(size uint64) error {
	if err := b.create(device.BufferDescriptor{Label: b.label, Size: size, Usage: b.usage}); err != nil {
		return err
	}
	b.size = size
	return nil
}

// Initialise uploads the assigned data, if any, and makes the buffer
// bindable.
func (b *Buffer) Initialise() error {
	if b.state != Created {
		return stateError("initialise", b.state)
	}
	if uint64(len(b.data)) > b.size {
		return fmt.Errorf("%w: %d bytes into %d byte buffer %q", ErrRange, len(b.data), b.size, b.label)
	}
	if len(b.data) > 0 {
		if err := b.upload(0, b.data); err != nil {
			return err
		}
	}
	b.state = Initialised
	return nil
}

// Write copies data at offset into an Initialised buffer and its CPU copy.
// It never allocates a backend object.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.state != Initialised {
		return stateError("write", b.state)
	}
	end := offset + uint64(len(data))
	if end > b.size {
		return fmt.Errorf("%w: %d bytes at %d into %d byte buffer %q", ErrRange, len(data), offset, b.size, b.label)
	}
	if err := b.upload(offset, data); err != nil {
		return err
	}
	if uint64(len(b.data)) < end {
		b.data = append(b.data, make([]byte, end-uint64(len(b.data)))...)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buffer) upload(offset uint64, data []byte) error {
	d, err := b.device()
	if err != nil {
		return err
	}
	return d.WriteBuffer(b.handle, offset, data)
}

// Bind attaches the buffer to slot. It returns false without calling the
// device if the buffer is not Initialised or has no data; callers skip the
// draw.
func (b *Buffer) Bind(slot device.Slot) bool {
	if len(b.data) == 0 {
		return false
	}
	return b.bind(slot)
}

// Unbind clears slot if the buffer occupies it.
func (b *Buffer) Unbind(slot device.Slot) { b.unbind(slot) }

// Resize reallocates an Initialised buffer with newSize bytes and uploads
// the retained data. The transition is atomic: on failure the previous
// backend buffer and size are kept.
func (b *Buffer) Resize(newSize uint64) error {
	if b.state != Initialised {
		return stateError("resize", b.state)
	}
	if newSize == b.size {
		return nil
	}
	if b.isBound() {
		return fmt.Errorf("%w: resize of %q", ErrBound, b.label)
	}
	h, err := b.allocate(device.BufferDescriptor{Label: b.label, Size: newSize, Usage: b.usage})
	if err != nil {
		return err
	}
	keep := b.data
	if uint64(len(keep)) > newSize {
		keep = keep[:newSize]
	}
	if len(keep) > 0 {
		d, err := b.device()
		if err == nil {
			err = d.WriteBuffer(h, 0, keep)
		}
		if err != nil {
			b.destroyHandle(h)
			return err
		}
	}
	b.destroyHandle(b.handle)
	b.handle = h
	b.size = newSize
	b.data = keep
	return nil
}

// VertexBuffer is a Buffer laid out by a BufferDeclaration.
type VertexBuffer struct {
	*Buffer
	decl BufferDeclaration
}

// NewVertexBuffer returns an Uninitialised vertex buffer.
func NewVertexBuffer(d *device.Device, label string, decl BufferDeclaration) *VertexBuffer {
	return &VertexBuffer{Buffer: NewBuffer(d, label, gputypes.BufferUsageVertex), decl: decl}
}

// Declaration returns the vertex layout.
func (v *VertexBuffer) Declaration() BufferDeclaration { return v.decl }

// Count returns the number of vertices in the assigned data.
func (v *VertexBuffer) Count() uint32 {
	if v.decl.Stride() == 0 {
		return 0
	}
	return uint32(uint64(len(v.data)) / v.decl.Stride())
}

// IndexBuffer is a Buffer of 16 or 32 bit indices.
type IndexBuffer struct {
	*Buffer
	format gputypes.IndexFormat
}

// NewIndexBuffer returns an Uninitialised index buffer.
func NewIndexBuffer(d *device.Device, label string, format gputypes.IndexFormat) *IndexBuffer {
	if format == gputypes.IndexFormatUndefined {
		format = gputypes.IndexFormatUint32
	}
	return &IndexBuffer{Buffer: NewBuffer(d, label, gputypes.BufferUsageIndex), format: format}
}

// Format returns the index format.
func (ib *IndexBuffer) Format() gputypes.IndexFormat { return ib.format }

// SetIndices encodes indices in the buffer format and assigns them.
func (ib *IndexBuffer) SetIndices(indices []uint32) error {
	var data []byte
	if ib.format == gputypes.IndexFormatUint16 {
		data = make([]byte, 0, len(indices)*2)
		for _, i := range indices {
			if i > 0xFFFF {
				return fmt.Errorf("%w: index %d in 16-bit buffer %q", ErrRange, i, ib.label)
			}
			data = binary.LittleEndian.AppendUint16(data, uint16(i))
		}
	} else {
		data = make([]byte, 0, len(indices)*4)
		for _, i := range indices {
			data = binary.LittleEndian.AppendUint32(data, i)
		}
	}
	return ib.SetData(data)
}

// Count returns the number of indices in the assigned data.
func (ib *IndexBuffer) Count() uint32 {
	if ib.format == gputypes.IndexFormatUint16 {
		return uint32(len(ib.data) / 2)
	}
	return uint32(len(ib.data) / 4)
}

// Bind attaches the buffer to the index slot.
func (ib *IndexBuffer) Bind() bool { return ib.Buffer.Bind(device.IndexSlot()) }
