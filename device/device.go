// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"

	"github.com/gogpu/castor/internal/logging"
	"github.com/gogpu/gputypes"
)

// entry is one live resource in the handle table.
type entry struct {
	desc Descriptor
	// binds counts slots, pass attachments and program bindings that
	// currently reference the resource.
	binds int
}

// Stats counts the work a Device forwarded to its backend.
type Stats struct {
	StateBinds           uint64
	StateBindsSkipped    uint64
	ProgramBinds         uint64
	ProgramBindsSkipped  uint64
	ResourceBinds        uint64
	ResourceBindsSkipped uint64
	Draws                uint64
	Passes               uint64
	Frames               uint64
	Created              uint64
	Destroyed            uint64
	Live                 int
}

// Device is the capability layer over one Backend: one logical GPU context.
//
// A Device validates descriptors against the backend feature level, keeps
// the active-state cache that suppresses redundant binds, owns the handle
// table and tracks which resources occupy pipeline slots.
//
// Device is not safe for concurrent use. It belongs to the render thread;
// other goroutines reach it through frame events.
type Device struct {
	backend Backend
	info    Info

	states    StateCache
	program   Handle
	slots     map[Slot]Handle
	resources map[Handle]*entry
	next      Handle

	inPass      bool
	passHandles []Handle

	stats  Stats
	closed bool
}

// New wraps b. The backend must be in its default state.
func New(b Backend) *Device {
	info := b.Info()
	logging.Logger().Info("device: opened",
		"backend", info.Name, "api", info.API.String(), "adapter", info.Adapter,
		"features", info.Features.String())
	return &Device{
		backend:   b,
		info:      info,
		states:    NewStateCache(),
		slots:     make(map[Slot]Handle),
		resources: make(map[Handle]*entry),
	}
}

// Info returns the backend description captured at creation.
func (d *Device) Info() Info { return d.info }

// Name returns the backend name.
func (d *Device) Name() string { return d.info.Name }

// Backend returns the wrapped backend.
func (d *Device) Backend() Backend { return d.backend }

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	s := d.stats
	s.Live = len(d.resources)
	return s
}

// Live returns the number of resources not yet destroyed.
func (d *Device) Live() int { return len(d.resources) }

// Describe returns the descriptor h was created from.
func (d *Device) Describe(h Handle) (Descriptor, bool) {
	e, ok := d.resources[h]
	if !ok {
		return nil, false
	}
	return e.desc, true
}

// IsBound reports whether h occupies a slot, the program binding or an
// attachment of the active pass.
func (d *Device) IsBound(h Handle) bool {
	e, ok := d.resources[h]
	return ok && e.binds > 0
}

// fail wraps err into a BackendError unless it already is one.
func (d *Device) fail(op string, err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Backend: d.info.Name, Op: op, Err: err}
}

// CreateResource creates the backend object described by desc. It fails
// with a BackendError if the descriptor is malformed or outside the active
// feature level.
func (d *Device) CreateResource(desc Descriptor) (Handle, error) {
	if desc == nil {
		return InvalidHandle, d.fail("create resource", ErrInvalidDescriptor)
	}
	op := "create " + desc.Kind().String()
	if d.closed {
		return InvalidHandle, d.fail(op, ErrClosed)
	}
	if err := d.validate(desc); err != nil {
		return InvalidHandle, d.fail(op, err)
	}

	d.next++
	h := d.next
	if err := d.backend.CreateResource(h, desc); err != nil {
		return InvalidHandle, d.fail(op, err)
	}
	d.resources[h] = &entry{desc: desc}
	d.stats.Created++
	logging.Logger().Debug("device: resource created",
		"kind", desc.Kind().String(), "label", desc.Name(), "handle", h)
	return h, nil
}

// DestroyResource releases h. Destroying a resource that is still bound to
// an active pipeline slot is a programmer error and panics with
// ErrResourceBound.
func (d *Device) DestroyResource(h Handle) {
	e, ok := d.resources[h]
	if !ok {
		logging.Logger().Warn("device: destroy of unknown handle", "handle", h)
		return
	}
	if e.binds > 0 {
		panic(fmt.Errorf("%w: %s %q (handle %d)", ErrResourceBound, e.desc.Kind(), e.desc.Name(), h))
	}
	d.backend.DestroyResource(h)
	delete(d.resources, h)
	d.stats.Destroyed++
	logging.Logger().Debug("device: resource destroyed", "kind", e.desc.Kind().String(), "handle", h)
}

// WriteBuffer copies data into buffer h at offset. It never allocates a
// backend object.
func (d *Device) WriteBuffer(h Handle, offset uint64, data []byte) error {
	e, err := d.lookup(h, KindBuffer)
	if err != nil {
		return err
	}
	size := e.desc.(BufferDescriptor).Size
	if offset+uint64(len(data)) > size {
		return d.fail("write buffer", fmt.Errorf("%w: %d bytes at %d, size %d",
			ErrOutOfRange, len(data), offset, size))
	}
	if err := d.backend.WriteBuffer(h, offset, data); err != nil {
		return d.fail("write buffer", err)
	}
	return nil
}

// WriteTexture uploads one mip level of texture h.
func (d *Device) WriteTexture(h Handle, level uint32, data []byte) error {
	e, err := d.lookup(h, KindTexture)
	if err != nil {
		return err
	}
	td := e.desc.(TextureDescriptor).Normalized()
	if level >= td.MipLevels {
		return d.fail("write texture", fmt.Errorf("%w: mip level %d of %d", ErrOutOfRange, level, td.MipLevels))
	}
	if err := d.backend.WriteTexture(h, level, data); err != nil {
		return d.fail("write texture", err)
	}
	return nil
}

// BindState makes s current on its stage. It reports whether the backend
// was called: a state equal to the cached one is suppressed.
func (d *Device) BindState(s State) (bool, error) {
	if s == nil {
		return false, d.fail("bind state", ErrInvalidDescriptor)
	}
	if d.states.Matches(s) {
		d.stats.StateBindsSkipped++
		return false, nil
	}
	op := "bind " + s.Kind().String()
	if err := d.validateState(s); err != nil {
		return false, d.fail(op, err)
	}
	if err := d.backend.BindState(s); err != nil {
		// The native stage may be half-applied.
		d.states.Forget(s.Kind())
		return false, d.fail(op, err)
	}
	d.states.Store(s)
	d.stats.StateBinds++
	return true, nil
}

// CheckState validates s against the feature level without binding it.
func (d *Device) CheckState(s State) error {
	if s == nil {
		return d.fail("check state", ErrInvalidDescriptor)
	}
	if err := d.validateState(s); err != nil {
		return d.fail("check "+s.Kind().String(), err)
	}
	return nil
}

// CurrentState returns the cached state of kind.
func (d *Device) CurrentState(kind StateKind) (State, bool) {
	return d.states.Current(kind)
}

// InvalidateStates forgets the active-state cache so the next bind of every
// stage reaches the backend. Used after an abandoned frame.
func (d *Device) InvalidateStates() {
	d.states.Invalidate()
	d.release(d.program)
	d.program = InvalidHandle
}

// BindProgram makes program h current. Rebinding the current program is
// suppressed.
func (d *Device) BindProgram(h Handle) error {
	e, err := d.lookup(h, KindProgram)
	if err != nil {
		return err
	}
	if d.program == h {
		d.stats.ProgramBindsSkipped++
		return nil
	}
	if err := d.backend.BindProgram(h); err != nil {
		return d.fail("bind program", err)
	}
	d.release(d.program)
	d.program = h
	e.binds++
	d.stats.ProgramBinds++
	return nil
}

// Program returns the bound program.
func (d *Device) Program() Handle { return d.program }

// BindResource attaches h to slot. Passing InvalidHandle clears the slot.
func (d *Device) BindResource(slot Slot, h Handle) error {
	if !h.IsValid() {
		d.UnbindResource(slot)
		return nil
	}
	e, ok := d.resources[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	cur, occupied := d.slots[slot]
	if occupied && cur == h {
		d.stats.ResourceBindsSkipped++
		return nil
	}
	if err := d.backend.BindResource(slot, h); err != nil {
		return d.fail("bind "+slot.String(), err)
	}
	if occupied {
		d.release(cur)
	}
	d.slots[slot] = h
	e.binds++
	d.stats.ResourceBinds++
	return nil
}

// UnbindResource clears slot.
func (d *Device) UnbindResource(slot Slot) {
	cur, ok := d.slots[slot]
	if !ok {
		return
	}
	if err := d.backend.BindResource(slot, InvalidHandle); err != nil {
		logging.Logger().Warn("device: unbind failed", "slot", slot.String(), "err", err)
	}
	d.release(cur)
	delete(d.slots, slot)
}

// Bound returns the handle occupying slot.
func (d *Device) Bound(slot Slot) Handle { return d.slots[slot] }

// BeginPass starts a render pass into the attachments of p. Attachments
// count as bound until EndPass.
func (d *Device) BeginPass(p PassDescriptor) error {
	if d.closed {
		return d.fail("begin pass", ErrClosed)
	}
	if d.inPass {
		return ErrPassActive
	}
	if limit := d.info.Limits.MaxColorAttachments; limit > 0 && uint32(len(p.Colors)) > limit {
		return d.fail("begin pass", fmt.Errorf("%w: %d colour attachments, max %d",
			ErrUnsupported, len(p.Colors), limit))
	}
	handles := p.handles()
	for _, h := range handles {
		if _, err := d.lookup(h, KindTexture); err != nil {
			return err
		}
	}
	if err := d.backend.BeginPass(&p); err != nil {
		return d.fail("begin pass", err)
	}
	for _, h := range handles {
		d.resources[h].binds++
	}
	d.passHandles = handles
	d.inPass = true
	d.stats.Passes++
	return nil
}

// InPass reports whether a render pass is active.
func (d *Device) InPass() bool { return d.inPass }

// EndPass finishes the active pass and releases every slot, the program
// binding and the attachments, so resources used by the pass may be
// destroyed afterwards.
func (d *Device) EndPass() error {
	if !d.inPass {
		return ErrNoPass
	}
	err := d.backend.EndPass()
	for _, h := range d.passHandles {
		d.release(h)
	}
	d.passHandles = nil
	for slot, h := range d.slots {
		d.release(h)
		delete(d.slots, slot)
	}
	d.release(d.program)
	d.program = InvalidHandle
	d.inPass = false
	if err != nil {
		return d.fail("end pass", err)
	}
	return nil
}

// Draw submits call with the bound program and slots.
func (d *Device) Draw(call DrawCall) error {
	if !d.inPass {
		return ErrNoPass
	}
	if !d.program.IsValid() {
		return ErrNoProgram
	}
	if call.Indexed() {
		if _, ok := d.slots[IndexSlot()]; !ok {
			return d.fail("draw", fmt.Errorf("%w: indexed draw without index buffer", ErrInvalidDescriptor))
		}
		if call.IndexFormat == gputypes.IndexFormatUndefined {
			call.IndexFormat = gputypes.IndexFormatUint32
		}
	}
	if err := d.backend.Draw(call); err != nil {
		return d.fail("draw", err)
	}
	d.stats.Draws++
	return nil
}

// Present finishes the frame.
func (d *Device) Present() error {
	if d.inPass {
		return ErrPassActive
	}
	if err := d.backend.Present(); err != nil {
		return d.fail("present", err)
	}
	d.stats.Frames++
	return nil
}

// Close releases the backend. Every resource must have been destroyed
// first; otherwise Close returns ErrResourcesAlive and leaves the device
// usable.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	if d.inPass {
		if err := d.EndPass(); err != nil {
			logging.Logger().Warn("device: end pass on close", "err", err)
		}
	}
	if n := len(d.resources); n > 0 {
		return fmt.Errorf("%w: %d", ErrResourcesAlive, n)
	}
	d.closed = true
	logging.Logger().Info("device: closed", "backend", d.info.Name)
	return d.backend.Close()
}

// lookup returns the entry of h, checking its kind.
func (d *Device) lookup(h Handle, kind ResourceKind) (*entry, error) {
	e, ok := d.resources[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if e.desc.Kind() != kind {
		return nil, fmt.Errorf("%w: handle %d is a %s, want %s", ErrUnknownHandle, h, e.desc.Kind(), kind)
	}
	return e, nil
}

// release drops one binding reference of h.
func (d *Device) release(h Handle) {
	if e, ok := d.resources[h]; ok && e.binds > 0 {
		e.binds--
	}
}
