// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package frame

import (
	"errors"
	"fmt"
)

// EventType is the priority class of an event. Classes are applied in
// declaration order.
type EventType uint8

const (
	// PreRender events run before anything is drawn: resource creation,
	// uploads, scene mutation.
	PreRender EventType = iota
	// QueueRender events run after the pre-render class and before the
	// technique: technique switches, target changes.
	QueueRender
	// PostRender events run when the frame is presented: cleanup,
	// readbacks, statistics.
	PostRender

	eventTypeCount
)

var eventTypeNames = [...]string{
	PreRender:   "PreRender",
	QueueRender: "QueueRender",
	PostRender:  "PostRender",
}

// String returns the class name.
func (t EventType) String() string {
	if t < eventTypeCount {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EventType(%d)", t)
}

// Valid reports whether t is a known class.
func (t EventType) Valid() bool { return t < eventTypeCount }

// Event is a deferred action executed on the render thread.
//
// Apply returns false to report that the event could not do its work; the
// event is dropped without retry. A non-nil error, or a panic, is a failure
// of the frame: see FailurePolicy.
type Event interface {
	Type() EventType
	Apply() (bool, error)
}

// Named is implemented by events that carry a diagnostic name.
type Named interface {
	Name() string
}

// Releaser is implemented by events that hold references to drop once they
// have been applied or discarded.
type Releaser interface {
	Release()
}

// Functor is an Event running a function.
type Functor struct {
	typ  EventType
	name string
	fn   func() error
}

var (
	_ Event = (*Functor)(nil)
	_ Named = (*Functor)(nil)
)

// NewFunctor returns an event of class t running fn.
func NewFunctor(t EventType, name string, fn func() error) *Functor {
	return &Functor{typ: t, name: name, fn: fn}
}

// Type implements Event.
func (f *Functor) Type() EventType { return f.typ }

// Name implements Named.
func (f *Functor) Name() string { return f.name }

// Apply runs the function. A nil function drops the event.
func (f *Functor) Apply() (bool, error) {
	if f.fn == nil {
		return false, nil
	}
	return true, f.fn()
}

// Initialiser is a resource that becomes usable once initialised on the
// render thread.
type Initialiser interface {
	Initialise() error
}

// Cleaner is a resource that releases its backend objects on the render
// thread.
type Cleaner interface {
	Cleanup()
}

// InitialiseEvent returns a PreRender event calling r.Initialise.
func InitialiseEvent(name string, r Initialiser) Event {
	return NewFunctor(PreRender, name, r.Initialise)
}

// CleanupEvent returns a PostRender event calling r.Cleanup.
func CleanupEvent(name string, r Cleaner) Event {
	return NewFunctor(PostRender, name, func() error {
		r.Cleanup()
		return nil
	})
}

// ErrApply matches every ApplyError via errors.Is.
var ErrApply = errors.New("frame: event failed")

// ApplyError reports an event whose Apply failed or panicked.
type ApplyError struct {
	Type EventType
	// Name is the event name, if it implements Named.
	Name string
	Err  error
}

func (e *ApplyError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("frame: %s event %q: %v", e.Type, e.Name, e.Err)
	}
	return fmt.Sprintf("frame: %s event: %v", e.Type, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ApplyError) Unwrap() error { return e.Err }

// Is reports whether target is ErrApply.
func (e *ApplyError) Is(target error) bool { return target == ErrApply }

func nameOf(e Event) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return ""
}

// apply runs e, turning a panic into an ApplyError.
func apply(e Event) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &ApplyError{Type: e.Type(), Name: nameOf(e), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	ok, err = e.Apply()
	if err != nil {
		err = &ApplyError{Type: e.Type(), Name: nameOf(e), Err: err}
	}
	return ok, err
}

func release(e Event) {
	if r, ok := e.(Releaser); ok {
		r.Release()
	}
}
