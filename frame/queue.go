// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package frame

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/castor/internal/logging"
)

// Queue errors.
var (
	// ErrClosed is returned by Post and BeginTick after Close.
	ErrClosed = errors.New("frame: queue closed")

	// ErrNilEvent is returned when posting a nil event.
	ErrNilEvent = errors.New("frame: nil event")

	// ErrUnknownType is returned for an event class outside the known ones.
	ErrUnknownType = errors.New("frame: unknown event type")

	// ErrNoTick is returned by Process outside BeginTick/EndTick.
	ErrNoTick = errors.New("frame: no tick in progress")

	// ErrTickActive is returned by BeginTick while a tick is in progress.
	ErrTickActive = errors.New("frame: tick already in progress")

	// ErrTickAborted is returned by Process once a failure aborted the tick.
	ErrTickAborted = errors.New("frame: tick aborted")
)

// FailurePolicy selects what a failing Apply does to the rest of the tick.
type FailurePolicy uint8

const (
	// AbortOnFailure stops the tick at the first failure. Events not yet
	// applied roll over to the next tick, ahead of newer events.
	AbortOnFailure FailurePolicy = iota
	// ContinueOnFailure logs the failure, discards the event and carries on.
	ContinueOnFailure
)

// String returns the policy name as used in configuration files.
func (p FailurePolicy) String() string {
	switch p {
	case AbortOnFailure:
		return "abort"
	case ContinueOnFailure:
		return "continue"
	}
	return fmt.Sprintf("FailurePolicy(%d)", p)
}

// ParseFailurePolicy parses "abort" or "continue".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return AbortOnFailure, nil
	case "continue":
		return ContinueOnFailure, nil
	}
	return 0, fmt.Errorf("frame: unknown failure policy %q", s)
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	policy   FailurePolicy
	capacity int
}

func defaultOptions() options {
	return options{policy: AbortOnFailure, capacity: 16}
}

// WithFailurePolicy sets the failure policy. Default: AbortOnFailure.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithCapacity preallocates room for n events per class.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// Stats are cumulative queue counters.
type Stats struct {
	Posted  uint64
	Applied uint64
	// Dropped counts events whose Apply returned false.
	Dropped uint64
	Failed  uint64
	// Rolled counts events carried over to a later tick by an abort.
	Rolled uint64
	Ticks  uint64
	// Aborted counts ticks stopped by a failure.
	Aborted uint64
}

// Queue is a multiple-producer, single-consumer queue of frame events.
//
// Any goroutine may Post. The render thread drains the queue once per frame:
// BeginTick takes a snapshot of everything posted so far, Process applies
// one class of the snapshot in FIFO order and EndTick finishes the tick.
// Events posted while a tick is in progress, including those posted by
// Apply itself, wait for the next tick.
type Queue struct {
	opts options

	mu      sync.Mutex
	pending [eventTypeCount][]Event
	tick    [eventTypeCount][]Event
	ticking bool
	aborted bool
	closed  bool
	stats   Stats
}

// NewQueue creates an empty queue.
func NewQueue(opts ...Option) *Queue {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	q := &Queue{opts: o}
	for t := range q.pending {
		q.pending[t] = make([]Event, 0, o.capacity)
	}
	return q
}

// Policy returns the failure policy.
func (q *Queue) Policy() FailurePolicy { return q.opts.policy }

// Post enqueues e. Safe for concurrent use.
func (q *Queue) Post(e Event) error {
	if e == nil {
		return ErrNilEvent
	}
	t := e.Type()
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.pending[t] = append(q.pending[t], e)
	q.stats.Posted++
	return nil
}

// PostFunc enqueues fn as an event of class t.
func (q *Queue) PostFunc(t EventType, name string, fn func() error) error {
	return q.Post(NewFunctor(t, name, fn))
}

// BeginTick snapshots the pending events for this tick.
func (q *Queue) BeginTick() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.ticking {
		return ErrTickActive
	}
	for t := range q.pending {
		q.tick[t] = q.pending[t]
		q.pending[t] = make([]Event, 0, q.opts.capacity)
	}
	q.ticking = true
	q.aborted = false
	q.stats.Ticks++
	return nil
}

// Ticking reports whether a tick is in progress.
func (q *Queue) Ticking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ticking
}

// Process applies the snapshot events of class t in FIFO order. It returns
// the *ApplyError of a failing event under AbortOnFailure, and
// ErrTickAborted if an earlier class already aborted the tick.
func (q *Queue) Process(t EventType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	for {
		q.mu.Lock()
		switch {
		case !q.ticking:
			q.mu.Unlock()
			return ErrNoTick
		case q.aborted:
			q.mu.Unlock()
			return ErrTickAborted
		case len(q.tick[t]) == 0:
			q.mu.Unlock()
			return nil
		}
		e := q.tick[t][0]
		q.tick[t][0] = nil
		q.tick[t] = q.tick[t][1:]
		q.mu.Unlock()

		// Apply runs unlocked so it may Post.
		ok, err := apply(e)
		release(e)

		q.mu.Lock()
		switch {
		case err != nil:
			q.stats.Failed++
		case !ok:
			q.stats.Dropped++
		default:
			q.stats.Applied++
		}
		abort := err != nil && q.opts.policy == AbortOnFailure
		if abort {
			q.aborted = true
			q.stats.Aborted++
		}
		q.mu.Unlock()

		switch {
		case abort:
			logging.Logger().Warn("frame: event failed, tick aborted", "type", t.String(), "err", err)
			return err
		case err != nil:
			logging.Logger().Warn("frame: event failed, skipped", "type", t.String(), "err", err)
		case !ok:
			logging.Logger().Warn("frame: event dropped", "type", t.String(), "name", nameOf(e))
		}
	}
}

// EndTick finishes the tick. Snapshot events that were not applied are put
// back ahead of the events posted since BeginTick. It returns how many were
// rolled over.
func (q *Queue) EndTick() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.ticking {
		return 0
	}
	rolled := 0
	for t := range q.tick {
		if n := len(q.tick[t]); n > 0 {
			merged := make([]Event, 0, n+len(q.pending[t]))
			merged = append(merged, q.tick[t]...)
			merged = append(merged, q.pending[t]...)
			q.pending[t] = merged
			rolled += n
		}
		q.tick[t] = nil
	}
	q.stats.Rolled += uint64(rolled)
	q.ticking = false
	q.aborted = false
	if rolled > 0 {
		logging.Logger().Debug("frame: events rolled to next tick", "count", rolled)
	}
	return rolled
}

// Drain runs a full tick: every class in priority order. It returns the
// first failure under AbortOnFailure.
func (q *Queue) Drain() error {
	if err := q.BeginTick(); err != nil {
		return err
	}
	defer q.EndTick()
	for t := PreRender; t < eventTypeCount; t++ {
		if err := q.Process(t); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of events waiting, including unapplied snapshot
// events of the current tick.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for t := range q.pending {
		n += len(q.pending[t]) + len(q.tick[t])
	}
	return n
}

// LenOf returns the number of waiting events of class t.
func (q *Queue) LenOf(t EventType) int {
	if !t.Valid() {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[t]) + len(q.tick[t])
}

// Stats returns the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close discards every waiting event without applying it and rejects
// further posts. It returns the number of discarded events.
func (q *Queue) Close() int {
	q.mu.Lock()
	var discarded []Event
	for t := range q.pending {
		discarded = append(discarded, q.tick[t]...)
		discarded = append(discarded, q.pending[t]...)
		q.tick[t] = nil
		q.pending[t] = nil
	}
	q.closed = true
	q.ticking = false
	q.mu.Unlock()

	for _, e := range discarded {
		release(e)
	}
	if len(discarded) > 0 {
		logging.Logger().Info("frame: queue closed", "discarded", len(discarded))
	}
	return len(discarded)
}
