// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrTarget matches every TargetError via errors.Is.
	ErrTarget = errors.New("technique: render target not ready")

	// ErrState is returned for a frame step called out of order.
	ErrState = errors.New("technique: invalid frame step")

	// ErrNoStrategy is returned when a technique is built without a strategy.
	ErrNoStrategy = errors.New("technique: no strategy")

	// ErrUnsupported is returned by strategies the backend cannot run.
	ErrUnsupported = errors.New("technique: unsupported by device")
)

// TargetError reports a render target that cannot be rendered into. The
// frame is skipped and prepared again on the next tick.
type TargetError struct {
	Target string
	Reason string
	Err    error
}

func (e *TargetError) Error() string {
	msg := fmt.Sprintf("technique: target %q: %s", e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TargetError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTarget.
func (e *TargetError) Is(target error) bool { return target == ErrTarget }
