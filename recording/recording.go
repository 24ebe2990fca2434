// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package recording

import (
	"fmt"

	"github.com/gogpu/castor/device"
)

// Recording is an immutable sequence of backend calls.
// Recordings are created by Recorder.Finish.
type Recording struct {
	commands []Command
}

// Len returns the number of commands.
func (r *Recording) Len() int { return len(r.commands) }

// Commands returns a copy of the commands.
func (r *Recording) Commands() []Command {
	return append([]Command(nil), r.commands...)
}

// Count returns how many commands have type t.
func (r *Recording) Count(t CommandType) int {
	n := 0
	for _, c := range r.commands {
		if c.Type() == t {
			n++
		}
	}
	return n
}

// Frames returns the number of presented frames.
func (r *Recording) Frames() int { return r.Count(CmdPresent) }

// Playback issues every command on b in order. Handles are replayed
// unchanged, so b must be a fresh backend in its default state. Playback
// stops at the first failing command.
func (r *Recording) Playback(b device.Backend) error {
	for i, c := range r.commands {
		if err := c.replay(b); err != nil {
			return fmt.Errorf("recording: playback of command %d (%s): %w", i, c.Type(), err)
		}
	}
	return nil
}
