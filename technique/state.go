// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import "fmt"

// State is the position of a technique within a frame.
type State uint8

const (
	Idle State = iota
	TargetPrepared
	ObjectsRendered
	PostEffectsApplied
	Presented
)

var stateNames = [...]string{
	Idle:               "Idle",
	TargetPrepared:     "TargetPrepared",
	ObjectsRendered:    "ObjectsRendered",
	PostEffectsApplied: "PostEffectsApplied",
	Presented:          "Presented",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}
