// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

// StateCache remembers the state currently bound on each fixed-function
// stage. It is owned by the render thread and needs no locking.
//
// A stage is either known (its current state is recorded) or unknown, after
// Invalidate. An unknown stage never matches, so the next bind always reaches
// the backend.
type StateCache struct {
	current [stateKindCount]State
	known   [stateKindCount]bool
}

// NewStateCache returns a cache holding the backend defaults.
func NewStateCache() StateCache {
	var c StateCache
	c.Reset()
	return c
}

// Reset records the backend defaults for every stage.
func (c *StateCache) Reset() {
	for k := StateKind(0); k < stateKindCount; k++ {
		c.current[k] = DefaultState(k)
		c.known[k] = true
	}
}

// Invalidate forgets every stage.
func (c *StateCache) Invalidate() {
	for k := range c.known {
		c.current[k] = nil
		c.known[k] = false
	}
}

// Forget marks one stage unknown.
func (c *StateCache) Forget(kind StateKind) {
	if kind < stateKindCount {
		c.current[kind] = nil
		c.known[kind] = false
	}
}

// Matches reports whether s is already current.
func (c *StateCache) Matches(s State) bool {
	k := s.Kind()
	return c.known[k] && c.current[k] == s
}

// Store records s as current.
func (c *StateCache) Store(s State) {
	k := s.Kind()
	c.current[k] = s
	c.known[k] = true
}

// Current returns the state recorded for kind, or false if unknown.
func (c *StateCache) Current(kind StateKind) (State, bool) {
	if kind >= stateKindCount || !c.known[kind] {
		return nil, false
	}
	return c.current[kind], true
}
