// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package plugin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/castor/technique"
)

// staging collects the registrations of one OnLoad call. Nothing reaches the
// registry until the call succeeds.
type staging struct {
	reg     *Registry
	frozen  bool
	entries []entry
	errs    []error
}

var _ Registrar = (*staging)(nil)

// run calls fn with s and converts a panic into an error.
func (s *staging) run(fn func(Registrar) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("plugin: panic: %v", p)
		}
	}()
	if err := fn(s); err != nil {
		return err
	}
	return errors.Join(s.errs...)
}

func (s *staging) add(kind, name string, taken bool, commit, remove func()) {
	switch {
	case s.frozen:
		s.errs = append(s.errs, fmt.Errorf("plugin: %s %q registered outside OnLoad", kind, name))
	case name == "":
		s.errs = append(s.errs, fmt.Errorf("plugin: %s with empty name", kind))
	case taken || s.staged(kind, name):
		s.errs = append(s.errs, fmt.Errorf("%w: %s %q", ErrDuplicate, kind, name))
	default:
		s.entries = append(s.entries, entry{kind: kind, name: name, commit: commit, remove: remove})
	}
}

func (s *staging) staged(kind, name string) bool {
	return slices.ContainsFunc(s.entries, func(e entry) bool { return e.kind == kind && e.name == name })
}

func (s *staging) RegisterTechnique(name string, factory func() technique.Strategy) {
	reg := s.reg.techniques
	s.add("technique", name, reg.Has(name),
		func() { reg.Register(name, factory) },
		func() { reg.Unregister(name) })
}

func (s *staging) RegisterPostEffect(name string, factory func() technique.PostEffect) {
	reg := s.reg.postEffects
	s.add("posteffect", name, reg.Has(name),
		func() { reg.Register(name, factory) },
		func() { reg.Unregister(name) })
}

func (s *staging) RegisterToneMapping(name string, factory func() technique.ToneMapping) {
	reg := s.reg.toneMappings
	s.add("tonemapping", name, reg.Has(name),
		func() { reg.Register(name, factory) },
		func() { reg.Unregister(name) })
}

func (s *staging) RegisterRenderer(name string, factory RendererFactory) {
	reg := s.reg.renderers
	s.add("renderer", name, reg.Has(name),
		func() { reg.Register(name, func() RendererFactory { return factory }) },
		func() { reg.Unregister(name) })
}
