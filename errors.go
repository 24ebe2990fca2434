// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import "errors"

// Package errors.
var (
	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("castor: engine closed")

	// ErrRunning is returned when Run is called twice, or Close is called
	// while Run is active.
	ErrRunning = errors.New("castor: engine is running")

	// ErrNoRenderer is returned when no renderer plugin can open a backend.
	ErrNoRenderer = errors.New("castor: no renderer available")

	// ErrUnknownTechnique is returned for a technique name no plugin
	// registered.
	ErrUnknownTechnique = errors.New("castor: unknown technique")

	// ErrUnknownPostEffect is returned for an unregistered post effect.
	ErrUnknownPostEffect = errors.New("castor: unknown post effect")

	// ErrUnknownToneMapping is returned for an unregistered tone mapping.
	ErrUnknownToneMapping = errors.New("castor: unknown tone mapping")

	// ErrConfig wraps every Config validation failure.
	ErrConfig = errors.New("castor: invalid config")

	// ErrFramePanic wraps a panic recovered while rendering a frame.
	ErrFramePanic = errors.New("castor: frame panicked")
)
