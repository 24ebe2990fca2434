// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import (
	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/plugin"
)

// Option configures an Engine during creation.
//
// Example:
//
//	// Forward rendering with the configured renderer
//	e, err := castor.New(castor.WithConfig(cfg))
//
//	// Render into a backend owned by the caller
//	e, err := castor.New(castor.WithBackend(recording.NewRecorder()))
type Option func(*options)

type options struct {
	config  Config
	backend device.Backend
	plugins []plugin.Library
	loader  plugin.Loader
}

func defaultOptions() options {
	return options{config: DefaultConfig()}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithBackend renders through b instead of a renderer plugin. The engine
// closes b when it is closed.
func WithBackend(b device.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithPlugins loads libraries after the built-in plugins and before the
// configured plugin directories are scanned.
func WithPlugins(libs ...plugin.Library) Option {
	return func(o *options) { o.plugins = append(o.plugins, libs...) }
}

// WithLoader opens plugin files found in the configured plugin
// directories. Default: plugin.DefaultLoader().
func WithLoader(l plugin.Loader) Option {
	return func(o *options) { o.loader = l }
}
