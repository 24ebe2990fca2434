// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import (
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/castor/backend/native"
	"github.com/gogpu/castor/device"
	"github.com/gogpu/castor/plugin"
	"github.com/gogpu/castor/recording"
	"github.com/gogpu/castor/technique"
)

// Built-in renderer names, in the order the engine tries them.
const (
	RendererNative    = "native"
	RendererNoop      = "noop"
	RendererRecording = "recording"
)

var rendererPriority = []string{RendererNative, RendererNoop, RendererRecording}

// builtins are the plugins linked into every engine.
func builtins() []plugin.Plugin {
	return []plugin.Plugin{
		&plugin.Func{
			PluginName: "castor.techniques",
			Kind:       plugin.TypeTechnique,
			Load: func(r plugin.Registrar) error {
				r.RegisterTechnique("forward", func() technique.Strategy { return technique.NewForward() })
				r.RegisterTechnique("deferred", func() technique.Strategy { return technique.NewDeferred() })
				return nil
			},
		},
		&plugin.Func{
			PluginName: "castor.posteffects",
			Kind:       plugin.TypePostFx,
			Load: func(r plugin.Registrar) error {
				r.RegisterPostEffect("grayscale", func() technique.PostEffect { return technique.Grayscale{} })
				return nil
			},
		},
		&plugin.Func{
			PluginName: "castor.tonemapping",
			Kind:       plugin.TypeToneMapping,
			Load: func(r plugin.Registrar) error {
				for _, name := range []string{technique.LinearToneMapping, technique.ReinhardToneMapping} {
					r.RegisterToneMapping(name, func() technique.ToneMapping { return technique.NewOperator(name) })
				}
				return nil
			},
		},
		&plugin.Func{
			PluginName: "castor.renderers",
			Kind:       plugin.TypeRenderer,
			Load: func(r plugin.Registrar) error {
				r.RegisterRenderer(RendererNative, func() (device.Backend, error) {
					return native.Open()
				})
				r.RegisterRenderer(RendererNoop, func() (device.Backend, error) {
					return native.Open(native.WithHAL(noop.API{}))
				})
				r.RegisterRenderer(RendererRecording, func() (device.Backend, error) {
					return recording.NewRecorder(), nil
				})
				return nil
			},
		},
	}
}
