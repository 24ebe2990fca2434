// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package plugin loads engine extensions and holds the factories they
// register.
//
// A plugin exposes five entry points: GetRequiredVersion, GetType, GetName,
// OnLoad and OnUnload. Plugins linked into the binary implement Plugin and
// are wrapped with Static; plugin files are opened by the platform Loader
// (Go plugins with cgo, C ABI libraries through goffi without it):
//
//	reg := plugin.NewRegistry(plugin.WithRendererPriority("native", "recording"))
//	err := reg.Load(plugin.Static(&plugin.Func{
//		PluginName: "forward",
//		Kind:       plugin.TypeTechnique,
//		Load: func(r plugin.Registrar) error {
//			r.RegisterTechnique("forward", func() technique.Strategy {
//				return technique.NewForward()
//			})
//			return nil
//		},
//	}))
//	strategy, ok := reg.Technique("forward")
//
// Loading is all or nothing. A missing entry point, an unsatisfied version,
// a failing OnLoad or a clashing factory name yields a *LoadError and leaves
// no registration behind. Unload runs OnUnload before the library is
// released.
package plugin
