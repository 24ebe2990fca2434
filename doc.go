// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package castor is a render-technique engine: it turns a renderer-agnostic
// scene into state changes and draw calls dispatched through a pluggable
// device backend.
//
// # Overview
//
// An Engine owns four collaborators:
//
//   - a device.Device wrapping the backend opened by a renderer plugin
//     (backend/native over gogpu/wgpu, or the recording backend),
//   - a frame.Queue of events applied on the render thread,
//   - a plugin.Registry holding technique, post effect, tone mapping and
//     renderer factories,
//   - the active technique.Technique drawing the scene into the main target.
//
// # Quick Start
//
//	cfg := castor.DefaultConfig()
//	cfg.Technique = "deferred"
//
//	e, err := castor.New(castor.WithConfig(cfg))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer e.Close()
//
//	node, _ := e.Scene().CreateNode("box", nil)
//	node.SetPosition(mgl32.Vec3{0, 0, -5})
//	mesh := scene.NewMesh("box", scene.Cube(1, scene.NewMaterial("white")))
//	_ = e.Scene().AddGeometry(scene.NewGeometry("box", mesh), node)
//
//	if err := e.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Frames
//
// Each frame applies the PreRender events, then the QueueRender events,
// then runs the technique: Prepare, RenderObjects, ApplyPostEffects,
// ApplyToneMapping and Present. Present drains the PostRender events.
// Events posted during a frame wait for the next one. A failing event
// abandons the frame under the default failure policy; the events it did
// not reach run next frame.
//
// # Plugins
//
// The built-in techniques (forward, deferred), post effects (grayscale),
// tone mappings (linear, reinhard) and renderers (native, noop, recording)
// are registered as static plugins. Further plugins are passed with
// WithPlugins or found in the configured plugin directories.
//
// # Configuration
//
// Config is loaded from TOML with LoadConfig:
//
//	renderer = "native"
//	technique = "forward"
//	tone_mapping = "reinhard"
//	post_effects = ["grayscale"]
//	width = 1280
//	height = 720
//	sample_count = 4
//	frame_rate = 60
//	event_failure_policy = "abort"
//
// # Logging
//
// castor is silent by default. SetLogger enables structured logging for
// the engine and every sub-package.
package castor
