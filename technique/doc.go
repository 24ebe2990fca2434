// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package technique turns a scene graph into frames.
//
// A Technique drives one frame through Prepare, RenderObjects,
// ApplyPostEffects, ApplyToneMapping and Present. How objects become draw
// calls is delegated to a Strategy: Forward shades every object in one
// multisampled pass, Deferred fills a G-buffer and lights it in a
// fullscreen pass. Plugins can provide more strategies, post effects and
// tone mappings.
//
//	target := technique.NewTarget(dev, "main", 1280, 720, technique.WithTargetDepth(gputypes.TextureFormatDepth24Plus))
//	if err := target.Initialise(); err != nil {
//		return err
//	}
//	tech, _ := technique.New(dev, technique.NewForward(),
//		technique.WithPostEffects(technique.Grayscale{}),
//		technique.WithToneMapping(technique.NewOperator(technique.ReinhardToneMapping)))
//	if err := tech.Render(target, graph, camera); err != nil {
//		// the frame was abandoned; render the next one
//	}
//
// Pipelines are built per program and material pass and cached for the
// life of the technique. A pipeline that cannot be built degrades the
// object to an unlit fallback program, and a post effect that fails is
// logged and skipped: neither aborts the frame.
package technique
