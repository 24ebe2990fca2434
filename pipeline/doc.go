// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline composes a shader program and the four fixed-function
// states into a Pipeline that is applied before draws.
//
// Pipelines are identified by Key and reused across frames through a Cache.
// Per-frame values such as matrices or a morph factor live in uniform blocks
// owned by the pipeline: setters change a CPU copy, Update writes the copy
// into the existing buffer and Apply binds everything, touching only the
// states that differ from the device cache.
//
//	p, err := cache.GetOrCreate(key, func(k pipeline.Key) (*pipeline.Pipeline, error) {
//		return pipeline.New(dev, k, pipeline.WithUniform(pipeline.MatricesUniform, m.Buffer()))
//	})
//	m.SetModel(world)
//	p.Update()
//	p.Apply()
//	dev.Draw(call)
package pipeline
