// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL programs and wraps them as device resources.
//
// Compilation goes through naga: the source is parsed, lowered to IR and
// validated, then its entry points and resource bindings are reflected. A
// Compiler caches modules by source so that identical programs are only
// compiled once, and may optionally emit SPIR-V for backends that consume it.
//
//	c := shader.NewCompiler()
//	p := shader.NewProgram(dev, "forward", src, shader.WithCompiler(c))
//	if err := p.Create(); err != nil {
//		// *resource.AllocationError wrapping a *CompileError
//	}
//	p.Initialise()
package shader
