// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a generic bounded LRU cache.
//
// The engine uses it for compiled shader modules, which are produced on
// loader goroutines and consumed by the render thread:
//
//	c := cache.New[string, *Module](64, nil)
//	m, err := c.GetOrCreate(source, compile)
//
// LRU is safe for concurrent use and must not be copied after creation.
package cache
