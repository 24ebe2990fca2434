// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"github.com/gogpu/castor/internal/logging"
)

// CreateFunc builds the pipeline for key on a cache miss.
type CreateFunc func(key Key) (*Pipeline, error)

// CacheStats are cumulative cache counters.
type CacheStats struct {
	Len      int
	Hits     uint64
	Misses   uint64
	Failures uint64
	HitRate  float64
}

// Cache reuses pipelines across frames, keyed by composition.
//
// A creation failure is remembered so that the same key does not retry on
// every frame; Forget or DestroyAll clears it. Cache belongs to the render
// thread and is not safe for concurrent use.
type Cache struct {
	entries map[Key]*Pipeline
	failed  map[Key]error

	hits     uint64
	misses   uint64
	failures uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[Key]*Pipeline),
		failed:  make(map[Key]error),
	}
}

// Get returns the cached pipeline for key.
func (c *Cache) Get(key Key) (*Pipeline, bool) {
	p, ok := c.entries[key]
	return p, ok
}

// GetOrCreate returns the pipeline for key, calling create on a miss.
func (c *Cache) GetOrCreate(key Key, create CreateFunc) (*Pipeline, error) {
	if p, ok := c.entries[key]; ok {
		c.hits++
		return p, nil
	}
	if err, ok := c.failed[key]; ok {
		c.hits++
		return nil, err
	}
	c.misses++
	p, err := create(key)
	if err != nil {
		c.failures++
		c.failed[key] = err
		logging.Logger().Warn("pipeline: creation failed", "program", programLabel(key), "err", err)
		return nil, err
	}
	c.entries[key] = p
	logging.Logger().Debug("pipeline: created", "program", programLabel(key), "cached", len(c.entries))
	return p, nil
}

func programLabel(key Key) string {
	if key.Program == nil {
		return ""
	}
	return key.Program.Label()
}

// Forget drops the pipeline or the remembered failure of key. A dropped
// pipeline is cleaned up.
func (c *Cache) Forget(key Key) {
	if p, ok := c.entries[key]; ok {
		p.Cleanup()
		delete(c.entries, key)
	}
	delete(c.failed, key)
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int { return len(c.entries) }

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	s := CacheStats{Len: len(c.entries), Hits: c.hits, Misses: c.misses, Failures: c.failures}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// DestroyAll cleans up every cached pipeline and forgets all failures.
func (c *Cache) DestroyAll() {
	for k, p := range c.entries {
		p.Cleanup()
		delete(c.entries, k)
	}
	clear(c.failed)
}
