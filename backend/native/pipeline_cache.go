// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/castor/device"
)

// CacheStats reports pipeline cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

type pipelineKey struct {
	program device.Handle
	hash    uint64
}

// pipelineCache caches native render pipelines by program and by a hash of
// the bound states and the pass attachment layout.
type pipelineCache struct {
	mu      sync.RWMutex
	entries map[pipelineKey]hal.RenderPipeline
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{entries: make(map[pipelineKey]hal.RenderPipeline)}
}

func (c *pipelineCache) getOrCreate(program device.Handle, hash uint64, create func() (hal.RenderPipeline, error)) (hal.RenderPipeline, error) {
	key := pipelineKey{program: program, hash: hash}

	c.mu.RLock()
	if pl, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return pl, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if pl, ok := c.entries[key]; ok {
		c.hits.Add(1)
		return pl, nil
	}
	pl, err := create()
	if err != nil {
		return nil, err
	}
	c.entries[key] = pl
	c.misses.Add(1)
	return pl, nil
}

// evict removes and returns the pipelines of program.
func (c *pipelineCache) evict(program device.Handle) []hal.RenderPipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []hal.RenderPipeline
	for k, pl := range c.entries {
		if k.program == program {
			out = append(out, pl)
			delete(c.entries, k)
		}
	}
	return out
}

func (c *pipelineCache) evictAll() []hal.RenderPipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]hal.RenderPipeline, 0, len(c.entries))
	for _, pl := range c.entries {
		out = append(out, pl)
	}
	clear(c.entries)
	return out
}

func (c *pipelineCache) stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: len(c.entries)}
}

// pipelineHash hashes everything a render pipeline bakes in besides the
// program.
func (e *encoder) pipelineHash() uint64 {
	buf := e.scratch[:0]
	u32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }
	f32 := func(v float32) { u32(math.Float32bits(v)) }
	flag := func(v bool) {
		if v {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	component := func(c gputypes.BlendComponent) {
		u32(uint32(c.SrcFactor))
		u32(uint32(c.DstFactor))
		u32(uint32(c.Operation))
	}
	face := func(f gputypes.StencilFaceState) {
		u32(uint32(f.Compare))
		u32(uint32(f.FailOp))
		u32(uint32(f.DepthFailOp))
		u32(uint32(f.PassOp))
	}

	flag(e.blend.Enabled)
	component(e.blend.Color)
	component(e.blend.Alpha)
	u32(uint32(e.blend.WriteMask))

	u32(uint32(e.rast.Topology))
	u32(uint32(e.rast.FrontFace))
	u32(uint32(e.rast.CullMode))
	flag(e.rast.UnclippedDepth)
	u32(uint32(e.rast.DepthBias))
	f32(e.rast.DepthBiasSlopeScale)
	f32(e.rast.DepthBiasClamp)

	flag(e.depth.DepthTest)
	flag(e.depth.DepthWrite)
	u32(uint32(e.depth.DepthCompare))
	flag(e.depth.StencilTest)
	face(e.depth.StencilFront)
	face(e.depth.StencilBack)
	u32(e.depth.StencilReadMask)
	u32(e.depth.StencilWriteMask)

	buf = binary.LittleEndian.AppendUint64(buf, e.ms.Mask)
	flag(e.ms.AlphaToCoverage)

	for _, f := range e.target.colors {
		u32(uint32(f))
	}
	u32(uint32(len(e.target.colors)))
	u32(uint32(e.target.depth))
	u32(e.target.samples)

	e.scratch = buf
	h := fnv.New64a()
	_, _ = h.Write(buf)
	return h.Sum64()
}

const maxGroupBindings = 16

// bindGroupKey identifies a bind group by program, group and the handles
// bound to each of its bindings.
type bindGroupKey struct {
	program device.Handle
	group   uint32
	handles [maxGroupBindings]device.Handle
}

func (k *bindGroupKey) uses(h device.Handle) bool {
	if k.program == h {
		return true
	}
	for _, bh := range k.handles {
		if bh == h {
			return true
		}
	}
	return false
}
