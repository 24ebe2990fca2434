// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device is the capability layer between the engine and a native
// graphics API.
//
// A [Device] wraps one [Backend] and owns everything the backends have in
// common: the handle table, descriptor validation against the active feature
// level, the active-state cache and slot occupancy tracking. Backends only
// issue native calls.
//
// Fixed-function state is expressed as four comparable values ([BlendState],
// [RasteriserState], [DepthStencilState], [MultisampleState]). Binding a state
// equal to the one already current on its stage never reaches the backend:
//
//	d := device.New(backend)
//	d.BindState(device.AlphaBlendState()) // backend call
//	d.BindState(device.AlphaBlendState()) // suppressed
//
// Failures reported by the backend, including requests outside the feature
// level, are returned as *[BackendError]. Destroying a resource that is still
// bound panics with [ErrResourceBound].
package device
