// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !(cgo && (linux || darwin || freebsd)) && !(!cgo && (amd64 || arm64) && (linux || darwin || freebsd || windows))

package plugin

// DefaultLoader returns nil: this platform cannot load plugin files. Static
// plugins still work.
func DefaultLoader() Loader { return nil }
