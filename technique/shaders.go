// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package technique

import (
	"embed"
	"strings"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// Entry points of the fullscreen programs.
const (
	FullscreenVertexEntry = "vs_fullscreen"
	FragmentEntry         = "fs_main"
)

// wgsl concatenates the named shader files.
func wgsl(names ...string) string {
	var b strings.Builder
	for _, name := range names {
		src, err := shaderFS.ReadFile("shaders/" + name + ".wgsl")
		if err != nil {
			panic("technique: missing embedded shader " + name)
		}
		b.Write(src)
		b.WriteByte('\n')
	}
	return b.String()
}

// ForwardSource returns the lit forward program.
func ForwardSource() string { return wgsl("scene", "shading", "forward") }

// GBufferSource returns the deferred geometry program.
func GBufferSource() string { return wgsl("scene", "gbuffer") }

// LightingSource returns the deferred lighting program.
func LightingSource() string { return wgsl("fullscreen", "shading", "lighting") }

// FallbackSource returns the unlit program used when a pipeline cannot be
// created.
func FallbackSource() string { return wgsl("scene", "fallback") }

// GrayscaleSource returns the grayscale post effect.
func GrayscaleSource() string { return wgsl("fullscreen", "grayscale") }

// ToneMappingSource returns the tone mapping operator called name:
// "linear" or "reinhard".
func ToneMappingSource(name string) string { return wgsl("fullscreen", "tonemap", "tonemap_"+name) }
