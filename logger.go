// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import (
	"log/slog"

	"github.com/gogpu/castor/internal/logging"
)

// SetLogger configures the logger for castor and all its sub-packages.
// By default, castor produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by castor:
//   - [slog.LevelDebug]: per-frame diagnostics (pipeline cache misses, skipped draws)
//   - [slog.LevelInfo]: lifecycle events (device opened, plugin loaded, technique selected)
//   - [slog.LevelWarn]: non-fatal issues (dropped events, failing post effects, abandoned frames)
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	castor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by castor.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
