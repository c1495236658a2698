// Package testutil provides shared test helpers: quiet loggers and a
// scriptable embedder mock.
package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output.
//
// Use this in tests to reduce noise. For components that use log.Logger
// (which is a type alias for *slog.Logger), log.NewNop() returns the same
// thing; prefer whichever package the test already imports.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
