// Package logging provides a minimal logging interface and adapters for meetmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, runner and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - New, building json, text or tint (colored console) handlers from Config
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(&logging.Config{Level: logging.LogLevelInfo, Format: logging.FormatJSON, Output: os.Stdout})
//	eng := engine.New(store, registry, engine.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
