// Package archive contains core.Archive implementations for finished meeting
// transcripts. The interface and the Transcript type reside in the core
// package; select an implementation (the in‑memory store below or the redis
// sub-package) at wiring time.
package archive

import "errors"

// ErrNotFound is returned when no transcript carries the requested id.
var ErrNotFound = errors.New("transcript not found")
