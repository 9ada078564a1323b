// Package engine is the service layer of meetmesh.
//
// The Engine turns MeetingSpecs into live meetings (resolving the mode,
// building model and human participants, normalising names), streams them
// through the runner under the per-meeting lock of the registry, and accepts
// human input that either completes the pending turn or is buffered for the
// participant's next turn. Ended meetings are written to the archive and
// evicted from the registry once the retention period has passed.
//
// Transports (HTTP, CLI) only talk to the Engine.
package engine
