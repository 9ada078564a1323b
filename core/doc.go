// Package core provides the foundational domain types and interfaces used by
// meetmesh. It defines the core abstractions for:
//
//   - Meetings (the turn-based state machine owning rounds, turns and history)
//   - Participants (model-backed or human speakers producing turn fragments)
//   - Modes (speaking order, prompts and termination policy per meeting style)
//   - Events (structural narration and token fragments emitted while driving)
//   - Pluggable stores for live meetings and archived transcripts
//
// Orchestration, concrete participants and transports live in outer packages;
// this package only exposes small interfaces plus the Meeting aggregate so that
// every cursor movement is owned by one type.
package core
