// Package session houses concrete implementations of core.MeetingStore, the
// process-wide registry of live meetings. The interface lives in the core
// package so the engine never depends on a concrete storage.
//
// Meetings hold live participants (model clients, human mailboxes) and are
// therefore kept in process; finished transcripts are persisted separately
// through the archive package.
package session
