// Package runner implements the stream driver of meetmesh.
//
// A Runner advances one meeting turn by turn: it starts the meeting, asks the
// mode for each round's speaking order, streams every participant's
// fragments as core.Events and records the aggregated answer. When a human
// participant has no input yet the meeting is suspended and the drive ends
// with a waiting_human event; driving the same meeting again resumes at the
// suspended speaker. Once the mode or the round ceiling ends the meeting the
// Runner streams the summary and emits the meeting_end event.
//
// Drive is synchronous and hands events to a callback; Run wraps it in the
// channel pair used by the engine and transports.
package runner
