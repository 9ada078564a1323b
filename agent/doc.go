// Package agent contains the meeting participants of meetmesh.
//
//  1. ModelAgent – a model-backed participant that streams its turn
//  2. HumanAgent – a mailbox participant whose turns come from a person
//
// Design principles:
//   - A participant never fails a turn: model errors become turn content
//   - Human turns do not block the driver; RespondStream emits the
//     core.HumanWaitSentinel and the caller suspends the meeting
//   - Identity (name, role, profile) lives in the embedded BaseParticipant
//
// Persona system prompts are Instructions: static text with text/template
// placeholders, or a Provider computing the text per turn.
package agent
