package testutil

import (
	"strings"
	"time"

	"github.com/hupe1980/meetmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder("m1").Content("alice", "hello").Round(2).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	ev core.Event
}

// NewEventBuilder creates a builder for a content event of meetingID.
func NewEventBuilder(meetingID string) *EventBuilder {
	return &EventBuilder{ev: core.Event{
		ID:        "ev-test",
		MeetingID: meetingID,
		Type:      core.EventContent,
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}}
}

// ID overrides the event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.ev.ID = id; return b }

// Type sets the event type (chainable).
func (b *EventBuilder) Type(t core.EventType) *EventBuilder { b.ev.Type = t; return b }

// Round sets the round (chainable).
func (b *EventBuilder) Round(r int) *EventBuilder { b.ev.Round = r; return b }

// At sets the timestamp (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.ev.Timestamp = ts; return b }

// Content makes the event a content fragment of speaker (chainable).
func (b *EventBuilder) Content(speaker, text string) *EventBuilder {
	b.ev.Type = core.EventContent
	b.ev.Speaker = speaker
	b.ev.Text = text
	return b
}

// Reasoning makes the event a reasoning fragment of speaker (chainable).
func (b *EventBuilder) Reasoning(speaker, text string) *EventBuilder {
	b.ev.Type = core.EventReasoning
	b.ev.Speaker = speaker
	b.ev.Text = text
	return b
}

// Waiting makes the event the human-wait terminal event (chainable).
func (b *EventBuilder) Waiting(human string) *EventBuilder {
	b.ev.Type = core.EventWaitingHuman
	b.ev.Speaker = human
	b.ev.FinishReason = core.FinishReasonWaitingHuman
	return b
}

// End makes the event the meeting-end terminal event (chainable).
func (b *EventBuilder) End() *EventBuilder {
	b.ev.Type = core.EventMeetingEnd
	b.ev.FinishReason = core.FinishReasonStop
	return b
}

// Build returns the event.
func (b *EventBuilder) Build() core.Event { return b.ev }

// Narration concatenates the text of non-reasoning events, i.e. what a chat
// client renders.
func Narration(events []core.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if !ev.IsReasoning() {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

// Types lists the event types in order.
func Types(events []core.Event) []core.EventType {
	res := make([]core.EventType, len(events))
	for i, ev := range events {
		res[i] = ev.Type
	}
	return res
}
