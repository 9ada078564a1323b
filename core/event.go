package core

import (
	"time"
)

// EventType classifies events emitted while a meeting is driven.
type EventType string

const (
	EventMeetingStart EventType = "meeting_start"
	EventRoundStart   EventType = "round_start"
	EventSpeakerStart EventType = "speaker_start"
	EventContent      EventType = "content"
	EventReasoning    EventType = "reasoning"
	EventSpeakerEnd   EventType = "speaker_end"
	EventWaitingHuman EventType = "waiting_human"
	EventSummaryStart EventType = "summary_start"
	EventSummary      EventType = "summary"
	EventMeetingEnd   EventType = "meeting_end"
)

// Finish reasons carried by terminal events.
const (
	FinishReasonWaitingHuman = "waiting_human"
	FinishReasonStop         = "stop"
)

// Event is the unit of narration produced by the driver. Structural events
// carry their rendered narration in Text so transports can forward it as is.
// After emission it should be treated as immutable.
type Event struct {
	ID           string    `json:"id"`
	MeetingID    string    `json:"meeting_id"`
	Type         EventType `json:"type"`
	Round        int       `json:"round,omitempty"`
	Speaker      string    `json:"speaker,omitempty"`
	Text         string    `json:"text,omitempty"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEvent creates an event bound to a meeting.
func NewEvent(meetingID string, typ EventType, text string) Event {
	return Event{
		ID:        NewID(),
		MeetingID: meetingID,
		Type:      typ,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// IsTerminal reports whether the event closes a stream (wait or end).
func (e Event) IsTerminal() bool { return e.FinishReason != "" }

// IsReasoning reports whether the event belongs to the reasoning channel.
func (e Event) IsReasoning() bool { return e.Type == EventReasoning }

// UnixSeconds returns the timestamp as whole seconds since the Unix epoch.
func (e Event) UnixSeconds() int64 { return e.Timestamp.Unix() }
