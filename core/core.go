package core

import "github.com/google/uuid"

// Status enumerates the lifecycle states of a Meeting.
type Status string

const (
	// StatusNotStarted is the initial state; no turn has been taken.
	StatusNotStarted Status = "not_started"
	// StatusInProgress means the driver may produce the next turn.
	StatusInProgress Status = "in_progress"
	// StatusWaitingForHuman means the current speaker is a human whose input
	// has not arrived yet.
	StatusWaitingForHuman Status = "waiting_human"
	// StatusEnded is terminal.
	StatusEnded Status = "ended"
)

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// Active reports whether turns may still be recorded.
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusWaitingForHuman
}

// SystemSpeaker is the speaker name used for the finalizing summary entry.
const SystemSpeaker = "system"

// NewID generates a new unique identifier for meetings and events.
func NewID() string { return uuid.NewString() }
