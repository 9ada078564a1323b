package core

import "time"

// EntryKind distinguishes participant turns from the finalizing summary.
type EntryKind string

const (
	// EntryKindTurn is a single participant contribution.
	EntryKindTurn EntryKind = "turn"
	// EntryKindSummary is the system entry appended by Finish.
	EntryKindSummary EntryKind = "summary"
)

// MessageEntry is one immutable record of the meeting history.
type MessageEntry struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Round     int       `json:"round"`
	Kind      EntryKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// IsSummary reports whether the entry is the finalizing summary.
func (m MessageEntry) IsSummary() bool { return m.Kind == EntryKindSummary }

// Turns filters history down to participant turns.
func Turns(history []MessageEntry) []MessageEntry {
	res := make([]MessageEntry, 0, len(history))
	for _, e := range history {
		if e.Kind == EntryKindTurn {
			res = append(res, e)
		}
	}
	return res
}
