package core

import (
	"context"
	"time"
)

// MeetingStore is the process-wide registry of live meetings. Lookup, insert
// and eviction are safe for concurrent use; mutation of a single meeting must
// happen between Acquire and the returned release func.
type MeetingStore interface {
	Insert(m *Meeting) error
	Get(id string) (*Meeting, error)
	Delete(id string) error
	List() []*Meeting

	// Acquire blocks until the caller holds the meeting exclusively or ctx
	// is done.
	Acquire(ctx context.Context, id string) (release func(), err error)

	// EvictEnded removes meetings that ended more than retention ago and
	// returns their ids.
	EvictEnded(now time.Time, retention time.Duration) []string
}

// Transcript is the archived form of an ended meeting.
type Transcript struct {
	ID           string         `json:"id"`
	Topic        string         `json:"topic"`
	Mode         string         `json:"mode"`
	Participants []string       `json:"participants"`
	History      []MessageEntry `json:"history"`
	Summary      string         `json:"summary"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at"`
}

// Archive persists finished transcripts for later lookup and search.
type Archive interface {
	Save(ctx context.Context, t Transcript) error
	Load(ctx context.Context, id string) (Transcript, error)
	Search(ctx context.Context, query string, limit int) ([]Transcript, error)
	Delete(ctx context.Context, id string) error
}

// SummaryRequest is the input of a Summarizer.
type SummaryRequest struct {
	MeetingID      string
	Topic          string
	History        []MessageEntry
	PromptTemplate string
	ModelSelector  string
}

// Summarizer produces the end-of-meeting summary as a fragment stream. It
// never fails; on error it substitutes a deterministic summary.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) <-chan string
}
