package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/meetmesh/core"
)

// InMemoryStore is a naive process‑local Archive. It offers:
//  1. Save / Load / Delete of transcripts keyed by meeting id
//  2. Substring Search over topic and summary, newest first
//
// Concurrency: protected by RWMutex. Suitable for tests, demos and the
// terminal runner; use the redis backend when transcripts must outlive the
// process.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]core.Transcript
}

// NewInMemoryStore creates an empty archive.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{transcripts: make(map[string]core.Transcript)}
}

// Save stores a copy of the transcript, replacing an earlier one with the
// same id.
func (s *InMemoryStore) Save(_ context.Context, t core.Transcript) error {
	if t.ID == "" {
		return fmt.Errorf("%w: transcript without id", core.ErrConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[t.ID] = Clone(t)
	return nil
}

// Load returns a copy of the stored transcript.
func (s *InMemoryStore) Load(_ context.Context, id string) (core.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcripts[id]
	if !ok {
		return core.Transcript{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Clone(t), nil
}

// Search performs a simple substring match over stored transcripts. Results
// are ordered by end time, newest first; limit <= 0 returns every hit.
func (s *InMemoryStore) Search(_ context.Context, query string, limit int) ([]core.Transcript, error) {
	s.mu.RLock()
	hits := make([]core.Transcript, 0, len(s.transcripts))
	for _, t := range s.transcripts {
		if Matches(t, query) {
			hits = append(hits, Clone(t))
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes a transcript by id.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.transcripts, id)
	return nil
}

// Matches reports whether query occurs in the topic, the summary or a
// participant name. Matching ignores case; an empty query matches all.
func Matches(t core.Transcript, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Topic), q) || strings.Contains(strings.ToLower(t.Summary), q) {
		return true
	}
	for _, p := range t.Participants {
		if strings.Contains(strings.ToLower(p), q) {
			return true
		}
	}
	return false
}

// SortNewestFirst orders transcripts by end time descending, then by id.
func SortNewestFirst(ts []core.Transcript) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].EndedAt.Equal(ts[j].EndedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].EndedAt.After(ts[j].EndedAt)
	})
}

// Clone deep-copies the slices of a transcript.
func Clone(t core.Transcript) core.Transcript {
	t.Participants = append([]string(nil), t.Participants...)
	t.History = append([]core.MessageEntry(nil), t.History...)
	return t
}
