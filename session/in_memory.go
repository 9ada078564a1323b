package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/meetmesh/core"
)

// entry pairs a meeting with its one-slot semaphore.
type entry struct {
	meeting *core.Meeting
	lock    chan struct{}
}

// InMemoryStore is a volatile MeetingStore implementation keeping live
// meetings in a process local map. Lookups, inserts and eviction are safe for
// concurrent access; Acquire serialises drivers of the same meeting while
// different meetings proceed in parallel.
type InMemoryStore struct {
	mu       sync.RWMutex
	meetings map[string]*entry
}

// NewInMemoryStore constructs an empty in‑memory meeting store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{meetings: make(map[string]*entry)}
}

// Insert registers a meeting. Ids must be unique.
func (s *InMemoryStore) Insert(m *core.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID()]; ok {
		return fmt.Errorf("%w: meeting %q already registered", core.ErrConfiguration, m.ID())
	}
	s.meetings[m.ID()] = &entry{meeting: m, lock: make(chan struct{}, 1)}
	return nil
}

// Get returns the registered meeting.
func (s *InMemoryStore) Get(id string) (*core.Meeting, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return e.meeting, nil
}

// Delete unregisters a meeting. Holders of its lock keep their reference.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
	}
	delete(s.meetings, id)
	return nil
}

// List returns all meetings ordered by creation time.
func (s *InMemoryStore) List() []*core.Meeting {
	s.mu.RLock()
	res := make([]*core.Meeting, 0, len(s.meetings))
	for _, e := range s.meetings {
		res = append(res, e.meeting)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt().Equal(res[j].CreatedAt()) {
			return res[i].ID() < res[j].ID()
		}
		return res[i].CreatedAt().Before(res[j].CreatedAt())
	})
	return res
}

// Acquire blocks until the caller holds the meeting or ctx is done. The
// returned release func is idempotent.
func (s *InMemoryStore) Acquire(ctx context.Context, id string) (func(), error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case e.lock <- struct{}{}:
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-e.lock })
	}, nil
}

// EvictEnded removes meetings that ended more than retention ago. Meetings
// currently held through Acquire are skipped.
func (s *InMemoryStore) EvictEnded(now time.Time, retention time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, e := range s.meetings {
		ended := e.meeting.EndedAt()
		if ended == nil || now.Sub(*ended) < retention {
			continue
		}
		select {
		case e.lock <- struct{}{}:
			delete(s.meetings, id)
			<-e.lock
			evicted = append(evicted, id)
		default:
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Len returns the number of registered meetings.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meetings)
}

func (s *InMemoryStore) get(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.meetings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
	}
	return e, nil
}
