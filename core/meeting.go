package core

import (
	"fmt"
	"sync"
	"time"
)

// MeetingOptions configures NewMeeting.
type MeetingOptions struct {
	// ID overrides the generated identifier.
	ID string
	// MaxRounds overrides the mode ceiling unless the mode fixes its rounds.
	MaxRounds int
	// SummaryModel selects the model used by the summarizer.
	SummaryModel string
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

// Meeting is the aggregate root of one topic-bound, multi-round conversation.
// It is safe for concurrent access; callers that drive turns must still
// serialise per meeting id (see MeetingStore.Acquire) because a turn spans
// several calls.
//
// Contract:
//   - RecordTurn is the only method moving the round/turn cursors
//   - the speaking order of a round is computed once and cached until the
//     round wraps; resumption uses CurrentSpeakerIndex into that order
//   - History returns a defensive copy; entries are never rewritten
//   - an Ended meeting carries exactly one summary entry
type Meeting struct {
	mu sync.RWMutex

	id           string
	topic        string
	mode         Mode
	participants []Participant
	index        map[string]int
	maxRounds    int
	summaryModel string

	currentRound        int
	currentSpeakerIndex int
	roundOrder          []string
	status              Status
	history             []MessageEntry

	createdAt time.Time
	startedAt time.Time
	endedAt   *time.Time

	now func() time.Time
}

// NewMeeting creates a meeting in NotStarted. Participant names must be
// unique. A meeting without participants can be created but never started.
func NewMeeting(topic string, mode Mode, participants []Participant, optFns ...func(o *MeetingOptions)) (*Meeting, error) {
	opts := MeetingOptions{
		Clock: time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if mode == nil {
		return nil, fmt.Errorf("%w: meeting mode is required", ErrConfiguration)
	}
	if opts.ID == "" {
		opts.ID = NewID()
	}

	index := make(map[string]int, len(participants))
	for i, p := range participants {
		if p == nil || p.Name() == "" {
			return nil, fmt.Errorf("%w: participant %d has no name", ErrConfiguration, i)
		}
		if _, dup := index[p.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %q", ErrConfiguration, p.Name())
		}
		index[p.Name()] = i
	}

	maxRounds := mode.MaxRounds()
	if !mode.FixedRounds() && opts.MaxRounds > 0 {
		maxRounds = opts.MaxRounds
	}
	if maxRounds <= 0 {
		return nil, fmt.Errorf("%w: max rounds must be positive", ErrConfiguration)
	}

	ps := make([]Participant, len(participants))
	copy(ps, participants)

	return &Meeting{
		id:           opts.ID,
		topic:        topic,
		mode:         mode,
		participants: ps,
		index:        index,
		maxRounds:    maxRounds,
		summaryModel: opts.SummaryModel,
		status:       StatusNotStarted,
		history:      []MessageEntry{},
		createdAt:    opts.Clock(),
		now:          opts.Clock,
	}, nil
}

// ID returns the meeting identifier.
func (m *Meeting) ID() string { return m.id }

// Topic returns the meeting topic.
func (m *Meeting) Topic() string { return m.topic }

// Mode returns the bound mode.
func (m *Meeting) Mode() Mode { return m.mode }

// MaxRounds returns the resolved round ceiling.
func (m *Meeting) MaxRounds() int { return m.maxRounds }

// SummaryModel returns the model selector used for the summary.
func (m *Meeting) SummaryModel() string { return m.summaryModel }

// CreatedAt returns the construction time.
func (m *Meeting) CreatedAt() time.Time { return m.createdAt }

// Participants returns the roster in insertion order.
func (m *Meeting) Participants() []Participant {
	res := make([]Participant, len(m.participants))
	copy(res, m.participants)
	return res
}

// Participant looks up a participant by name.
func (m *Meeting) Participant(name string) (Participant, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.participants[i], true
}

// Status returns the current lifecycle state.
func (m *Meeting) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CurrentRound returns the round cursor (1-based once started).
func (m *Meeting) CurrentRound() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentRound
}

// CurrentSpeakerIndex returns the position in the current round's order.
func (m *Meeting) CurrentSpeakerIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentSpeakerIndex
}

// StartedAt returns the start time (zero before Start).
func (m *Meeting) StartedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startedAt
}

// EndedAt returns the end time or nil.
func (m *Meeting) EndedAt() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.endedAt == nil {
		return nil
	}
	t := *m.endedAt
	return &t
}

// History returns a defensive copy of the message log.
func (m *Meeting) History() []MessageEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.historyLocked()
}

func (m *Meeting) historyLocked() []MessageEntry {
	res := make([]MessageEntry, len(m.history))
	copy(res, m.history)
	return res
}

// Summary returns the finalizing summary once the meeting has ended.
func (m *Meeting) Summary() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaryLocked()
}

func (m *Meeting) summaryLocked() (string, bool) {
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].IsSummary() {
			return m.history[i].Content, true
		}
	}
	return "", false
}

// Start moves the meeting to InProgress at round 1, index 0.
func (m *Meeting) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusNotStarted {
		return fmt.Errorf("%w: cannot start meeting in status %s", ErrInvalidState, m.status)
	}
	if len(m.participants) == 0 {
		return fmt.Errorf("%w: meeting has no participants", ErrInvalidState)
	}
	m.status = StatusInProgress
	m.currentRound = 1
	m.currentSpeakerIndex = 0
	m.roundOrder = nil
	m.startedAt = m.now()
	return nil
}

// SpeakingOrder returns the order of the current round, asking the mode only
// the first time the round is reached.
func (m *Meeting) SpeakingOrder() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, err := m.speakingOrderLocked()
	if err != nil {
		return nil, err
	}
	res := make([]string, len(order))
	copy(res, order)
	return res, nil
}

func (m *Meeting) speakingOrderLocked() ([]string, error) {
	if !m.status.Active() {
		return nil, fmt.Errorf("%w: no speaking order in status %s", ErrInvalidState, m.status)
	}
	if m.roundOrder != nil {
		return m.roundOrder, nil
	}
	infos := m.infosLocked()
	names := Names(infos)
	order := m.mode.SpeakingOrder(infos, m.currentRound)
	if !IsPermutation(names, order) {
		return nil, fmt.Errorf("%w: mode %s returned %v for roster %v", ErrConfiguration, m.mode.Name(), order, names)
	}
	m.roundOrder = append([]string(nil), order...)
	return m.roundOrder, nil
}

func (m *Meeting) infosLocked() []ParticipantInfo {
	infos := make([]ParticipantInfo, len(m.participants))
	for i, p := range m.participants {
		infos[i] = InfoOf(p)
	}
	return infos
}

// CurrentSpeaker returns the participant whose turn is next.
func (m *Meeting) CurrentSpeaker() (Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, err := m.currentSpeakerLocked()
	if err != nil {
		return nil, err
	}
	return m.participants[m.index[name]], nil
}

func (m *Meeting) currentSpeakerLocked() (string, error) {
	order, err := m.speakingOrderLocked()
	if err != nil {
		return "", err
	}
	return order[m.currentSpeakerIndex], nil
}

// RecordTurn appends the speaker's turn and advances the cursors. The speaker
// must be the current one. A recorded turn always returns the meeting to
// InProgress.
func (m *Meeting) RecordTurn(speaker, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordTurnLocked(speaker, content)
}

func (m *Meeting) recordTurnLocked(speaker, content string) error {
	expected, err := m.currentSpeakerLocked()
	if err != nil {
		return err
	}
	if speaker != expected {
		return fmt.Errorf("%w: %q spoke out of turn, expected %q", ErrInvalidState, speaker, expected)
	}

	m.history = append(m.history, MessageEntry{
		Speaker:   speaker,
		Content:   content,
		Round:     m.currentRound,
		Kind:      EntryKindTurn,
		Timestamp: m.now(),
	})

	m.currentSpeakerIndex = (m.currentSpeakerIndex + 1) % len(m.participants)
	if m.currentSpeakerIndex == 0 {
		m.currentRound++
		m.roundOrder = nil
	}
	m.status = StatusInProgress
	return nil
}

// ShouldEnd reports whether the meeting must be finalized. The round ceiling
// is evaluated first; the mode predicate is only consulted at a round
// boundary.
func (m *Meeting) ShouldEnd() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch m.status {
	case StatusEnded:
		return true
	case StatusNotStarted:
		return false
	}
	if m.currentRound > m.maxRounds {
		return true
	}
	if m.currentSpeakerIndex != 0 {
		return false
	}
	return m.mode.ShouldEnd(m.currentRound-1, m.historyLocked())
}

// Finish appends the summary entry and ends the meeting. Calling it on an
// ended meeting returns the stored summary without appending.
func (m *Meeting) Finish(summary string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case StatusEnded:
		s, _ := m.summaryLocked()
		return s, nil
	case StatusNotStarted:
		return "", fmt.Errorf("%w: meeting was never started", ErrInvalidState)
	}

	now := m.now()
	m.history = append(m.history, MessageEntry{
		Speaker:   SystemSpeaker,
		Content:   summary,
		Round:     m.currentRound,
		Kind:      EntryKindSummary,
		Timestamp: now,
	})
	m.status = StatusEnded
	m.endedAt = &now
	m.roundOrder = nil

	for _, p := range m.participants {
		if h, ok := p.(HumanParticipant); ok {
			h.ClearWait()
		}
	}
	return summary, nil
}

// MarkWaiting suspends the meeting on the named human, who must be the
// current speaker. The cursors are left untouched.
func (m *Meeting) MarkWaiting(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expected, err := m.currentSpeakerLocked()
	if err != nil {
		return err
	}
	if expected != name {
		return fmt.Errorf("%w: %q is not the current speaker", ErrInvalidState, name)
	}
	h, ok := m.participants[m.index[name]].(HumanParticipant)
	if !ok {
		return fmt.Errorf("%w: %q is not a human participant", ErrUnknownParticipant, name)
	}
	h.BeginWait(m.now())
	m.status = StatusWaitingForHuman
	return nil
}

// SubmitHumanInput hands a message to the named human. When that human is the
// current speaker of a running meeting the turn is recorded at once and
// recorded is true; otherwise the message is buffered for the participant's
// next turn. Submitting while not waiting is accepted as an interrupt.
func (m *Meeting) SubmitHumanInput(name, message string) (recorded bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownParticipant, name)
	}
	h, ok := m.participants[i].(HumanParticipant)
	if !ok {
		return false, fmt.Errorf("%w: %q is not a human participant", ErrUnknownParticipant, name)
	}
	if m.status == StatusEnded {
		return false, fmt.Errorf("%w: meeting has ended", ErrInvalidState)
	}

	h.ClearWait()

	if m.status.Active() {
		current, err := m.currentSpeakerLocked()
		if err != nil {
			return false, err
		}
		if current == name {
			return true, m.recordTurnLocked(name, message)
		}
	}

	h.Deliver(message)
	return false, nil
}

// HumanTimeouts lists waiting humans whose deadline has passed. The meeting
// never cancels a wait on its own; the caller decides the policy.
func (m *Meeting) HumanTimeouts(now time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []string
	for _, p := range m.participants {
		if h, ok := p.(HumanParticipant); ok && h.HasInputTimeout(now) {
			res = append(res, p.Name())
		}
	}
	return res
}

// PromptInputFor assembles the mode prompt input for a participant at the
// current round.
func (m *Meeting) PromptInputFor(p Participant) PromptInput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return PromptInput{
		Name:         p.Name(),
		Role:         p.Role(),
		Profile:      p.Profile(),
		Topic:        m.topic,
		Round:        m.currentRound,
		MaxRounds:    m.maxRounds,
		Participants: m.infosLocked(),
	}
}

// MeetingSnapshot is an immutable view of a meeting for transports.
type MeetingSnapshot struct {
	ID                  string                      `json:"id"`
	Topic               string                      `json:"topic"`
	Mode                string                      `json:"mode"`
	Participants        []ParticipantInfo           `json:"participants"`
	MaxRounds           int                         `json:"max_rounds"`
	CurrentRound        int                         `json:"current_round"`
	CurrentSpeakerIndex int                         `json:"current_speaker_index"`
	CurrentSpeaker      string                      `json:"current_speaker,omitempty"`
	Status              Status                      `json:"status"`
	History             []MessageEntry              `json:"history"`
	Summary             string                      `json:"summary,omitempty"`
	Pending             map[string]PendingHumanTurn `json:"pending,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
	StartedAt           *time.Time                  `json:"started_at,omitempty"`
	EndedAt             *time.Time                  `json:"ended_at,omitempty"`
}

// Snapshot captures the meeting state without advancing anything. The
// current speaker is reported only when the round order is already cached.
func (m *Meeting) Snapshot() MeetingSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MeetingSnapshot{
		ID:                  m.id,
		Topic:               m.topic,
		Mode:                m.mode.Name(),
		MaxRounds:           m.maxRounds,
		CurrentRound:        m.currentRound,
		CurrentSpeakerIndex: m.currentSpeakerIndex,
		Status:              m.status,
		History:             m.historyLocked(),
		CreatedAt:           m.createdAt,
	}
	for _, p := range m.participants {
		s.Participants = append(s.Participants, InfoOf(p))
		if h, ok := p.(HumanParticipant); ok {
			if s.Pending == nil {
				s.Pending = map[string]PendingHumanTurn{}
			}
			s.Pending[p.Name()] = h.Pending()
		}
	}
	if m.roundOrder != nil && m.status.Active() {
		s.CurrentSpeaker = m.roundOrder[m.currentSpeakerIndex]
	}
	if !m.startedAt.IsZero() {
		t := m.startedAt
		s.StartedAt = &t
	}
	if m.endedAt != nil {
		t := *m.endedAt
		s.EndedAt = &t
	}
	s.Summary, _ = m.summaryLocked()
	return s
}

// Transcript converts an ended meeting into its archived form.
func (m *Meeting) Transcript() Transcript {
	snap := m.Snapshot()
	t := Transcript{
		ID:        snap.ID,
		Topic:     snap.Topic,
		Mode:      snap.Mode,
		History:   snap.History,
		Summary:   snap.Summary,
		CreatedAt: snap.CreatedAt,
	}
	for _, p := range snap.Participants {
		t.Participants = append(t.Participants, p.Name)
	}
	if snap.StartedAt != nil {
		t.StartedAt = *snap.StartedAt
	}
	if snap.EndedAt != nil {
		t.EndedAt = *snap.EndedAt
	}
	return t
}
