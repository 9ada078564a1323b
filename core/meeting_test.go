package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMode struct {
	rounds  int
	fixed   bool
	reverse bool
	endAt   int
	broken  bool
}

func (s stubMode) Name() string        { return "stub" }
func (s stubMode) Description() string { return "stub mode" }
func (s stubMode) MaxRounds() int      { return s.rounds }
func (s stubMode) FixedRounds() bool   { return s.fixed }
func (s stubMode) PromptFor(in PromptInput) string {
	return in.Name + ":" + in.Topic
}
func (s stubMode) SpeakingOrder(ps []ParticipantInfo, round int) []string {
	names := Names(ps)
	if s.broken {
		return names[:len(names)-1]
	}
	res := append([]string(nil), names...)
	if s.reverse && round%2 == 0 {
		for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
			res[i], res[j] = res[j], res[i]
		}
	}
	return res
}
func (s stubMode) ShouldEnd(done int, _ []MessageEntry) bool {
	return s.endAt > 0 && done >= s.endAt
}
func (s stubMode) SummaryPromptTemplate() string { return "{topic}\n{history}" }

type stubParticipant struct{ name string }

func (p stubParticipant) Name() string     { return p.name }
func (p stubParticipant) Role() string     { return "tester" }
func (p stubParticipant) Profile() Profile { return Profile{} }
func (p stubParticipant) IsHuman() bool    { return false }
func (p stubParticipant) Respond(context.Context, TurnRequest) (string, error) {
	return p.name, nil
}
func (p stubParticipant) RespondStream(context.Context, TurnRequest) <-chan Fragment {
	ch := make(chan Fragment, 1)
	ch <- AnswerFragment(p.name)
	close(ch)
	return ch
}

type stubHuman struct {
	stubParticipant
	mu      sync.Mutex
	pending PendingHumanTurn
}

func (h *stubHuman) IsHuman() bool { return true }
func (h *stubHuman) Deliver(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending.PendingMessage = &msg
}
func (h *stubHuman) BeginWait(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending.Waiting = true
	h.pending.WaitStartedAt = &now
}
func (h *stubHuman) ClearWait() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending.Waiting = false
	h.pending.WaitStartedAt = nil
}
func (h *stubHuman) Pending() PendingHumanTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}
func (h *stubHuman) HasInputTimeout(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending.Waiting && now.Sub(*h.pending.WaitStartedAt) > time.Minute
}

func participants(names ...string) []Participant {
	res := make([]Participant, len(names))
	for i, n := range names {
		res[i] = stubParticipant{name: n}
	}
	return res
}

func newTestMeeting(t *testing.T, mode Mode, ps []Participant) *Meeting {
	t.Helper()
	m, err := NewMeeting("topic", mode, ps)
	require.NoError(t, err)
	return m
}

func TestNewMeeting_Validation(t *testing.T) {
	_, err := NewMeeting("t", nil, participants("a"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewMeeting("t", stubMode{rounds: 3}, participants("a", "a"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewMeeting("t", stubMode{rounds: 0}, participants("a"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewMeeting_MaxRoundsResolution(t *testing.T) {
	m, err := NewMeeting("t", stubMode{rounds: 3}, participants("a"), func(o *MeetingOptions) { o.MaxRounds = 5 })
	require.NoError(t, err)
	assert.Equal(t, 5, m.MaxRounds())

	m, err = NewMeeting("t", stubMode{rounds: 6, fixed: true}, participants("a"), func(o *MeetingOptions) { o.MaxRounds = 2 })
	require.NoError(t, err)
	assert.Equal(t, 6, m.MaxRounds())
}

func TestMeeting_Start(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 3}, participants("a", "b"))
	require.NoError(t, m.Start())
	assert.Equal(t, StatusInProgress, m.Status())
	assert.Equal(t, 1, m.CurrentRound())
	assert.Equal(t, 0, m.CurrentSpeakerIndex())
	assert.False(t, m.StartedAt().IsZero())

	assert.ErrorIs(t, m.Start(), ErrInvalidState)
}

func TestMeeting_StartWithoutParticipants(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 3}, nil)
	assert.ErrorIs(t, m.Start(), ErrInvalidState)
	assert.Equal(t, StatusNotStarted, m.Status())
}

func TestMeeting_RecordTurnAdvancesOnlyOnWrap(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 3}, participants("a", "b", "c"))
	require.NoError(t, m.Start())

	for i, name := range []string{"a", "b"} {
		require.NoError(t, m.RecordTurn(name, "x"))
		assert.Equal(t, 1, m.CurrentRound())
		assert.Equal(t, i+1, m.CurrentSpeakerIndex())
	}
	require.NoError(t, m.RecordTurn("c", "x"))
	assert.Equal(t, 2, m.CurrentRound())
	assert.Equal(t, 0, m.CurrentSpeakerIndex())

	h := m.History()
	require.Len(t, h, 3)
	for _, e := range h {
		assert.Equal(t, 1, e.Round)
		assert.Equal(t, EntryKindTurn, e.Kind)
	}
}

func TestMeeting_RecordTurnRejectsWrongSpeaker(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 3}, participants("a", "b"))
	assert.ErrorIs(t, m.RecordTurn("a", "x"), ErrInvalidState)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.RecordTurn("b", "x"), ErrInvalidState)
	assert.Empty(t, m.History())
}

func TestMeeting_SpeakingOrderCachedPerRound(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 3, reverse: true}, participants("a", "b", "c"))
	require.NoError(t, m.Start())

	order, err := m.SpeakingOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)

	for _, n := range order {
		require.NoError(t, m.RecordTurn(n, "x"))
	}
	order, err = m.SpeakingOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, order)

	require.NoError(t, m.RecordTurn("c", "x"))
	cur, err := m.CurrentSpeaker()
	require.NoError(t, err)
	assert.Equal(t, "b", cur.Name())
}

func TestMeeting_SpeakingOrderRejectsNonPermutation(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 3, broken: true}, participants("a", "b"))
	require.NoError(t, m.Start())
	_, err := m.SpeakingOrder()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMeeting_ShouldEndCeilingFirst(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 2}, participants("a", "b"))
	assert.False(t, m.ShouldEnd())
	require.NoError(t, m.Start())

	for r := 0; r < 2; r++ {
		assert.False(t, m.ShouldEnd())
		require.NoError(t, m.RecordTurn("a", "x"))
		assert.False(t, m.ShouldEnd())
		require.NoError(t, m.RecordTurn("b", "x"))
	}
	assert.True(t, m.ShouldEnd())
}

func TestMeeting_ShouldEndModePredicateAtBoundary(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 5, endAt: 1}, participants("a", "b"))
	require.NoError(t, m.Start())
	assert.False(t, m.ShouldEnd())
	require.NoError(t, m.RecordTurn("a", "x"))
	assert.False(t, m.ShouldEnd())
	require.NoError(t, m.RecordTurn("b", "x"))
	assert.True(t, m.ShouldEnd())
}

func TestMeeting_FinishIdempotent(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 1}, participants("a"))
	_, err := m.Finish("early")
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, m.Start())
	require.NoError(t, m.RecordTurn("a", "x"))

	s, err := m.Finish("done")
	require.NoError(t, err)
	assert.Equal(t, "done", s)
	assert.Equal(t, StatusEnded, m.Status())
	assert.NotNil(t, m.EndedAt())

	s, err = m.Finish("again")
	require.NoError(t, err)
	assert.Equal(t, "done", s)

	h := m.History()
	require.Len(t, h, 2)
	assert.True(t, h[1].IsSummary())
	assert.Equal(t, SystemSpeaker, h[1].Speaker)

	assert.ErrorIs(t, m.RecordTurn("a", "late"), ErrInvalidState)
}

func TestMeeting_SubmitHumanInputCurrentSpeaker(t *testing.T) {
	human := &stubHuman{stubParticipant: stubParticipant{name: "h"}}
	ps := []Participant{stubParticipant{name: "a"}, human, stubParticipant{name: "b"}}
	m := newTestMeeting(t, stubMode{rounds: 2}, ps)
	require.NoError(t, m.Start())
	require.NoError(t, m.RecordTurn("a", "x"))

	require.NoError(t, m.MarkWaiting("h"))
	assert.Equal(t, StatusWaitingForHuman, m.Status())
	assert.Equal(t, 1, m.CurrentSpeakerIndex())
	assert.True(t, human.Pending().Waiting)

	recorded, err := m.SubmitHumanInput("h", "my view")
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, StatusInProgress, m.Status())
	assert.Equal(t, 2, m.CurrentSpeakerIndex())
	assert.False(t, human.Pending().Waiting)
	assert.Nil(t, human.Pending().PendingMessage)

	cur, err := m.CurrentSpeaker()
	require.NoError(t, err)
	assert.Equal(t, "b", cur.Name())
}

func TestMeeting_SubmitHumanInputBuffersInterrupt(t *testing.T) {
	human := &stubHuman{stubParticipant: stubParticipant{name: "h"}}
	m := newTestMeeting(t, stubMode{rounds: 2}, []Participant{stubParticipant{name: "a"}, human})
	require.NoError(t, m.Start())

	recorded, err := m.SubmitHumanInput("h", "early")
	require.NoError(t, err)
	assert.False(t, recorded)
	require.NotNil(t, human.Pending().PendingMessage)
	assert.Equal(t, "early", *human.Pending().PendingMessage)
	assert.Equal(t, 0, m.CurrentSpeakerIndex())
}

func TestMeeting_SubmitHumanInputErrors(t *testing.T) {
	human := &stubHuman{stubParticipant: stubParticipant{name: "h"}}
	m := newTestMeeting(t, stubMode{rounds: 1}, []Participant{stubParticipant{name: "a"}, human})

	_, err := m.SubmitHumanInput("nobody", "x")
	assert.ErrorIs(t, err, ErrUnknownParticipant)
	_, err = m.SubmitHumanInput("a", "x")
	assert.ErrorIs(t, err, ErrUnknownParticipant)

	require.NoError(t, m.Start())
	_, err = m.Finish("s")
	require.NoError(t, err)
	_, err = m.SubmitHumanInput("h", "x")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMeeting_MarkWaitingRequiresCurrentHuman(t *testing.T) {
	human := &stubHuman{stubParticipant: stubParticipant{name: "h"}}
	m := newTestMeeting(t, stubMode{rounds: 1}, []Participant{stubParticipant{name: "a"}, human})
	require.NoError(t, m.Start())

	assert.ErrorIs(t, m.MarkWaiting("h"), ErrInvalidState)
	assert.ErrorIs(t, m.MarkWaiting("a"), ErrUnknownParticipant)
}

func TestMeeting_HumanTimeouts(t *testing.T) {
	human := &stubHuman{stubParticipant: stubParticipant{name: "h"}}
	m := newTestMeeting(t, stubMode{rounds: 1}, []Participant{human})
	require.NoError(t, m.Start())
	require.NoError(t, m.MarkWaiting("h"))

	assert.Empty(t, m.HumanTimeouts(time.Now()))
	assert.Equal(t, []string{"h"}, m.HumanTimeouts(time.Now().Add(2*time.Minute)))
}

func TestMeeting_SnapshotAndTranscript(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 1}, participants("a", "b"))
	require.NoError(t, m.Start())
	_, err := m.SpeakingOrder()
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, "a", snap.CurrentSpeaker)
	assert.Equal(t, "stub", snap.Mode)
	assert.Len(t, snap.Participants, 2)

	require.NoError(t, m.RecordTurn("a", "1"))
	require.NoError(t, m.RecordTurn("b", "2"))
	_, err = m.Finish("sum")
	require.NoError(t, err)

	tr := m.Transcript()
	assert.Equal(t, m.ID(), tr.ID)
	assert.Equal(t, []string{"a", "b"}, tr.Participants)
	assert.Equal(t, "sum", tr.Summary)
	assert.Len(t, tr.History, 3)
	assert.False(t, tr.EndedAt.IsZero())
}

func TestMeeting_HistoryIsCopy(t *testing.T) {
	m := newTestMeeting(t, stubMode{rounds: 1}, participants("a"))
	require.NoError(t, m.Start())
	require.NoError(t, m.RecordTurn("a", "orig"))

	h := m.History()
	h[0].Content = "changed"
	assert.Equal(t, "orig", m.History()[0].Content)
}

func TestHumanWaitSentinel(t *testing.T) {
	name, ok := ParseHumanWaitSentinel(HumanWaitSentinel("张三"))
	assert.True(t, ok)
	assert.Equal(t, "张三", name)

	_, ok = ParseHumanWaitSentinel("plain text")
	assert.False(t, ok)
	_, ok = ParseHumanWaitSentinel(HumanWaitSentinel(""))
	assert.False(t, ok)
}

func TestIsPermutation(t *testing.T) {
	assert.True(t, IsPermutation([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, IsPermutation([]string{"a", "b"}, []string{"a", "a"}))
	assert.False(t, IsPermutation([]string{"a", "b"}, []string{"a"}))
}

func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError("a", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUpstreamModel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "a")
}
