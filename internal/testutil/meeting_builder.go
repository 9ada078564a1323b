package testutil

import (
	"testing"
	"time"

	"github.com/hupe1980/meetmesh/agent"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/mode"
	"github.com/hupe1980/meetmesh/model"
)

// MeetingBuilder constructs meetings with fluent chaining for tests.
// Example:
//
//	m := NewMeetingBuilder("选址").Mode(mode.NewSWOT()).Agent("a", "分析师").Human("h").MustBuild(t)
//
// Agents default to a MockModel named after the participant.
type MeetingBuilder struct {
	topic        string
	mode         core.Mode
	id           string
	maxRounds    int
	summaryModel string
	clock        func() time.Time
	participants []core.Participant
}

// NewMeetingBuilder creates a builder for a discussion meeting about topic.
func NewMeetingBuilder(topic string) *MeetingBuilder {
	return &MeetingBuilder{topic: topic}
}

// ID fixes the meeting id (chainable).
func (b *MeetingBuilder) ID(id string) *MeetingBuilder { b.id = id; return b }

// Mode sets the meeting mode (chainable).
func (b *MeetingBuilder) Mode(m core.Mode) *MeetingBuilder { b.mode = m; return b }

// MaxRounds overrides the round ceiling (chainable).
func (b *MeetingBuilder) MaxRounds(n int) *MeetingBuilder { b.maxRounds = n; return b }

// SummaryModel sets the summary model selector (chainable).
func (b *MeetingBuilder) SummaryModel(name string) *MeetingBuilder { b.summaryModel = name; return b }

// Clock injects the meeting clock (chainable).
func (b *MeetingBuilder) Clock(fn func() time.Time) *MeetingBuilder { b.clock = fn; return b }

// Agent appends a model participant backed by a MockModel (chainable).
func (b *MeetingBuilder) Agent(name, role string) *MeetingBuilder {
	return b.AgentWithModel(name, role, model.NewMockModel(name))
}

// AgentWithModel appends a model participant backed by m (chainable).
func (b *MeetingBuilder) AgentWithModel(name, role string, m model.Model) *MeetingBuilder {
	b.participants = append(b.participants, agent.NewModelAgent(name, m, func(o *agent.ModelAgentOptions) {
		o.Role = role
		o.Retry = agent.RetryPolicy{}
	}))
	return b
}

// Human appends a human participant (chainable).
func (b *MeetingBuilder) Human(name string) *MeetingBuilder {
	b.participants = append(b.participants, agent.NewHumanAgent(name))
	return b
}

// Participant appends any participant (chainable).
func (b *MeetingBuilder) Participant(p core.Participant) *MeetingBuilder {
	b.participants = append(b.participants, p)
	return b
}

// Build returns the meeting in NotStarted.
func (b *MeetingBuilder) Build() (*core.Meeting, error) {
	m := b.mode
	if m == nil {
		m = mode.NewDiscussion(mode.WithSeed(1))
	}
	return core.NewMeeting(b.topic, m, b.participants, func(o *core.MeetingOptions) {
		o.ID = b.id
		o.MaxRounds = b.maxRounds
		o.SummaryModel = b.summaryModel
		if b.clock != nil {
			o.Clock = b.clock
		}
	})
}

// MustBuild is Build failing the test on error.
func (b *MeetingBuilder) MustBuild(t testing.TB) *core.Meeting {
	t.Helper()
	m, err := b.Build()
	if err != nil {
		t.Fatalf("build meeting: %v", err)
	}
	return m
}
