package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Channel tags a fragment as model reasoning or answer text.
type Channel string

const (
	// ChannelAnswer carries text that becomes part of the recorded turn.
	ChannelAnswer Channel = "answer"
	// ChannelReasoning carries thinking output; it is streamed but never recorded.
	ChannelReasoning Channel = "reasoning"
)

// Fragment is a single piece of a participant's streamed turn.
type Fragment struct {
	Channel Channel
	Text    string
}

// AnswerFragment is a shorthand for an answer-channel fragment.
func AnswerFragment(text string) Fragment { return Fragment{Channel: ChannelAnswer, Text: text} }

// ReasoningFragment is a shorthand for a reasoning-channel fragment.
func ReasoningFragment(text string) Fragment {
	return Fragment{Channel: ChannelReasoning, Text: text}
}

// Profile holds free-text persona metadata used only to build prompts.
type Profile struct {
	Personality string `json:"personality,omitempty"`
	Skills      string `json:"skills,omitempty"`
}

// TurnRequest is what a participant receives when its turn is reached.
// History contains every entry up to and including the preceding turn.
type TurnRequest struct {
	MeetingID string
	Topic     string
	Round     int
	MaxRounds int
	Prompt    string
	History   []MessageEntry
}

// Participant produces one turn per call. Implementations must be usable by a
// single meeting at a time; the meeting owns them for its lifetime.
type Participant interface {
	Name() string
	Role() string
	Profile() Profile
	IsHuman() bool

	// Respond blocks until the full answer is available.
	Respond(ctx context.Context, req TurnRequest) (string, error)

	// RespondStream forwards fragments as soon as they are produced. The
	// channel is closed when the turn is complete. Failures are reported
	// in-band as answer text rather than through a separate error path.
	RespondStream(ctx context.Context, req TurnRequest) <-chan Fragment
}

// PendingHumanTurn is the mailbox state of a human participant.
type PendingHumanTurn struct {
	Waiting        bool       `json:"waiting"`
	WaitStartedAt  *time.Time `json:"wait_started_at,omitempty"`
	PendingMessage *string    `json:"pending_message,omitempty"`
}

// HumanParticipant is a Participant whose content comes from an external
// actor. RespondStream either replays a delivered message or emits the
// human-wait sentinel.
type HumanParticipant interface {
	Participant

	// Deliver buffers a message to be consumed at the participant's next turn.
	Deliver(message string)
	// BeginWait starts the wait clock for the current turn.
	BeginWait(now time.Time)
	// ClearWait resets the wait clock without touching a buffered message.
	ClearWait()
	// Pending returns a copy of the mailbox state.
	Pending() PendingHumanTurn
	// HasInputTimeout reports whether the current wait exceeded its deadline.
	HasInputTimeout(now time.Time) bool
}

const (
	sentinelPrefix = "\x00meetmesh:awaiting_human:"
	sentinelSuffix = "\x00"
)

// HumanWaitSentinel returns the in-band marker signalling that the named
// human must supply input before the meeting can continue.
func HumanWaitSentinel(name string) string {
	return sentinelPrefix + name + sentinelSuffix
}

// ParseHumanWaitSentinel extracts the participant name from a sentinel
// fragment. The whole fragment must be the sentinel.
func ParseHumanWaitSentinel(text string) (string, bool) {
	if !strings.HasPrefix(text, sentinelPrefix) || !strings.HasSuffix(text, sentinelSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(text, sentinelPrefix), sentinelSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}

// DescribeParticipant renders "name (role)" for prompts and logs.
func DescribeParticipant(p Participant) string {
	if p.Role() == "" {
		return p.Name()
	}
	return fmt.Sprintf("%s（%s）", p.Name(), p.Role())
}
