package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/meetmesh/core"
)

// DefaultHumanInputTimeout is the wait deadline of a human turn.
const DefaultHumanInputTimeout = 600 * time.Second

// HumanAgentOptions configures a HumanAgent.
type HumanAgentOptions struct {
	Role         string
	Profile      core.Profile
	InputTimeout time.Duration
}

// HumanAgent is a participant whose turns are supplied by an external actor
// through a single-slot mailbox.
type HumanAgent struct {
	BaseParticipant
	timeout time.Duration

	mu            sync.Mutex
	waiting       bool
	waitStartedAt *time.Time
	pending       *string
	notify        chan struct{}
}

// NewHumanAgent creates a human participant.
func NewHumanAgent(name string, optFns ...func(o *HumanAgentOptions)) *HumanAgent {
	opts := HumanAgentOptions{InputTimeout: DefaultHumanInputTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &HumanAgent{
		BaseParticipant: NewBaseParticipant(name, opts.Role, opts.Profile),
		timeout:         opts.InputTimeout,
		notify:          make(chan struct{}, 1),
	}
}

// IsHuman implements core.Participant.
func (h *HumanAgent) IsHuman() bool { return true }

// InputTimeout returns the configured wait deadline.
func (h *HumanAgent) InputTimeout() time.Duration { return h.timeout }

// Deliver buffers a message for the next turn. A later delivery replaces an
// unconsumed one.
func (h *HumanAgent) Deliver(message string) {
	h.mu.Lock()
	h.pending = &message
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// BeginWait starts the wait clock.
func (h *HumanAgent) BeginWait(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waiting = true
	h.waitStartedAt = &now
}

// ClearWait resets the wait clock.
func (h *HumanAgent) ClearWait() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waiting = false
	h.waitStartedAt = nil
}

// Pending returns a copy of the mailbox state.
func (h *HumanAgent) Pending() core.PendingHumanTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := core.PendingHumanTurn{Waiting: h.waiting}
	if h.waitStartedAt != nil {
		t := *h.waitStartedAt
		p.WaitStartedAt = &t
	}
	if h.pending != nil {
		m := *h.pending
		p.PendingMessage = &m
	}
	return p
}

// HasInputTimeout reports whether the current wait is older than the deadline.
func (h *HumanAgent) HasInputTimeout(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.waiting || h.waitStartedAt == nil || h.timeout <= 0 {
		return false
	}
	return now.Sub(*h.waitStartedAt) > h.timeout
}

func (h *HumanAgent) take() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return "", false
	}
	msg := *h.pending
	h.pending = nil
	h.waiting = false
	h.waitStartedAt = nil
	return msg, true
}

// RespondStream implements core.Participant. A buffered message is replayed
// as the answer; otherwise the human-wait sentinel is emitted and the
// stream ends without an answer.
func (h *HumanAgent) RespondStream(_ context.Context, _ core.TurnRequest) <-chan core.Fragment {
	out := make(chan core.Fragment, 1)
	if msg, ok := h.take(); ok {
		out <- core.AnswerFragment(msg)
	} else {
		out <- core.AnswerFragment(core.HumanWaitSentinel(h.Name()))
	}
	close(out)
	return out
}

// Respond blocks until a message is delivered or ctx is done. It is for
// callers that drive the participant directly and can afford to block; the
// runner uses RespondStream and the wait sentinel instead.
func (h *HumanAgent) Respond(ctx context.Context, _ core.TurnRequest) (string, error) {
	for {
		if msg, ok := h.take(); ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-h.notify:
		}
	}
}
