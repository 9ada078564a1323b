package mode

import (
	"fmt"

	"github.com/hupe1980/meetmesh/core"
)

// NameDiscussion is the canonical name of the discussion mode.
const NameDiscussion = "discussion"

// Discussion keeps input order in round 1 and shuffles later rounds.
type Discussion struct{ base }

// NewDiscussion creates a discussion mode (default 3 rounds).
func NewDiscussion(optFns ...func(o *Options)) *Discussion {
	opts := newOptions(optFns)
	return &Discussion{base{
		name:        NameDiscussion,
		description: "自由讨论：参与者围绕议题轮流发言，逐轮深化观点",
		maxRounds:   opts.MaxRounds,
		rng:         opts.Rand,
	}}
}

// PromptFor implements core.Mode.
func (d *Discussion) PromptFor(in core.PromptInput) string {
	var task string
	switch {
	case in.Round <= 1:
		task = fmt.Sprintf("请围绕议题「%s」发表你的初步观点，给出理由。", in.Topic)
	case in.Round >= in.MaxRounds:
		task = fmt.Sprintf("这是最后一轮。请结合前面所有人的发言，就「%s」给出你的最终结论。", in.Topic)
	default:
		task = fmt.Sprintf("请回应前面其他参与者关于「%s」的观点，补充、质疑或修正你的看法。", in.Topic)
	}
	return persona(in) + roundLabel(in) + task
}

// SpeakingOrder implements core.Mode.
func (d *Discussion) SpeakingOrder(ps []core.ParticipantInfo, round int) []string {
	if round <= 1 {
		return d.inOrder(ps)
	}
	return d.shuffled(ps)
}

// ShouldEnd implements core.Mode.
func (d *Discussion) ShouldEnd(roundsCompleted int, _ []core.MessageEntry) bool {
	return roundsCompleted >= d.maxRounds
}
