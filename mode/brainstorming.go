package mode

import (
	"fmt"

	"github.com/hupe1980/meetmesh/core"
)

// NameBrainstorming is the canonical name of the brainstorming mode.
const NameBrainstorming = "brainstorming"

// Brainstorming shuffles the speaking order every round.
type Brainstorming struct{ base }

// NewBrainstorming creates a brainstorming mode (default 3 rounds).
func NewBrainstorming(optFns ...func(o *Options)) *Brainstorming {
	opts := newOptions(optFns)
	return &Brainstorming{base{
		name:        NameBrainstorming,
		description: "头脑风暴：鼓励发散思维，先求数量再求质量，最后收敛",
		maxRounds:   opts.MaxRounds,
		rng:         opts.Rand,
	}}
}

// PromptFor implements core.Mode.
func (b *Brainstorming) PromptFor(in core.PromptInput) string {
	var task string
	switch {
	case in.Round <= 1:
		task = fmt.Sprintf("这是头脑风暴的第一轮。请就「%s」尽可能多地提出新颖的想法，暂不评判可行性。", in.Topic)
	case in.Round >= in.MaxRounds:
		task = fmt.Sprintf("这是最后一轮。请从已提出的想法中挑选你认为最有价值的几个，说明如何落地「%s」。", in.Topic)
	default:
		task = "请在其他人想法的基础上继续延伸、组合或改进，提出新的创意。"
	}
	return persona(in) + roundLabel(in) + task
}

// SpeakingOrder implements core.Mode.
func (b *Brainstorming) SpeakingOrder(ps []core.ParticipantInfo, _ int) []string {
	return b.shuffled(ps)
}

// ShouldEnd implements core.Mode.
func (b *Brainstorming) ShouldEnd(roundsCompleted int, _ []core.MessageEntry) bool {
	return roundsCompleted >= b.maxRounds
}

// SummaryPromptTemplate implements core.Mode.
func (b *Brainstorming) SummaryPromptTemplate() string {
	return `你是头脑风暴的主持人，请整理围绕「{topic}」提出的所有想法。

【会议记录】
{history}

请输出：
1. 想法清单（按主题归类）
2. 最具潜力的三个想法及理由
3. 建议的下一步行动`
}
