package mode

import (
	"fmt"

	"github.com/hupe1980/meetmesh/core"
)

// NameSixThinkingHats is the canonical name of the six thinking hats mode.
const NameSixThinkingHats = "six_thinking_hats"

// Hat is one of de Bono's six thinking hats.
type Hat struct {
	Color   string
	Name    string
	Framing string
}

// Hats is indexed by round-1.
var Hats = [6]Hat{
	{"white", "白色思考帽（白帽）", "只关注客观事实与数据：已知哪些信息？还缺哪些信息？"},
	{"red", "红色思考帽（红帽）", "表达直觉、情感和第一反应，无需给出理由。"},
	{"black", "黑色思考帽（黑帽）", "从风险、问题和潜在隐患的角度审慎批判：哪里可能出错？最大的风险是什么？"},
	{"yellow", "黄色思考帽（黄帽）", "从积极的角度寻找价值与收益：为什么可行？有哪些好处？"},
	{"green", "绿色思考帽（绿帽）", "提出创造性的新想法和替代方案，突破常规。"},
	{"blue", "蓝色思考帽（蓝帽）", "控制与总结思考过程：归纳前面各顶帽子的成果，给出结论与行动计划。"},
}

// HatFor maps a round onto its hat, clamping into [1,6].
func HatFor(round int) Hat { return Hats[clamp(round, len(Hats))-1] }

// SixThinkingHats runs exactly six rounds in input order, one hat per round.
type SixThinkingHats struct{ base }

// NewSixThinkingHats creates the mode; the round count is fixed at 6.
func NewSixThinkingHats(optFns ...func(o *Options)) *SixThinkingHats {
	opts := newOptions(optFns)
	return &SixThinkingHats{base{
		name:        NameSixThinkingHats,
		description: "六顶思考帽：全体参与者每轮戴同一顶帽子，依次从事实、情感、风险、价值、创意、统筹六个角度思考",
		maxRounds:   len(Hats),
		fixed:       true,
		rng:         opts.Rand,
	}}
}

// PromptFor implements core.Mode.
func (s *SixThinkingHats) PromptFor(in core.PromptInput) string {
	hat := HatFor(in.Round)
	return persona(in) + roundLabel(in) +
		fmt.Sprintf("本轮所有人佩戴%s。议题是「%s」。%s", hat.Name, in.Topic, hat.Framing)
}

// SpeakingOrder implements core.Mode.
func (s *SixThinkingHats) SpeakingOrder(ps []core.ParticipantInfo, _ int) []string {
	return s.inOrder(ps)
}

// ShouldEnd implements core.Mode.
func (s *SixThinkingHats) ShouldEnd(roundsCompleted int, _ []core.MessageEntry) bool {
	return roundsCompleted >= len(Hats)
}

// SummaryPromptTemplate implements core.Mode.
func (s *SixThinkingHats) SummaryPromptTemplate() string {
	return `你是六顶思考帽会议的蓝帽主持人，请对议题「{topic}」的讨论进行总结。

【会议记录】
{history}

请按帽子分别归纳：白帽（事实）、红帽（感受）、黑帽（风险）、黄帽（价值）、绿帽（创意），最后给出蓝帽结论与行动计划。`
}
