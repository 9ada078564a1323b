package mode

import (
	"fmt"

	"github.com/hupe1980/meetmesh/core"
)

// NameSWOT is the canonical name of the SWOT mode.
const NameSWOT = "swot"

// Quadrant is one SWOT dimension.
type Quadrant struct {
	Key     string
	Name    string
	Framing string
}

// Quadrants is indexed by round-1.
var Quadrants = [4]Quadrant{
	{"strengths", "优势（Strengths）", "内部有哪些优势和可依赖的资源？"},
	{"weaknesses", "劣势（Weaknesses）", "内部存在哪些短板和不足？"},
	{"opportunities", "机会（Opportunities）", "外部环境中有哪些可以把握的机会？"},
	{"threats", "威胁（Threats）", "外部环境中有哪些威胁和挑战？"},
}

// QuadrantFor maps a round onto its quadrant, clamping into [1,4].
func QuadrantFor(round int) Quadrant { return Quadrants[clamp(round, len(Quadrants))-1] }

// SWOT runs four rounds in input order, one quadrant per round.
type SWOT struct{ base }

// NewSWOT creates the mode; the round count is fixed at 4.
func NewSWOT(optFns ...func(o *Options)) *SWOT {
	opts := newOptions(optFns)
	return &SWOT{base{
		name:        NameSWOT,
		description: "SWOT 分析：依次讨论优势、劣势、机会、威胁",
		maxRounds:   len(Quadrants),
		fixed:       true,
		rng:         opts.Rand,
	}}
}

// PromptFor implements core.Mode.
func (s *SWOT) PromptFor(in core.PromptInput) string {
	q := QuadrantFor(in.Round)
	return persona(in) + roundLabel(in) +
		fmt.Sprintf("本轮分析维度是%s。请针对「%s」回答：%s", q.Name, in.Topic, q.Framing)
}

// SpeakingOrder implements core.Mode.
func (s *SWOT) SpeakingOrder(ps []core.ParticipantInfo, _ int) []string {
	return s.inOrder(ps)
}

// ShouldEnd implements core.Mode.
func (s *SWOT) ShouldEnd(roundsCompleted int, _ []core.MessageEntry) bool {
	return roundsCompleted >= len(Quadrants)
}

// SummaryPromptTemplate implements core.Mode.
func (s *SWOT) SummaryPromptTemplate() string {
	return `请基于以下会议记录，为「{topic}」整理一份 SWOT 分析报告。

【会议记录】
{history}

请输出 SWOT 矩阵（优势、劣势、机会、威胁各列要点），并给出 SO、WO、ST、WT 四类策略建议。`
}
