package mode

import (
	"fmt"
	"hash/fnv"

	"github.com/hupe1980/meetmesh/core"
)

// NameDebate is the canonical name of the debate mode.
const NameDebate = "debate"

// Side is a debate camp.
type Side string

const (
	SidePro Side = "pro"
	SideCon Side = "con"
)

// Debate splits participants into pro and con camps by a hash of name+role
// and interleaves them. The end decision is left to the round ceiling.
type Debate struct{ base }

// NewDebate creates a debate mode (default 3 rounds).
func NewDebate(optFns ...func(o *Options)) *Debate {
	opts := newOptions(optFns)
	return &Debate{base{
		name:        NameDebate,
		description: "辩论：正反双方交替发言，立论、反驳、总结陈词",
		maxRounds:   opts.MaxRounds,
		rng:         opts.Rand,
	}}
}

func hashSide(name, role string) Side {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + role))
	if h.Sum32()%2 == 0 {
		return SidePro
	}
	return SideCon
}

// Camps partitions the roster into pro and con by name+role hash parity,
// keeping input order inside each camp. When a camp is empty the trailing
// half of the other camp is moved over.
func Camps(roster []core.ParticipantInfo) (pro, con []string) {
	for _, p := range roster {
		if hashSide(p.Name, p.Role) == SidePro {
			pro = append(pro, p.Name)
		} else {
			con = append(con, p.Name)
		}
	}
	switch {
	case len(pro) == 0 && len(con) > 1:
		split := len(con) - len(con)/2
		pro, con = con[split:], con[:split]
	case len(con) == 0 && len(pro) > 1:
		split := len(pro) - len(pro)/2
		pro, con = pro[:split], pro[split:]
	}
	return pro, con
}

// SideOf reports the camp of name within the roster.
func SideOf(name string, roster []core.ParticipantInfo) Side {
	_, con := Camps(roster)
	for _, n := range con {
		if n == name {
			return SideCon
		}
	}
	return SidePro
}

// PromptFor implements core.Mode.
func (d *Debate) PromptFor(in core.PromptInput) string {
	side := "正方（支持）"
	if SideOf(in.Name, in.Participants) == SideCon {
		side = "反方（反对）"
	}
	var task string
	switch {
	case in.Round <= 1:
		task = "请进行立论，清晰陈述你方的核心论点与论据。"
	case in.Round >= in.MaxRounds:
		task = "请做总结陈词，回顾双方交锋，强调你方立场成立的关键理由。"
	default:
		task = "请针对对方的论点进行反驳，并补强你方论证。"
	}
	return persona(in) + roundLabel(in) + fmt.Sprintf("辩题是「%s」，你代表%s。", in.Topic, side) + task
}

// SpeakingOrder implements core.Mode: pro, con, pro, con, then leftovers.
func (d *Debate) SpeakingOrder(ps []core.ParticipantInfo, _ int) []string {
	return interleave(Camps(ps))
}

func interleave(pro, con []string) []string {
	res := make([]string, 0, len(pro)+len(con))
	for i := 0; i < len(pro) || i < len(con); i++ {
		if i < len(pro) {
			res = append(res, pro[i])
		}
		if i < len(con) {
			res = append(res, con[i])
		}
	}
	return res
}

// ShouldEnd implements core.Mode; the round ceiling decides.
func (d *Debate) ShouldEnd(int, []core.MessageEntry) bool { return false }

// SummaryPromptTemplate implements core.Mode.
func (d *Debate) SummaryPromptTemplate() string {
	return `你是本场辩论的评委，请对辩题「{topic}」的辩论进行点评。

【辩论记录】
{history}

请输出：
1. 正方核心论点
2. 反方核心论点
3. 交锋焦点与评判
4. 综合结论`
}
