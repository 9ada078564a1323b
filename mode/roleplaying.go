package mode

import (
	"fmt"

	"github.com/hupe1980/meetmesh/core"
)

// NameRolePlaying is the canonical name of the role-playing mode.
const NameRolePlaying = "role_playing"

// Phase is a role-playing stage.
type Phase string

const (
	PhaseIntro     Phase = "intro"
	PhaseRebuttal  Phase = "rebuttal"
	PhaseSynthesis Phase = "synthesis"
)

// PhaseOf maps a round onto intro, rebuttal or synthesis.
func PhaseOf(round, maxRounds int) Phase {
	switch {
	case round <= 1:
		return PhaseIntro
	case round >= maxRounds:
		return PhaseSynthesis
	default:
		return PhaseRebuttal
	}
}

// RolePlaying keeps input order; each participant argues from its role.
type RolePlaying struct{ base }

// NewRolePlaying creates a role-playing mode (default 3 rounds).
func NewRolePlaying(optFns ...func(o *Options)) *RolePlaying {
	opts := newOptions(optFns)
	return &RolePlaying{base{
		name:        NameRolePlaying,
		description: "角色扮演：每位参与者从自身角色立场出发，经历介绍、交锋、综合三个阶段",
		maxRounds:   opts.MaxRounds,
		rng:         opts.Rand,
	}}
}

// PromptFor implements core.Mode.
func (r *RolePlaying) PromptFor(in core.PromptInput) string {
	var task string
	switch PhaseOf(in.Round, in.MaxRounds) {
	case PhaseIntro:
		task = fmt.Sprintf("请完全代入你的角色，介绍你的立场，以及你最关心「%s」的哪些方面。", in.Topic)
	case PhaseSynthesis:
		task = "请在保持角色的前提下，提出一个能兼顾各方利益的综合方案。"
	default:
		task = "请以你的角色身份，回应其他角色的观点，指出你认同和反对的地方。"
	}
	return persona(in) + roundLabel(in) + task
}

// SpeakingOrder implements core.Mode.
func (r *RolePlaying) SpeakingOrder(ps []core.ParticipantInfo, _ int) []string {
	return r.inOrder(ps)
}

// ShouldEnd implements core.Mode.
func (r *RolePlaying) ShouldEnd(roundsCompleted int, _ []core.MessageEntry) bool {
	return roundsCompleted >= r.maxRounds
}
