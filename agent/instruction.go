package agent

import (
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/internal/util"
)

// Scope is what an instruction can see when it is resolved for a turn.
type Scope struct {
	Name    string
	Role    string
	Profile core.Profile
	Turn    core.TurnRequest
}

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the turn, the persona, etc.
type Provider interface {
	Instruction(Scope) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(Scope) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(s Scope) (string, error) { return f(s) }

// Instruction represents either a static instruction string or a dynamic provider.
// This mirrors a union of string | provider in a Go-idiomatic way. Static
// text may contain text/template markup over name, role, personality,
// skills, topic, round and max_rounds.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(Scope) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(s Scope) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(s)
	}
	return util.RenderTemplate(i.text, map[string]any{
		"name":        s.Name,
		"role":        s.Role,
		"personality": s.Profile.Personality,
		"skills":      s.Profile.Skills,
		"topic":       s.Turn.Topic,
		"round":       s.Turn.Round,
		"max_rounds":  s.Turn.MaxRounds,
	})
}

// DefaultInstruction is the system prompt of model participants.
const DefaultInstruction = `你是{{.name}}，正在参加一场多人会议，议题是「{{.topic}}」。
请始终保持你的身份{{if .role}}（{{.role}}）{{end}}，直接陈述观点，言简意赅，控制在 300 字以内。
不要复述他人原话，不要替其他参与者发言。`
