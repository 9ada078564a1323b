package agent

import (
	"errors"
	"testing"

	"github.com/hupe1980/meetmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(Scope) (string, error) { return m.text, m.err }

func newTestScope() Scope {
	return Scope{
		Name:    "李四",
		Role:    "财务",
		Profile: core.Profile{Personality: "谨慎", Skills: "预算"},
		Turn:    core.TurnRequest{Topic: "年度预算", Round: 2, MaxRounds: 3},
	}
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())
	got, err := inst.Resolve(newTestScope())
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_StaticTemplate(t *testing.T) {
	inst := NewInstructionFromText("{{.name}}/{{.role}}/{{.personality}}/{{.skills}}/{{.topic}}/{{.round}}of{{.max_rounds}}")
	got, err := inst.Resolve(newTestScope())
	require.NoError(t, err)
	assert.Equal(t, "李四/财务/谨慎/预算/年度预算/2of3", got)
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(s Scope) (string, error) { return "dynamic " + s.Name, nil })
	assert.False(t, inst.IsStatic())
	got, err := inst.Resolve(newTestScope())
	require.NoError(t, err)
	assert.Equal(t, "dynamic 李四", got)
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{err: errors.New("boom")})
	_, err := inst.Resolve(newTestScope())
	assert.EqualError(t, err, "boom")
}

func TestDefaultInstruction_WithoutRole(t *testing.T) {
	s := newTestScope()
	s.Role = ""
	got, err := NewInstructionFromText(DefaultInstruction).Resolve(s)
	require.NoError(t, err)
	assert.Contains(t, got, "你是李四")
	assert.NotContains(t, got, "（）")
}
