package mode

import (
	"fmt"
	"testing"

	"github.com/hupe1980/meetmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roster(n int) []core.ParticipantInfo {
	res := make([]core.ParticipantInfo, n)
	for i := range res {
		res[i] = core.ParticipantInfo{Name: fmt.Sprintf("p%d", i), Role: fmt.Sprintf("role%d", i%3)}
	}
	return res
}

func allModes(t *testing.T) []core.Mode {
	t.Helper()
	var res []core.Mode
	for _, name := range Names() {
		m, err := New(name, WithSeed(7))
		require.NoError(t, err)
		res = append(res, m)
	}
	return res
}

func TestSpeakingOrderIsPermutation(t *testing.T) {
	for _, m := range allModes(t) {
		for n := 1; n <= 7; n++ {
			ps := roster(n)
			for round := 1; round <= m.MaxRounds(); round++ {
				order := m.SpeakingOrder(ps, round)
				assert.True(t, core.IsPermutation(core.Names(ps), order), "%s n=%d round=%d: %v", m.Name(), n, round, order)
			}
		}
	}
}

func TestNew_AliasesAndUnknown(t *testing.T) {
	for name, want := range map[string]string{
		"Discussion":        NameDiscussion,
		"头脑风暴":              NameBrainstorming,
		"辩论":                NameDebate,
		"role-playing":      NameRolePlaying,
		"Six Thinking Hats": NameSixThinkingHats,
		"SWOT":              NameSWOT,
	} {
		m, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, m.Name())
	}

	_, err := New("council")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestFixedRounds(t *testing.T) {
	hats, err := New(NameSixThinkingHats, WithMaxRounds(2))
	require.NoError(t, err)
	assert.Equal(t, 6, hats.MaxRounds())
	assert.True(t, hats.FixedRounds())

	swot, err := New(NameSWOT, WithMaxRounds(9))
	require.NoError(t, err)
	assert.Equal(t, 4, swot.MaxRounds())

	d, err := New(NameDiscussion)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRounds, d.MaxRounds())
	assert.False(t, d.FixedRounds())

	d, err = New(NameDiscussion, WithMaxRounds(5))
	require.NoError(t, err)
	assert.Equal(t, 5, d.MaxRounds())
}

func TestDiscussion_FirstRoundKeepsInputOrder(t *testing.T) {
	d := NewDiscussion(WithSeed(1))
	ps := roster(5)
	assert.Equal(t, core.Names(ps), d.SpeakingOrder(ps, 1))
}

func TestDiscussion_ShuffleIsSeeded(t *testing.T) {
	ps := roster(6)
	a := NewDiscussion(WithSeed(99))
	b := NewDiscussion(WithSeed(99))
	for round := 2; round <= 3; round++ {
		assert.Equal(t, a.SpeakingOrder(ps, round), b.SpeakingOrder(ps, round))
	}
}

func TestBrainstorming_ShufflesEveryRound(t *testing.T) {
	ps := roster(8)
	b := NewBrainstorming(WithSeed(3))
	differs := false
	for i := 0; i < 10; i++ {
		if fmt.Sprint(b.SpeakingOrder(ps, 1)) != fmt.Sprint(core.Names(ps)) {
			differs = true
			break
		}
	}
	assert.True(t, differs)
}

func TestBrainstorming_PromptPhases(t *testing.T) {
	b := NewBrainstorming()
	in := core.PromptInput{Name: "a", Topic: "新产品", MaxRounds: 3}
	in.Round = 1
	first := b.PromptFor(in)
	in.Round = 2
	middle := b.PromptFor(in)
	in.Round = 3
	last := b.PromptFor(in)
	assert.Contains(t, first, "第一轮")
	assert.Contains(t, last, "最后一轮")
	assert.NotEqual(t, first, middle)
	assert.NotEqual(t, middle, last)
}

func TestDiscussion_ShouldEnd(t *testing.T) {
	d := NewDiscussion()
	assert.False(t, d.ShouldEnd(2, nil))
	assert.True(t, d.ShouldEnd(3, nil))
}

func TestDebate_NeverEndsOnItsOwn(t *testing.T) {
	d := NewDebate()
	for i := 0; i < 10; i++ {
		assert.False(t, d.ShouldEnd(i, nil))
	}
}

func TestDebate_CampsRebalance(t *testing.T) {
	// Find a roster whose members all hash onto the same side.
	var same []core.ParticipantInfo
	var side Side
	for i := 0; len(same) < 4 && i < 1000; i++ {
		p := core.ParticipantInfo{Name: fmt.Sprintf("n%d", i), Role: "r"}
		s := hashSide(p.Name, p.Role)
		if len(same) == 0 {
			side = s
		}
		if s == side {
			same = append(same, p)
		}
	}
	require.Len(t, same, 4)

	pro, con := Camps(same)
	assert.Len(t, pro, 2)
	assert.Len(t, con, 2)

	order := NewDebate().SpeakingOrder(same, 1)
	assert.Equal(t, []string{pro[0], con[0], pro[1], con[1]}, order)
}

func TestDebate_InterleavesWithLeftovers(t *testing.T) {
	assert.Equal(t, []string{"a", "x", "b", "c"}, interleave([]string{"a", "b", "c"}, []string{"x"}))
	assert.Equal(t, []string{"x", "y"}, interleave(nil, []string{"x", "y"}))
}

func TestDebate_PromptStatesSide(t *testing.T) {
	ps := roster(4)
	d := NewDebate()
	for _, p := range ps {
		prompt := d.PromptFor(core.PromptInput{Name: p.Name, Role: p.Role, Topic: "远程办公", Round: 1, MaxRounds: 3, Participants: ps})
		if SideOf(p.Name, ps) == SideCon {
			assert.Contains(t, prompt, "反方")
		} else {
			assert.Contains(t, prompt, "正方")
		}
	}
}

func TestRolePlaying_Phases(t *testing.T) {
	assert.Equal(t, PhaseIntro, PhaseOf(1, 3))
	assert.Equal(t, PhaseRebuttal, PhaseOf(2, 3))
	assert.Equal(t, PhaseSynthesis, PhaseOf(3, 3))
	assert.Equal(t, PhaseIntro, PhaseOf(1, 1))

	r := NewRolePlaying()
	ps := roster(3)
	assert.Equal(t, core.Names(ps), r.SpeakingOrder(ps, 2))
}

func TestSixThinkingHats_HatPerRound(t *testing.T) {
	colors := []string{"white", "red", "black", "yellow", "green", "blue"}
	for i, c := range colors {
		assert.Equal(t, c, HatFor(i+1).Color)
	}
	assert.Equal(t, "white", HatFor(0).Color)
	assert.Equal(t, "blue", HatFor(42).Color)

	s := NewSixThinkingHats()
	prompt := s.PromptFor(core.PromptInput{Name: "a", Topic: "扩张计划", Round: 3, MaxRounds: 6})
	assert.Contains(t, prompt, "黑色")
	assert.Contains(t, prompt, "黑帽")
	assert.Contains(t, prompt, "风险")
}

func TestSWOT_QuadrantPerRound(t *testing.T) {
	keys := []string{"strengths", "weaknesses", "opportunities", "threats"}
	for i, k := range keys {
		assert.Equal(t, k, QuadrantFor(i+1).Key)
	}
	assert.Equal(t, "threats", QuadrantFor(9).Key)
	assert.True(t, NewSWOT().ShouldEnd(4, nil))
}

func TestSummaryTemplatesHavePlaceholders(t *testing.T) {
	for _, m := range allModes(t) {
		tpl := m.SummaryPromptTemplate()
		assert.Contains(t, tpl, "{topic}", m.Name())
		assert.Contains(t, tpl, "{history}", m.Name())
	}
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	require.Len(t, c, 6)
	assert.Equal(t, NameDiscussion, c[0].Name)
	assert.True(t, c[4].FixedRounds)
}
