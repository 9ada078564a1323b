package mode

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/meetmesh/core"
)

// DefaultMaxRounds is the ceiling of modes whose rounds are configurable.
const DefaultMaxRounds = 3

// Options configure a mode instance. Fixed-round modes ignore MaxRounds.
type Options struct {
	MaxRounds int
	// Rand drives shuffled speaking orders. A mode owns its source and is
	// used by a single meeting, so no locking is done.
	Rand *rand.Rand
}

// WithMaxRounds overrides the configurable round ceiling.
func WithMaxRounds(n int) func(o *Options) {
	return func(o *Options) {
		if n > 0 {
			o.MaxRounds = n
		}
	}
}

// WithRand injects the shuffle source.
func WithRand(r *rand.Rand) func(o *Options) {
	return func(o *Options) { o.Rand = r }
}

// WithSeed injects a deterministic PCG shuffle source.
func WithSeed(seed uint64) func(o *Options) {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{MaxRounds: DefaultMaxRounds}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	return opts
}

// base carries the static configuration shared by every mode.
type base struct {
	name        string
	description string
	maxRounds   int
	fixed       bool
	rng         *rand.Rand
}

func (b *base) Name() string        { return b.name }
func (b *base) Description() string { return b.description }
func (b *base) MaxRounds() int      { return b.maxRounds }
func (b *base) FixedRounds() bool   { return b.fixed }

// SummaryPromptTemplate is the default moderator template; modes override it
// where the summary needs a specific structure.
func (b *base) SummaryPromptTemplate() string { return defaultSummaryTemplate }

func (b *base) inOrder(ps []core.ParticipantInfo) []string {
	return core.Names(ps)
}

func (b *base) shuffled(ps []core.ParticipantInfo) []string {
	res := b.inOrder(ps)
	b.rng.Shuffle(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] })
	return res
}

const defaultSummaryTemplate = `你是本次会议的主持人，请对围绕「{topic}」的讨论进行总结。

【会议记录】
{history}

请输出：
1. 主要观点与共识
2. 存在的分歧
3. 结论与后续建议`

// clamp keeps a round index inside [1, n].
func clamp(round, n int) int {
	if round < 1 {
		return 1
	}
	if round > n {
		return n
	}
	return round
}

// persona renders the opening line shared by all prompts.
func persona(in core.PromptInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "你是%s", in.Name)
	if in.Role != "" {
		fmt.Fprintf(&sb, "，身份是%s", in.Role)
	}
	sb.WriteString("。")
	if in.Profile.Personality != "" {
		fmt.Fprintf(&sb, "你的性格特点：%s。", in.Profile.Personality)
	}
	if in.Profile.Skills != "" {
		fmt.Fprintf(&sb, "你擅长：%s。", in.Profile.Skills)
	}
	return sb.String()
}

func roundLabel(in core.PromptInput) string {
	return fmt.Sprintf("当前是第 %d/%d 轮。", in.Round, in.MaxRounds)
}

// Info describes a registered mode for catalogues.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxRounds   int    `json:"max_rounds"`
	FixedRounds bool   `json:"fixed_rounds"`
}

type constructor func(optFns ...func(o *Options)) core.Mode

var registry = []struct {
	name    string
	aliases []string
	build   constructor
}{
	{NameDiscussion, []string{"讨论", "自由讨论"}, func(o ...func(*Options)) core.Mode { return NewDiscussion(o...) }},
	{NameBrainstorming, []string{"brainstorm", "头脑风暴"}, func(o ...func(*Options)) core.Mode { return NewBrainstorming(o...) }},
	{NameDebate, []string{"辩论"}, func(o ...func(*Options)) core.Mode { return NewDebate(o...) }},
	{NameRolePlaying, []string{"roleplaying", "role_play", "角色扮演"}, func(o ...func(*Options)) core.Mode { return NewRolePlaying(o...) }},
	{NameSixThinkingHats, []string{"six_hats", "sixthinkinghats", "六顶思考帽"}, func(o ...func(*Options)) core.Mode { return NewSixThinkingHats(o...) }},
	{NameSWOT, []string{"swot分析"}, func(o ...func(*Options)) core.Mode { return NewSWOT(o...) }},
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(n)
}

// New resolves a mode by canonical name or alias (case-insensitive).
func New(name string, optFns ...func(o *Options)) (core.Mode, error) {
	n := normalize(name)
	for _, r := range registry {
		if n == r.name {
			return r.build(optFns...), nil
		}
		for _, a := range r.aliases {
			if n == a {
				return r.build(optFns...), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unknown meeting mode %q", core.ErrConfiguration, name)
}

// Names lists the canonical mode names.
func Names() []string {
	res := make([]string, len(registry))
	for i, r := range registry {
		res[i] = r.name
	}
	return res
}

// Catalog describes every mode with its defaults.
func Catalog() []Info {
	res := make([]Info, len(registry))
	for i, r := range registry {
		m := r.build()
		res[i] = Info{Name: m.Name(), Description: m.Description(), MaxRounds: m.MaxRounds(), FixedRounds: m.FixedRounds()}
	}
	return res
}
