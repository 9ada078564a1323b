package core

// PromptInput carries what a mode needs to phrase one participant's turn.
type PromptInput struct {
	Name         string
	Role         string
	Profile      Profile
	Topic        string
	Round        int
	MaxRounds    int
	Participants []ParticipantInfo
}

// ParticipantInfo is the serialisable identity of a participant.
type ParticipantInfo struct {
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Human   bool    `json:"human"`
	Profile Profile `json:"profile"`
}

// InfoOf converts a Participant into its ParticipantInfo.
func InfoOf(p Participant) ParticipantInfo {
	return ParticipantInfo{Name: p.Name(), Role: p.Role(), Human: p.IsHuman(), Profile: p.Profile()}
}

// Mode is the policy object governing prompts, speaking order and
// termination of a meeting. Implementations hold only static configuration;
// all session state arrives through arguments.
type Mode interface {
	Name() string
	Description() string

	// MaxRounds is the round ceiling configured on (or fixed by) the mode.
	MaxRounds() int
	// FixedRounds reports whether MaxRounds cannot be overridden.
	FixedRounds() bool

	PromptFor(in PromptInput) string

	// SpeakingOrder must return a permutation of the participant names.
	SpeakingOrder(participants []ParticipantInfo, round int) []string

	// ShouldEnd is an additional, mode-specific early exit consulted after
	// the round ceiling.
	ShouldEnd(roundsCompleted int, history []MessageEntry) bool

	// SummaryPromptTemplate contains the {topic} and {history} placeholders.
	SummaryPromptTemplate() string
}

// Names extracts the names of infos in order.
func Names(infos []ParticipantInfo) []string {
	res := make([]string, len(infos))
	for i, p := range infos {
		res[i] = p.Name
	}
	return res
}

// IsPermutation reports whether order contains exactly the names, each once.
func IsPermutation(names, order []string) bool {
	if len(names) != len(order) {
		return false
	}
	seen := make(map[string]int, len(names))
	for _, n := range names {
		seen[n]++
	}
	for _, n := range order {
		if seen[n] == 0 {
			return false
		}
		seen[n]--
	}
	return true
}
