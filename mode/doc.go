// Package mode implements the meeting styles (core.Mode): Discussion,
// Brainstorming, Debate, RolePlaying, SixThinkingHats and SWOT.
//
// Each mode is stateless with respect to a meeting. Shuffling modes draw from
// an injectable math/rand/v2 source so tests can pin the order:
//
//	m, err := mode.New("discussion", mode.WithMaxRounds(4), mode.WithSeed(42))
package mode
