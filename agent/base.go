package agent

import (
	"github.com/hupe1980/meetmesh/core"
)

// BaseParticipant bundles the identity shared by every participant (name,
// role, persona profile). Embed it in concrete participants and supply
// IsHuman, Respond and RespondStream to satisfy core.Participant.
type BaseParticipant struct {
	name    string
	role    string
	profile core.Profile
}

// NewBaseParticipant constructs a BaseParticipant.
func NewBaseParticipant(name, role string, profile core.Profile) BaseParticipant {
	return BaseParticipant{name: name, role: role, profile: profile}
}

// Name returns the participant name, unique within a meeting.
func (b *BaseParticipant) Name() string { return b.name }

// Role returns the free-text role description.
func (b *BaseParticipant) Role() string { return b.role }

// Profile returns the persona metadata used to build prompts.
func (b *BaseParticipant) Profile() core.Profile { return b.profile }

// Info returns the serialisable identity.
func (b *BaseParticipant) Info() core.ParticipantInfo {
	return core.ParticipantInfo{Name: b.name, Role: b.role, Profile: b.profile}
}
