// Package roster abstracts group membership, which is owned by an external
// collaborator. This core only asks boolean capability questions and looks
// up display names.
package roster

import "context"

type Member struct {
    ParticipantID string
    DisplayName   string
    Facilitator   bool
}

type Roster interface {
    // Members returns the group membership in stable insertion order. The
    // turn order of a game is frozen from this list at initialize time.
    Members(ctx context.Context, groupID string) ([]Member, error)

    IsMember(ctx context.Context, participantID, groupID string) (bool, error)
    IsFacilitator(ctx context.Context, participantID, groupID string) (bool, error)

    // DisplayName returns "" when the participant is unknown.
    DisplayName(ctx context.Context, participantID string) (string, error)
}
