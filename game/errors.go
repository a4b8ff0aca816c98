package game

import "errors"

var (
    // ErrNotYourTurn rejects a submit/skip by anyone but the computed holder.
    ErrNotYourTurn = errors.New("not your turn for this paper")

    // ErrNoParticipants means a game was initialized with empty membership.
    ErrNoParticipants = errors.New("no participants found for this game")

    ErrGameNotFound      = errors.New("game not found")
    ErrGameNotActive     = errors.New("game is not active")
    ErrNotInGame         = errors.New("participant is not in the turn order")
    ErrInvalidTransition = errors.New("invalid game status transition")
)
