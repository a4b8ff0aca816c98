package models

import (
	"github.com/golang-jwt/jwt/v4"
)

// StreamClaims authorize one participant to open an event stream for one
// group. EventSource cannot set headers, so the signed token travels as a
// query parameter instead of a session header.
type StreamClaims struct {
    jwt.RegisteredClaims
    ParticipantID string `json:"participant_id"`
    GroupID       string `json:"group_id"`
}
