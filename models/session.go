package models

import "time"

// Session is one (participant, group, device) login. Several sessions may be
// live at once for the same participant in the same group (multi-device).
type Session struct {
    ID            string    `json:"id"`
    GroupID       string    `json:"group_id"`
    ParticipantID string    `json:"participant_id"`
    Token         string    `json:"session_token"`
    DeviceInfo    string    `json:"device_info,omitempty"`
    LastSeen      time.Time `json:"last_seen"`
    CreatedAt     time.Time `json:"created_at"`
}

// OnlineParticipant aggregates all live sessions of one participant in a group.
type OnlineParticipant struct {
    ParticipantID string    `json:"participant_id"`
    DisplayName   string    `json:"display_name,omitempty"`
    LastSeen      time.Time `json:"last_seen"`
    DeviceCount   int       `json:"device_count"`
}
