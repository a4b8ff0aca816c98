package models

import "time"

// Event types emitted by this core. The hub itself never inspects these;
// other types (document updates etc.) pass through unchanged.
const (
    EventConnected    = "connected"
    EventOnlineStatus = "online_status"
    EventTurnUpdate   = "turn_update"
    EventHeartbeat    = "heartbeat"
)

// Event is the envelope fanned out to every connection of a group.
type Event struct {
    ID        string      `json:"id,omitempty"`
    Type      string      `json:"type"`
    Data      interface{} `json:"data"`
    GroupID   string      `json:"group_id"`
    Timestamp time.Time   `json:"timestamp"`
}

func NewEvent(eventType, groupID string, data interface{}) Event {
    return Event{
        Type:      eventType,
        Data:      data,
        GroupID:   groupID,
        Timestamp: time.Now().UTC(),
    }
}

// OnlineStatusData is the payload of an online_status event.
type OnlineStatusData struct {
    GroupID            string              `json:"group_id"`
    OnlineParticipants []OnlineParticipant `json:"online_participants"`
    TotalOnline        int                 `json:"total_online"`
    LastUpdated        time.Time           `json:"last_updated"`
}

// TurnUpdateData is the payload of a turn_update event.
type TurnUpdateData struct {
    GameID          string `json:"game_id"`
    PaperID         string `json:"paper_id,omitempty"`
    Action          string `json:"action"`
    NextParticipant string `json:"next_participant,omitempty"`
    GameComplete    bool   `json:"game_complete"`
}

// ConnectedData is the payload of the synthetic connected event sent to a
// single connection right after subscribe.
type ConnectedData struct {
    ParticipantID string `json:"participant_id"`
    GroupID       string `json:"group_id"`
    Message       string `json:"message"`
}
