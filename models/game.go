package models

import "time"

type GameStatus string

const (
    GameSetup     GameStatus = "setup"
    GameActive    GameStatus = "active"
    GamePaused    GameStatus = "paused"
    GameCompleted GameStatus = "completed"
)

// GameInstance is one round-robin paper game. TurnOrder is fixed at start
// time from the group membership, in insertion order.
type GameInstance struct {
    ID        string     `json:"id"`
    GroupID   string     `json:"group_id"`
    Status    GameStatus `json:"status"`
    TurnOrder []string   `json:"turn_order"`
    CreatedAt time.Time  `json:"created_at"`
}

// Paper is one sheet circulating through the turn order. StartIndex is the
// position of the starting participant in the game's turn order; the holder
// of turn k is turn_order[(StartIndex + k - 1) mod N].
type Paper struct {
    ID         string    `json:"paper_id"`
    GameID     string    `json:"game_id"`
    StartedBy  string    `json:"started_by"`
    StartIndex int       `json:"start_index"`
    CreatedAt  time.Time `json:"created_at"`
}

// Turn is an append-only line on a paper. Turn numbers start at 1 and are
// contiguous per paper. Turn 1 is the seed written at initialize time with
// empty content, attributed to the starting participant.
type Turn struct {
    ID            string    `json:"id"`
    GameID        string    `json:"game_id"`
    PaperID       string    `json:"paper_id"`
    ParticipantID string    `json:"participant_id"`
    TurnNumber    int       `json:"turn_number"`
    Content       string    `json:"content"`
    IsSkip        bool      `json:"is_skip"`
    CreatedAt     time.Time `json:"created_at"`
}

// SkipContent is the sentinel stored for skipped turns.
const SkipContent = "SKIP"

// CurrentPaper describes the paper waiting on the caller, if any.
type CurrentPaper struct {
    PaperID      string `json:"paper_id"`
    PreviousLine string `json:"previous_line,omitempty"`
    TurnNumber   int    `json:"turn_number"`
}

// PaperSummary is the caller's view of a paper they started.
type PaperSummary struct {
    PaperID    string `json:"paper_id"`
    TotalTurns int    `json:"total_turns"`
    IsComplete bool   `json:"is_complete"`
}

// GameStateView is what gameState returns for one participant.
type GameStateView struct {
    IsMyTurn     bool           `json:"is_my_turn"`
    CurrentPaper *CurrentPaper  `json:"current_paper,omitempty"`
    WaitingFor   string         `json:"waiting_for,omitempty"`
    MyPapers     []PaperSummary `json:"my_papers"`
}

// PaperLine is one transcript line of a finished paper.
type PaperLine struct {
    ParticipantName string    `json:"participant_name"`
    Content         string    `json:"content"`
    TurnNumber      int       `json:"turn_number"`
    IsSkip          bool      `json:"is_skip"`
    CreatedAt       time.Time `json:"created_at"`
}

// CompletedPaper is a full transcript, ordered by turn number.
type CompletedPaper struct {
    PaperID string      `json:"paper_id"`
    Lines   []PaperLine `json:"lines"`
}
