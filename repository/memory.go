package repository

import (
    "context"
    "sync"
    "time"

    "github.com/inkround/inkround-backend/models"
)

// In-memory stores back the same interfaces as the Postgres ones; they are
// the default when no database is configured, and what the tests run on.

type MemorySessionStore struct {
    mu       sync.Mutex
    sessions map[string]models.Session // keyed by token
}

func NewMemorySessionStore() *MemorySessionStore {
    return &MemorySessionStore{sessions: make(map[string]models.Session)}
}

func (s *MemorySessionStore) Insert(_ context.Context, session models.Session) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.sessions[session.Token] = session
    return nil
}

func (s *MemorySessionStore) Touch(_ context.Context, token string, now time.Time) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    session, ok := s.sessions[token]
    if !ok {
        return false, nil
    }
    session.LastSeen = now
    s.sessions[token] = session
    return true, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.sessions[token]; !ok {
        return false, nil
    }
    delete(s.sessions, token)
    return true, nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*models.Session, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    session, ok := s.sessions[token]
    if !ok {
        return nil, nil
    }
    return &session, nil
}

func (s *MemorySessionStore) LiveByGroup(_ context.Context, groupID string, cutoff time.Time) ([]models.Session, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var live []models.Session
    for _, session := range s.sessions {
        if session.GroupID == groupID && session.LastSeen.After(cutoff) {
            live = append(live, session)
        }
    }
    return live, nil
}

func (s *MemorySessionStore) CountLive(_ context.Context, participantID, groupID string, cutoff time.Time) (int, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    count := 0
    for _, session := range s.sessions {
        if session.ParticipantID == participantID && session.GroupID == groupID && session.LastSeen.After(cutoff) {
            count++
        }
    }
    return count, nil
}

func (s *MemorySessionStore) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    removed := 0
    for token, session := range s.sessions {
        if !session.LastSeen.After(cutoff) {
            delete(s.sessions, token)
            removed++
        }
    }
    return removed, nil
}

type MemoryGameStore struct {
    mu     sync.Mutex
    games  map[string]models.GameInstance
    papers map[string][]models.Paper // keyed by game id
    turns  map[string][]models.Turn  // keyed by game id
}

func NewMemoryGameStore() *MemoryGameStore {
    return &MemoryGameStore{
        games:  make(map[string]models.GameInstance),
        papers: make(map[string][]models.Paper),
        turns:  make(map[string][]models.Turn),
    }
}

func (s *MemoryGameStore) CreateGame(_ context.Context, game models.GameInstance) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.games[game.ID] = game
    return nil
}

func (s *MemoryGameStore) GetGame(_ context.Context, gameID string) (*models.GameInstance, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    game, ok := s.games[gameID]
    if !ok {
        return nil, nil
    }
    order := make([]string, len(game.TurnOrder))
    copy(order, game.TurnOrder)
    game.TurnOrder = order
    return &game, nil
}

func (s *MemoryGameStore) UpdateGame(_ context.Context, gameID string, status models.GameStatus, turnOrder []string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    game, ok := s.games[gameID]
    if !ok {
        return nil
    }
    game.Status = status
    game.TurnOrder = append([]string(nil), turnOrder...)
    s.games[gameID] = game
    return nil
}

func (s *MemoryGameStore) CreatePaper(_ context.Context, paper models.Paper) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.papers[paper.GameID] = append(s.papers[paper.GameID], paper)
    return nil
}

func (s *MemoryGameStore) PapersByGame(_ context.Context, gameID string) ([]models.Paper, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    papers := make([]models.Paper, len(s.papers[gameID]))
    copy(papers, s.papers[gameID])
    return papers, nil
}

func (s *MemoryGameStore) AppendTurn(_ context.Context, turn models.Turn) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.turns[turn.GameID] = append(s.turns[turn.GameID], turn)
    return nil
}

func (s *MemoryGameStore) TurnsByGame(_ context.Context, gameID string) ([]models.Turn, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    turns := make([]models.Turn, len(s.turns[gameID]))
    copy(turns, s.turns[gameID])
    return turns, nil
}
