package repository

import (
    "context"
    "database/sql"
    "fmt"
    "log"
    "time"

    "github.com/lib/pq"

    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/pkg/config"
    "github.com/inkround/inkround-backend/roster"
)

func ConnectToPostgreSQL(cfg *config.Config) (*sql.DB, error) {
    connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
        cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

    db, err := sql.Open("postgres", connStr)
    if err != nil {
        return nil, err
    }

    if err := db.Ping(); err != nil {
        db.Close()
        return nil, err
    }

    log.Println("Successfully connected to PostgreSQL")
    return db, nil
}

// EnsureSchema creates the tables this core owns. Participants and group
// membership are owned by the external collaborator and only read here.
func EnsureSchema(db *sql.DB) error {
    statements := []string{
        `CREATE TABLE IF NOT EXISTS online_sessions (
            id UUID PRIMARY KEY,
            group_id TEXT NOT NULL,
            participant_id TEXT NOT NULL,
            session_token TEXT UNIQUE NOT NULL,
            device_info TEXT,
            last_seen TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
        `CREATE INDEX IF NOT EXISTS idx_online_sessions_group ON online_sessions (group_id, last_seen)`,
        `CREATE TABLE IF NOT EXISTS games (
            id UUID PRIMARY KEY,
            group_id TEXT NOT NULL,
            status TEXT NOT NULL,
            turn_order TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS papers (
            id TEXT PRIMARY KEY,
            game_id UUID NOT NULL REFERENCES games (id),
            started_by TEXT NOT NULL,
            start_index INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS turns (
            id TEXT PRIMARY KEY,
            game_id UUID NOT NULL REFERENCES games (id),
            paper_id TEXT NOT NULL REFERENCES papers (id),
            participant_id TEXT NOT NULL,
            turn_number INT NOT NULL,
            content TEXT NOT NULL,
            is_skip BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE (paper_id, turn_number)
        )`,
    }
    for _, stmt := range statements {
        if _, err := db.Exec(stmt); err != nil {
            return err
        }
    }
    return nil
}

type PostgresSessionStore struct {
    db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
    return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Insert(ctx context.Context, session models.Session) error {
    _, err := s.db.ExecContext(ctx,
        `INSERT INTO online_sessions (id, group_id, participant_id, session_token, device_info, last_seen, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
        session.ID, session.GroupID, session.ParticipantID, session.Token,
        session.DeviceInfo, session.LastSeen, session.CreatedAt)
    return err
}

func (s *PostgresSessionStore) Touch(ctx context.Context, token string, now time.Time) (bool, error) {
    result, err := s.db.ExecContext(ctx,
        `UPDATE online_sessions SET last_seen = $1 WHERE session_token = $2`, now, token)
    if err != nil {
        return false, err
    }
    changed, err := result.RowsAffected()
    return changed > 0, err
}

func (s *PostgresSessionStore) Delete(ctx context.Context, token string) (bool, error) {
    result, err := s.db.ExecContext(ctx,
        `DELETE FROM online_sessions WHERE session_token = $1`, token)
    if err != nil {
        return false, err
    }
    changed, err := result.RowsAffected()
    return changed > 0, err
}

func (s *PostgresSessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
    var session models.Session
    var deviceInfo sql.NullString
    err := s.db.QueryRowContext(ctx,
        `SELECT id, group_id, participant_id, session_token, device_info, last_seen, created_at
         FROM online_sessions WHERE session_token = $1`, token).
        Scan(&session.ID, &session.GroupID, &session.ParticipantID, &session.Token,
            &deviceInfo, &session.LastSeen, &session.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    session.DeviceInfo = deviceInfo.String
    return &session, nil
}

func (s *PostgresSessionStore) LiveByGroup(ctx context.Context, groupID string, cutoff time.Time) ([]models.Session, error) {
    rows, err := s.db.QueryContext(ctx,
        `SELECT id, group_id, participant_id, session_token, device_info, last_seen, created_at
         FROM online_sessions WHERE group_id = $1 AND last_seen > $2`, groupID, cutoff)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var sessions []models.Session
    for rows.Next() {
        var session models.Session
        var deviceInfo sql.NullString
        if err := rows.Scan(&session.ID, &session.GroupID, &session.ParticipantID, &session.Token,
            &deviceInfo, &session.LastSeen, &session.CreatedAt); err != nil {
            return nil, err
        }
        session.DeviceInfo = deviceInfo.String
        sessions = append(sessions, session)
    }
    return sessions, rows.Err()
}

func (s *PostgresSessionStore) CountLive(ctx context.Context, participantID, groupID string, cutoff time.Time) (int, error) {
    var count int
    err := s.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM online_sessions
         WHERE participant_id = $1 AND group_id = $2 AND last_seen > $3`,
        participantID, groupID, cutoff).Scan(&count)
    return count, err
}

func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
    result, err := s.db.ExecContext(ctx,
        `DELETE FROM online_sessions WHERE last_seen <= $1`, cutoff)
    if err != nil {
        return 0, err
    }
    removed, err := result.RowsAffected()
    return int(removed), err
}

type PostgresGameStore struct {
    db *sql.DB
}

func NewPostgresGameStore(db *sql.DB) *PostgresGameStore {
    return &PostgresGameStore{db: db}
}

func (s *PostgresGameStore) CreateGame(ctx context.Context, game models.GameInstance) error {
    _, err := s.db.ExecContext(ctx,
        `INSERT INTO games (id, group_id, status, turn_order, created_at) VALUES ($1, $2, $3, $4, $5)`,
        game.ID, game.GroupID, game.Status, pq.Array(game.TurnOrder), game.CreatedAt)
    return err
}

func (s *PostgresGameStore) GetGame(ctx context.Context, gameID string) (*models.GameInstance, error) {
    var game models.GameInstance
    err := s.db.QueryRowContext(ctx,
        `SELECT id, group_id, status, turn_order, created_at FROM games WHERE id = $1`, gameID).
        Scan(&game.ID, &game.GroupID, &game.Status, pq.Array(&game.TurnOrder), &game.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &game, nil
}

func (s *PostgresGameStore) UpdateGame(ctx context.Context, gameID string, status models.GameStatus, turnOrder []string) error {
    _, err := s.db.ExecContext(ctx,
        `UPDATE games SET status = $1, turn_order = $2 WHERE id = $3`,
        status, pq.Array(turnOrder), gameID)
    return err
}

func (s *PostgresGameStore) CreatePaper(ctx context.Context, paper models.Paper) error {
    _, err := s.db.ExecContext(ctx,
        `INSERT INTO papers (id, game_id, started_by, start_index, created_at) VALUES ($1, $2, $3, $4, $5)`,
        paper.ID, paper.GameID, paper.StartedBy, paper.StartIndex, paper.CreatedAt)
    return err
}

func (s *PostgresGameStore) PapersByGame(ctx context.Context, gameID string) ([]models.Paper, error) {
    rows, err := s.db.QueryContext(ctx,
        `SELECT id, game_id, started_by, start_index, created_at FROM papers
         WHERE game_id = $1 ORDER BY start_index`, gameID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var papers []models.Paper
    for rows.Next() {
        var paper models.Paper
        if err := rows.Scan(&paper.ID, &paper.GameID, &paper.StartedBy, &paper.StartIndex, &paper.CreatedAt); err != nil {
            return nil, err
        }
        papers = append(papers, paper)
    }
    return papers, rows.Err()
}

func (s *PostgresGameStore) AppendTurn(ctx context.Context, turn models.Turn) error {
    _, err := s.db.ExecContext(ctx,
        `INSERT INTO turns (id, game_id, paper_id, participant_id, turn_number, content, is_skip, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
        turn.ID, turn.GameID, turn.PaperID, turn.ParticipantID,
        turn.TurnNumber, turn.Content, turn.IsSkip, turn.CreatedAt)
    return err
}

func (s *PostgresGameStore) TurnsByGame(ctx context.Context, gameID string) ([]models.Turn, error) {
    rows, err := s.db.QueryContext(ctx,
        `SELECT id, game_id, paper_id, participant_id, turn_number, content, is_skip, created_at
         FROM turns WHERE game_id = $1 ORDER BY paper_id, turn_number`, gameID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var turns []models.Turn
    for rows.Next() {
        var turn models.Turn
        if err := rows.Scan(&turn.ID, &turn.GameID, &turn.PaperID, &turn.ParticipantID,
            &turn.TurnNumber, &turn.Content, &turn.IsSkip, &turn.CreatedAt); err != nil {
            return nil, err
        }
        turns = append(turns, turn)
    }
    return turns, rows.Err()
}

// PostgresRoster reads the membership tables owned by the workshop CRUD
// collaborator.
type PostgresRoster struct {
    db *sql.DB
}

func NewPostgresRoster(db *sql.DB) *PostgresRoster {
    return &PostgresRoster{db: db}
}

func (r *PostgresRoster) Members(ctx context.Context, groupID string) ([]roster.Member, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT gp.participant_id, p.display_name, gp.role = 'facilitator'
         FROM group_participants gp
         JOIN participants p ON p.id = gp.participant_id
         WHERE gp.group_id = $1
         ORDER BY gp.created_at`, groupID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var members []roster.Member
    for rows.Next() {
        var m roster.Member
        if err := rows.Scan(&m.ParticipantID, &m.DisplayName, &m.Facilitator); err != nil {
            return nil, err
        }
        members = append(members, m)
    }
    return members, rows.Err()
}

func (r *PostgresRoster) IsMember(ctx context.Context, participantID, groupID string) (bool, error) {
    var exists bool
    err := r.db.QueryRowContext(ctx,
        `SELECT EXISTS (SELECT 1 FROM group_participants WHERE participant_id = $1 AND group_id = $2)`,
        participantID, groupID).Scan(&exists)
    return exists, err
}

func (r *PostgresRoster) IsFacilitator(ctx context.Context, participantID, groupID string) (bool, error) {
    var exists bool
    err := r.db.QueryRowContext(ctx,
        `SELECT EXISTS (SELECT 1 FROM group_participants
         WHERE participant_id = $1 AND group_id = $2 AND role = 'facilitator')`,
        participantID, groupID).Scan(&exists)
    return exists, err
}

func (r *PostgresRoster) DisplayName(ctx context.Context, participantID string) (string, error) {
    var name string
    err := r.db.QueryRowContext(ctx,
        `SELECT display_name FROM participants WHERE id = $1`, participantID).Scan(&name)
    if err == sql.ErrNoRows {
        return "", nil
    }
    return name, err
}
