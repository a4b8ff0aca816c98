// Package game runs the round-robin paper game: papers circulate through a
// fixed turn order, one line per participant per paper, until every paper has
// been touched by everyone.
package game

import (
    "context"
    "log"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/roster"
    "github.com/inkround/inkround-backend/utils"
)

// Store persists game instances, papers and the append-only turn log.
// Implementations live in repository.
type Store interface {
    CreateGame(ctx context.Context, game models.GameInstance) error
    GetGame(ctx context.Context, gameID string) (*models.GameInstance, error)
    UpdateGame(ctx context.Context, gameID string, status models.GameStatus, turnOrder []string) error
    CreatePaper(ctx context.Context, paper models.Paper) error
    PapersByGame(ctx context.Context, gameID string) ([]models.Paper, error)
    AppendTurn(ctx context.Context, turn models.Turn) error
    TurnsByGame(ctx context.Context, gameID string) ([]models.Turn, error)
}

// Publisher announces turn changes; satisfied by *hub.Hub.
type Publisher interface {
    Publish(groupID string, event models.Event)
}

// Archiver stores finished-game transcripts; satisfied by the Mongo
// repository. Optional.
type Archiver interface {
    ArchiveGame(ctx context.Context, game models.GameInstance, papers []models.CompletedPaper) error
}

type Coordinator struct {
    store     Store
    roster    roster.Roster
    publisher Publisher
    archiver  Archiver

    // One mutex per game serializes the check-then-append step, so two
    // concurrent submissions cannot both observe "it's my turn".
    mu    sync.Mutex
    locks map[string]*sync.Mutex
}

func NewCoordinator(store Store, r roster.Roster, publisher Publisher, archiver Archiver) *Coordinator {
    return &Coordinator{
        store:     store,
        roster:    r,
        publisher: publisher,
        archiver:  archiver,
        locks:     make(map[string]*sync.Mutex),
    }
}

func (c *Coordinator) gameLock(gameID string) *sync.Mutex {
    c.mu.Lock()
    defer c.mu.Unlock()
    lock, ok := c.locks[gameID]
    if !ok {
        lock = &sync.Mutex{}
        c.locks[gameID] = lock
    }
    return lock
}

func (c *Coordinator) publish(groupID string, event models.Event) {
    if c.publisher != nil {
        c.publisher.Publish(groupID, event)
    }
}

// CreateGame registers a new instance in setup state.
func (c *Coordinator) CreateGame(ctx context.Context, groupID string) (*models.GameInstance, error) {
    game := models.GameInstance{
        ID:        uuid.New().String(),
        GroupID:   groupID,
        Status:    models.GameSetup,
        CreatedAt: time.Now().UTC(),
    }
    if err := c.store.CreateGame(ctx, game); err != nil {
        return nil, err
    }
    return &game, nil
}

// Game looks up a single instance.
func (c *Coordinator) Game(ctx context.Context, gameID string) (*models.GameInstance, error) {
    game, err := c.store.GetGame(ctx, gameID)
    if err != nil {
        return nil, err
    }
    if game == nil {
        return nil, ErrGameNotFound
    }
    return game, nil
}

// InitResult is what Initialize hands back for the caller to announce.
type InitResult struct {
    Papers    []models.Paper `json:"papers"`
    TurnOrder []string       `json:"turn_order"`
}

// Initialize freezes the turn order from the current group membership and
// creates one paper per participant. Each paper gets a seed turn (number 1,
// empty content) attributed to its starting participant: the starter spends
// their slot on their own paper and writing begins at turn 2 with the next
// participant in order.
func (c *Coordinator) Initialize(ctx context.Context, gameID string) (*InitResult, error) {
    lock := c.gameLock(gameID)
    lock.Lock()
    defer lock.Unlock()

    game, err := c.store.GetGame(ctx, gameID)
    if err != nil {
        return nil, err
    }
    if game == nil {
        return nil, ErrGameNotFound
    }
    if game.Status != models.GameSetup {
        return nil, ErrInvalidTransition
    }

    members, err := c.roster.Members(ctx, game.GroupID)
    if err != nil {
        return nil, err
    }
    if len(members) == 0 {
        return nil, ErrNoParticipants
    }

    turnOrder := make([]string, len(members))
    for i, m := range members {
        turnOrder[i] = m.ParticipantID
    }

    now := time.Now().UTC()
    papers := make([]models.Paper, 0, len(members))
    for i, m := range members {
        paperID, err := utils.GenerateShortID(6)
        if err != nil {
            return nil, err
        }
        paper := models.Paper{
            ID:         paperID,
            GameID:     gameID,
            StartedBy:  m.ParticipantID,
            StartIndex: i,
            CreatedAt:  now,
        }
        if err := c.store.CreatePaper(ctx, paper); err != nil {
            return nil, err
        }

        seedID, err := utils.GenerateShortID(8)
        if err != nil {
            return nil, err
        }
        seed := models.Turn{
            ID:            seedID,
            GameID:        gameID,
            PaperID:       paperID,
            ParticipantID: m.ParticipantID,
            TurnNumber:    1,
            Content:       "",
            IsSkip:        false,
            CreatedAt:     now,
        }
        if err := c.store.AppendTurn(ctx, seed); err != nil {
            return nil, err
        }
        papers = append(papers, paper)
    }

    if err := c.store.UpdateGame(ctx, gameID, models.GameActive, turnOrder); err != nil {
        return nil, err
    }

    log.Printf("Game %s initialized with %d papers", gameID, len(papers))
    c.publish(game.GroupID, models.NewEvent(models.EventTurnUpdate, game.GroupID, models.TurnUpdateData{
        GameID: gameID,
        Action: "initialized",
    }))
    return &InitResult{Papers: papers, TurnOrder: turnOrder}, nil
}

// Pause suspends an active game; submissions are rejected until Resume.
func (c *Coordinator) Pause(ctx context.Context, gameID string) error {
    return c.transition(ctx, gameID, models.GameActive, models.GamePaused)
}

// Resume reactivates a paused game.
func (c *Coordinator) Resume(ctx context.Context, gameID string) error {
    return c.transition(ctx, gameID, models.GamePaused, models.GameActive)
}

func (c *Coordinator) transition(ctx context.Context, gameID string, from, to models.GameStatus) error {
    lock := c.gameLock(gameID)
    lock.Lock()
    defer lock.Unlock()

    game, err := c.store.GetGame(ctx, gameID)
    if err != nil {
        return err
    }
    if game == nil {
        return ErrGameNotFound
    }
    if game.Status != from {
        return ErrInvalidTransition
    }
    if err := c.store.UpdateGame(ctx, gameID, to, game.TurnOrder); err != nil {
        return err
    }
    c.publish(game.GroupID, models.NewEvent(models.EventTurnUpdate, game.GroupID, models.TurnUpdateData{
        GameID: gameID,
        Action: string(to),
    }))
    return nil
}

// GameState computes the caller's view: the paper waiting on them (if any),
// who they are waiting for otherwise, and the papers they started.
func (c *Coordinator) GameState(ctx context.Context, gameID, participantID string) (*models.GameStateView, error) {
    game, papers, turnsByPaper, err := c.loadState(ctx, gameID)
    if err != nil {
        return nil, err
    }
    return c.computeView(ctx, game, papers, turnsByPaper, participantID)
}

// SubmitLine appends the caller's line to the paper currently waiting on
// them. Returns the participant whose turn follows, for the caller to
// announce. The check-then-append runs under the game lock.
func (c *Coordinator) SubmitLine(ctx context.Context, gameID, participantID, paperID, content string) (string, error) {
    return c.appendTurn(ctx, gameID, participantID, paperID, content, false)
}

// SkipTurn consumes the caller's slot on the paper without content. A skip is
// permanent and advances the paper exactly like a submission.
func (c *Coordinator) SkipTurn(ctx context.Context, gameID, participantID, paperID string) (string, error) {
    return c.appendTurn(ctx, gameID, participantID, paperID, models.SkipContent, true)
}

func (c *Coordinator) appendTurn(ctx context.Context, gameID, participantID, paperID, content string, isSkip bool) (string, error) {
    lock := c.gameLock(gameID)
    lock.Lock()
    defer lock.Unlock()

    game, papers, turnsByPaper, err := c.loadState(ctx, gameID)
    if err != nil {
        return "", err
    }
    if game.Status != models.GameActive {
        return "", ErrGameNotActive
    }

    view, err := c.computeView(ctx, game, papers, turnsByPaper, participantID)
    if err != nil {
        return "", err
    }
    if view.CurrentPaper == nil || view.CurrentPaper.PaperID != paperID {
        return "", ErrNotYourTurn
    }

    turnID, err := utils.GenerateShortID(8)
    if err != nil {
        return "", err
    }
    turn := models.Turn{
        ID:            turnID,
        GameID:        gameID,
        PaperID:       paperID,
        ParticipantID: participantID,
        TurnNumber:    view.CurrentPaper.TurnNumber,
        Content:       content,
        IsSkip:        isSkip,
        CreatedAt:     time.Now().UTC(),
    }
    if err := c.store.AppendTurn(ctx, turn); err != nil {
        return "", err
    }
    turnsByPaper[paperID] = append(turnsByPaper[paperID], turn)

    next := nextInOrder(game.TurnOrder, participantID)

    if allPapersComplete(len(game.TurnOrder), papers, turnsByPaper) {
        if err := c.store.UpdateGame(ctx, gameID, models.GameCompleted, game.TurnOrder); err != nil {
            return "", err
        }
        log.Printf("Game %s completed", gameID)
        c.archiveCompleted(ctx, *game)
        c.publish(game.GroupID, models.NewEvent(models.EventTurnUpdate, game.GroupID, models.TurnUpdateData{
            GameID:       gameID,
            PaperID:      paperID,
            Action:       "completed",
            GameComplete: true,
        }))
        return next, nil
    }

    action := "line_submitted"
    if isSkip {
        action = "turn_skipped"
    }
    c.publish(game.GroupID, models.NewEvent(models.EventTurnUpdate, game.GroupID, models.TurnUpdateData{
        GameID:          gameID,
        PaperID:         paperID,
        Action:          action,
        NextParticipant: next,
    }))
    return next, nil
}

// IsComplete reports whether every paper has as many turns as there are
// participants in the turn order.
func (c *Coordinator) IsComplete(ctx context.Context, gameID string) (bool, error) {
    game, papers, turnsByPaper, err := c.loadState(ctx, gameID)
    if err != nil {
        return false, err
    }
    if len(game.TurnOrder) == 0 {
        return false, nil
    }
    return allPapersComplete(len(game.TurnOrder), papers, turnsByPaper), nil
}

// CompletedPapers returns the full transcripts for facilitators, one entry
// per paper with lines ordered by turn number. The seed line (turn 1, empty
// content) is included.
func (c *Coordinator) CompletedPapers(ctx context.Context, gameID string) ([]models.CompletedPaper, error) {
    _, papers, turnsByPaper, err := c.loadState(ctx, gameID)
    if err != nil {
        return nil, err
    }

    names := make(map[string]string)
    result := make([]models.CompletedPaper, 0, len(papers))
    for _, paper := range papers {
        turns := turnsByPaper[paper.ID]
        lines := make([]models.PaperLine, 0, len(turns))
        for _, t := range turns {
            name, ok := names[t.ParticipantID]
            if !ok {
                name, err = c.roster.DisplayName(ctx, t.ParticipantID)
                if err != nil {
                    return nil, err
                }
                if name == "" {
                    name = "Unknown"
                }
                names[t.ParticipantID] = name
            }
            lines = append(lines, models.PaperLine{
                ParticipantName: name,
                Content:         t.Content,
                TurnNumber:      t.TurnNumber,
                IsSkip:          t.IsSkip,
                CreatedAt:       t.CreatedAt,
            })
        }
        result = append(result, models.CompletedPaper{PaperID: paper.ID, Lines: lines})
    }
    return result, nil
}

func (c *Coordinator) archiveCompleted(ctx context.Context, game models.GameInstance) {
    if c.archiver == nil {
        return
    }
    transcripts, err := c.CompletedPapers(ctx, game.ID)
    if err != nil {
        log.Printf("Error building transcripts for game %s: %v", game.ID, err)
        return
    }
    game.Status = models.GameCompleted
    if err := c.archiver.ArchiveGame(ctx, game, transcripts); err != nil {
        log.Printf("Failed to archive game %s: %v", game.ID, err)
    }
}

func (c *Coordinator) loadState(ctx context.Context, gameID string) (*models.GameInstance, []models.Paper, map[string][]models.Turn, error) {
    game, err := c.store.GetGame(ctx, gameID)
    if err != nil {
        return nil, nil, nil, err
    }
    if game == nil {
        return nil, nil, nil, ErrGameNotFound
    }

    papers, err := c.store.PapersByGame(ctx, gameID)
    if err != nil {
        return nil, nil, nil, err
    }
    sort.Slice(papers, func(i, j int) bool {
        return papers[i].StartIndex < papers[j].StartIndex
    })

    turns, err := c.store.TurnsByGame(ctx, gameID)
    if err != nil {
        return nil, nil, nil, err
    }
    turnsByPaper := make(map[string][]models.Turn)
    for _, t := range turns {
        turnsByPaper[t.PaperID] = append(turnsByPaper[t.PaperID], t)
    }
    for _, paperTurns := range turnsByPaper {
        sort.Slice(paperTurns, func(i, j int) bool {
            return paperTurns[i].TurnNumber < paperTurns[j].TurnNumber
        })
    }
    return game, papers, turnsByPaper, nil
}

// computeView resolves turn ownership purely from turn counts: the holder of
// a paper's next turn is turn_order[(start_index + turn_count) mod N].
func (c *Coordinator) computeView(ctx context.Context, game *models.GameInstance, papers []models.Paper, turnsByPaper map[string][]models.Turn, participantID string) (*models.GameStateView, error) {
    order := game.TurnOrder
    n := len(order)
    if indexOf(order, participantID) == -1 {
        return nil, ErrNotInGame
    }

    view := &models.GameStateView{MyPapers: []models.PaperSummary{}}
    waitingForID := ""

    for _, paper := range papers {
        turns := turnsByPaper[paper.ID]
        count := len(turns)

        if paper.StartedBy == participantID {
            view.MyPapers = append(view.MyPapers, models.PaperSummary{
                PaperID:    paper.ID,
                TotalTurns: count,
                IsComplete: count >= n,
            })
        }
        if count >= n {
            continue // paper is complete, nobody holds it
        }

        holder := order[(paper.StartIndex+count)%n]
        if holder == participantID {
            if view.CurrentPaper == nil {
                view.CurrentPaper = &models.CurrentPaper{
                    PaperID:      paper.ID,
                    PreviousLine: lastWrittenLine(turns),
                    TurnNumber:   count + 1,
                }
                view.IsMyTurn = true
            }
        } else if waitingForID == "" {
            waitingForID = holder
        }
    }

    if !view.IsMyTurn && waitingForID != "" {
        name, err := c.roster.DisplayName(ctx, waitingForID)
        if err != nil {
            return nil, err
        }
        view.WaitingFor = name
    }
    return view, nil
}

// lastWrittenLine is the most recent real line: skips and the empty seed
// don't count.
func lastWrittenLine(turns []models.Turn) string {
    for i := len(turns) - 1; i >= 0; i-- {
        if !turns[i].IsSkip && turns[i].Content != "" {
            return turns[i].Content
        }
    }
    return ""
}

func allPapersComplete(n int, papers []models.Paper, turnsByPaper map[string][]models.Turn) bool {
    if len(papers) == 0 {
        return false
    }
    for _, paper := range papers {
        if len(turnsByPaper[paper.ID]) < n {
            return false
        }
    }
    return true
}

func nextInOrder(order []string, participantID string) string {
    idx := indexOf(order, participantID)
    if idx == -1 || len(order) == 0 {
        return ""
    }
    return order[(idx+1)%len(order)]
}

func indexOf(order []string, participantID string) int {
    for i, id := range order {
        if id == participantID {
            return i
        }
    }
    return -1
}
