package game

import (
    "context"
    "errors"
    "sync"
    "testing"

    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/repository"
    "github.com/inkround/inkround-backend/roster"
)

type capturePublisher struct {
    mu     sync.Mutex
    events []models.Event
}

func (p *capturePublisher) Publish(_ string, event models.Event) {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, event)
}

func (p *capturePublisher) last() *models.Event {
    p.mu.Lock()
    defer p.mu.Unlock()
    if len(p.events) == 0 {
        return nil
    }
    event := p.events[len(p.events)-1]
    return &event
}

type captureArchiver struct {
    mu     sync.Mutex
    games  []string
    papers int
}

func (a *captureArchiver) ArchiveGame(_ context.Context, game models.GameInstance, papers []models.CompletedPaper) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    a.games = append(a.games, game.ID)
    a.papers = len(papers)
    return nil
}

func setupGame(t *testing.T, participants ...string) (*Coordinator, *models.GameInstance, *capturePublisher, *captureArchiver) {
    t.Helper()

    groupRoster := roster.NewMemoryRoster()
    for _, p := range participants {
        groupRoster.AddMember("g1", roster.Member{ParticipantID: p, DisplayName: "name-" + p})
    }

    publisher := &capturePublisher{}
    archiver := &captureArchiver{}
    coordinator := NewCoordinator(repository.NewMemoryGameStore(), groupRoster, publisher, archiver)

    instance, err := coordinator.CreateGame(context.Background(), "g1")
    if err != nil {
        t.Fatalf("createGame failed: %v", err)
    }
    return coordinator, instance, publisher, archiver
}

// paperStartedBy finds the paper seeded by the given participant.
func paperStartedBy(t *testing.T, result *InitResult, participantID string) models.Paper {
    t.Helper()
    for _, paper := range result.Papers {
        if paper.StartedBy == participantID {
            return paper
        }
    }
    t.Fatalf("no paper started by %s", participantID)
    return models.Paper{}
}

func TestInitializeCreatesOnePaperPerParticipant(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, err := c.Initialize(ctx, instance.ID)
    if err != nil {
        t.Fatalf("initialize failed: %v", err)
    }
    if len(result.Papers) != 3 {
        t.Fatalf("expected 3 papers, got %d", len(result.Papers))
    }
    if len(result.TurnOrder) != 3 || result.TurnOrder[0] != "a" || result.TurnOrder[2] != "c" {
        t.Fatalf("turn order not preserved: %v", result.TurnOrder)
    }

    got, err := c.Game(ctx, instance.ID)
    if err != nil {
        t.Fatalf("game lookup failed: %v", err)
    }
    if got.Status != models.GameActive {
        t.Fatalf("game should be active after initialize, got %s", got.Status)
    }

    // Starting again is not a valid transition.
    if _, err := c.Initialize(ctx, instance.ID); !errors.Is(err, ErrInvalidTransition) {
        t.Fatalf("expected ErrInvalidTransition, got %v", err)
    }
}

func TestInitializeRequiresParticipants(t *testing.T) {
    c, instance, _, _ := setupGame(t)
    if _, err := c.Initialize(context.Background(), instance.ID); !errors.Is(err, ErrNoParticipants) {
        t.Fatalf("expected ErrNoParticipants, got %v", err)
    }
}

// Right after initialize, a participant must wait on their own paper and
// hold the paper started by their predecessor in the turn order.
func TestInitialHoldersAreOffset(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, err := c.Initialize(ctx, instance.ID)
    if err != nil {
        t.Fatalf("initialize failed: %v", err)
    }

    state, err := c.GameState(ctx, instance.ID, "a")
    if err != nil {
        t.Fatalf("gameState failed: %v", err)
    }
    if !state.IsMyTurn || state.CurrentPaper == nil {
        t.Fatalf("a should hold a paper right after initialize: %+v", state)
    }
    if own := paperStartedBy(t, result, "a"); state.CurrentPaper.PaperID == own.ID {
        t.Fatalf("a must not hold the paper a started")
    }
    if pred := paperStartedBy(t, result, "c"); state.CurrentPaper.PaperID != pred.ID {
        t.Fatalf("a should hold c's paper, got %s", state.CurrentPaper.PaperID)
    }
    if state.CurrentPaper.TurnNumber != 2 {
        t.Fatalf("writing starts at turn 2, got %d", state.CurrentPaper.TurnNumber)
    }
    if len(state.MyPapers) != 1 || state.MyPapers[0].TotalTurns != 1 || state.MyPapers[0].IsComplete {
        t.Fatalf("unexpected myPapers: %+v", state.MyPapers)
    }
}

func TestSubmitLineAdvancesPaper(t *testing.T) {
    c, instance, publisher, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, _ := c.Initialize(ctx, instance.ID)
    paper := paperStartedBy(t, result, "c") // held by a

    next, err := c.SubmitLine(ctx, instance.ID, "a", paper.ID, "first line")
    if err != nil {
        t.Fatalf("submit failed: %v", err)
    }
    if next != "b" {
        t.Fatalf("expected next participant b, got %s", next)
    }

    event := publisher.last()
    if event == nil || event.Type != models.EventTurnUpdate {
        t.Fatalf("submit must publish a turn_update, got %+v", event)
    }

    // The paper moved on: a no longer holds it, b does.
    state, _ := c.GameState(ctx, instance.ID, "b")
    if state.CurrentPaper == nil {
        t.Fatalf("b should hold a paper")
    }
    stateA, _ := c.GameState(ctx, instance.ID, "a")
    if stateA.CurrentPaper != nil {
        t.Fatalf("a should have nothing to write: %+v", stateA.CurrentPaper)
    }

    // The new holder sees the submitted line as context.
    stateOnPaper, _ := c.GameState(ctx, instance.ID, "b")
    if stateOnPaper.CurrentPaper.PaperID == paper.ID && stateOnPaper.CurrentPaper.PreviousLine != "first line" {
        t.Fatalf("previous line not surfaced: %+v", stateOnPaper.CurrentPaper)
    }
}

func TestSubmitOnWrongPaperIsRejected(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, _ := c.Initialize(ctx, instance.ID)
    held := paperStartedBy(t, result, "c")
    own := paperStartedBy(t, result, "a")

    if _, err := c.SubmitLine(ctx, instance.ID, "a", own.ID, "nope"); !errors.Is(err, ErrNotYourTurn) {
        t.Fatalf("submitting on own fresh paper must fail, got %v", err)
    }
    if _, err := c.SubmitLine(ctx, instance.ID, "b", held.ID, "nope"); !errors.Is(err, ErrNotYourTurn) {
        t.Fatalf("wrong participant must be rejected, got %v", err)
    }
    if _, err := c.SubmitLine(ctx, instance.ID, "zz", held.ID, "nope"); !errors.Is(err, ErrNotInGame) {
        t.Fatalf("outsider must be rejected, got %v", err)
    }
}

func TestSkipConsumesTurnSlot(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, _ := c.Initialize(ctx, instance.ID)
    paper := paperStartedBy(t, result, "c")

    next, err := c.SkipTurn(ctx, instance.ID, "a", paper.ID)
    if err != nil {
        t.Fatalf("skip failed: %v", err)
    }
    if next != "b" {
        t.Fatalf("skip must advance like a submission, got next=%s", next)
    }

    // A skip is permanent: the slot is spent and a cannot retry.
    if _, err := c.SkipTurn(ctx, instance.ID, "a", paper.ID); !errors.Is(err, ErrNotYourTurn) {
        t.Fatalf("skipped turn must not be retried, got %v", err)
    }

    papers, err := c.CompletedPapers(ctx, instance.ID)
    if err != nil {
        t.Fatalf("completedPapers failed: %v", err)
    }
    for _, p := range papers {
        if p.PaperID != paper.ID {
            continue
        }
        last := p.Lines[len(p.Lines)-1]
        if !last.IsSkip || last.Content != models.SkipContent {
            t.Fatalf("skip line not recorded: %+v", last)
        }
    }
}

func playUntilComplete(t *testing.T, c *Coordinator, gameID string, participants []string) {
    t.Helper()
    ctx := context.Background()
    for round := 0; round < len(participants)*len(participants); round++ {
        progressed := false
        for _, p := range participants {
            state, err := c.GameState(ctx, gameID, p)
            if err != nil {
                t.Fatalf("gameState failed: %v", err)
            }
            if state.CurrentPaper == nil {
                continue
            }
            if _, err := c.SubmitLine(ctx, gameID, p, state.CurrentPaper.PaperID, "line"); err != nil {
                if errors.Is(err, ErrGameNotActive) {
                    return // completed mid-round
                }
                t.Fatalf("submit failed: %v", err)
            }
            progressed = true
        }
        if !progressed {
            return
        }
    }
    t.Fatalf("game did not complete")
}

func TestFullCycleCompletesGame(t *testing.T) {
    c, instance, publisher, archiver := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    if _, err := c.Initialize(ctx, instance.ID); err != nil {
        t.Fatalf("initialize failed: %v", err)
    }
    playUntilComplete(t, c, instance.ID, []string{"a", "b", "c"})

    complete, err := c.IsComplete(ctx, instance.ID)
    if err != nil || !complete {
        t.Fatalf("game should be complete: %v %v", complete, err)
    }
    got, _ := c.Game(ctx, instance.ID)
    if got.Status != models.GameCompleted {
        t.Fatalf("status should be completed, got %s", got.Status)
    }

    event := publisher.last()
    if event == nil {
        t.Fatalf("missing completion event")
    }
    data, ok := event.Data.(models.TurnUpdateData)
    if !ok || !data.GameComplete {
        t.Fatalf("last event should announce completion: %+v", event)
    }

    archiver.mu.Lock()
    archived := len(archiver.games) == 1 && archiver.papers == 3
    archiver.mu.Unlock()
    if !archived {
        t.Fatalf("transcripts should be archived once: %+v", archiver.games)
    }

    // Every paper has exactly N contiguous turns starting at 1, and no
    // further writing is accepted.
    papers, err := c.CompletedPapers(ctx, instance.ID)
    if err != nil {
        t.Fatalf("completedPapers failed: %v", err)
    }
    if len(papers) != 3 {
        t.Fatalf("expected 3 transcripts, got %d", len(papers))
    }
    for _, p := range papers {
        if len(p.Lines) != 3 {
            t.Fatalf("paper %s has %d turns, want 3", p.PaperID, len(p.Lines))
        }
        for i, line := range p.Lines {
            if line.TurnNumber != i+1 {
                t.Fatalf("paper %s has non-contiguous turn numbers: %+v", p.PaperID, p.Lines)
            }
        }
        if _, err := c.SubmitLine(ctx, instance.ID, "a", p.PaperID, "late"); !errors.Is(err, ErrGameNotActive) {
            t.Fatalf("completed game must reject submissions, got %v", err)
        }
    }
}

func TestConcurrentSubmitHasOneWinner(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, _ := c.Initialize(ctx, instance.ID)
    paper := paperStartedBy(t, result, "c") // a's to write

    errs := make(chan error, 2)
    var wg sync.WaitGroup
    for i := 0; i < 2; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _, err := c.SubmitLine(ctx, instance.ID, "a", paper.ID, "racing line")
            errs <- err
        }()
    }
    wg.Wait()
    close(errs)

    var won, lost int
    for err := range errs {
        switch {
        case err == nil:
            won++
        case errors.Is(err, ErrNotYourTurn):
            lost++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    if won != 1 || lost != 1 {
        t.Fatalf("expected exactly one winner, got %d winners / %d losers", won, lost)
    }
}

func TestPausedGameRejectsTurns(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b", "c")
    ctx := context.Background()

    result, _ := c.Initialize(ctx, instance.ID)
    paper := paperStartedBy(t, result, "c")

    if err := c.Pause(ctx, instance.ID); err != nil {
        t.Fatalf("pause failed: %v", err)
    }
    if _, err := c.SubmitLine(ctx, instance.ID, "a", paper.ID, "line"); !errors.Is(err, ErrGameNotActive) {
        t.Fatalf("paused game must reject submissions, got %v", err)
    }
    if err := c.Pause(ctx, instance.ID); !errors.Is(err, ErrInvalidTransition) {
        t.Fatalf("pausing twice must fail, got %v", err)
    }

    if err := c.Resume(ctx, instance.ID); err != nil {
        t.Fatalf("resume failed: %v", err)
    }
    if _, err := c.SubmitLine(ctx, instance.ID, "a", paper.ID, "line"); err != nil {
        t.Fatalf("resumed game must accept submissions: %v", err)
    }
}

func TestWaitingForNamesTheHolder(t *testing.T) {
    c, instance, _, _ := setupGame(t, "a", "b")
    ctx := context.Background()

    result, _ := c.Initialize(ctx, instance.ID)
    held := paperStartedBy(t, result, "b") // a's to write

    if _, err := c.SubmitLine(ctx, instance.ID, "a", held.ID, "done"); err != nil {
        t.Fatalf("submit failed: %v", err)
    }

    // b's paper is now complete; a waits for b to finish the paper a started.
    state, err := c.GameState(ctx, instance.ID, "a")
    if err != nil {
        t.Fatalf("gameState failed: %v", err)
    }
    if state.IsMyTurn {
        t.Fatalf("a should be waiting: %+v", state)
    }
    if state.WaitingFor != "name-b" {
        t.Fatalf("expected to wait for name-b, got %q", state.WaitingFor)
    }
}
