package main

import (
    "context"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"

    "github.com/inkround/inkround-backend/game"
    "github.com/inkround/inkround-backend/handlers"
    "github.com/inkround/inkround-backend/hub"
    "github.com/inkround/inkround-backend/pkg/config"
    "github.com/inkround/inkround-backend/presence"
    "github.com/inkround/inkround-backend/repository"
    "github.com/inkround/inkround-backend/roster"
)

func main() {
    if err := godotenv.Load(); err != nil {
        log.Println("No .env file loaded:", err)
    }
    cfg := config.LoadConfig()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // Postgres backs sessions, games and the roster; without it everything
    // runs on the in-memory stores (single-process state either way).
    var sessionStore presence.SessionStore
    var gameStore game.Store
    var groupRoster roster.Roster

    db, err := repository.ConnectToPostgreSQL(cfg)
    if err != nil {
        log.Printf("PostgreSQL unavailable, using in-memory stores: %v", err)
        sessionStore = repository.NewMemorySessionStore()
        gameStore = repository.NewMemoryGameStore()
        groupRoster = roster.NewMemoryRoster()
    } else {
        defer db.Close()
        if err := repository.EnsureSchema(db); err != nil {
            log.Fatalln("Error ensuring schema:", err)
        }
        sessionStore = repository.NewPostgresSessionStore(db)
        gameStore = repository.NewPostgresGameStore(db)
        groupRoster = repository.NewPostgresRoster(db)
    }

    var archive *repository.MongoArchive
    var archiver game.Archiver
    var fetcher handlers.ArchiveFetcher
    if cfg.MongoURI != "" {
        client, err := repository.ConnectMongoDB(cfg.MongoURI)
        if err != nil {
            log.Println("MongoDB unavailable, transcripts will not be archived:", err)
        } else {
            defer client.Disconnect(context.Background())
            archive = repository.NewMongoArchive(client)
            archiver = archive
            fetcher = archive
        }
    }

    tracker := presence.NewTracker(sessionStore, cfg.OnlineStatusTimeout)
    eventHub := hub.New(cfg.OnlineStatusTimeout)
    coordinator := game.NewCoordinator(gameStore, groupRoster, eventHub, archiver)

    startPeriodicTasks(ctx, cfg, tracker, eventHub)

    handler := &handlers.Handler{
        Tracker:     tracker,
        Hub:         eventHub,
        Coordinator: coordinator,
        Roster:      groupRoster,
        Archive:     fetcher,
        JWTSecret:   cfg.JWTSecret,
    }

    srv := &http.Server{
        Addr:    ":" + cfg.Port,
        Handler: handlers.NewRouter(handler),
    }

    go func() {
        log.Println("Server running on http://localhost:" + cfg.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalln(err)
        }
    }()

    <-ctx.Done()
    log.Println("Shutting down")

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.Println("Shutdown error:", err)
    }
}

// startPeriodicTasks owns the three sweeps: keep-alives to every connection,
// stale-connection pruning at twice the heartbeat interval, and expired
// session cleanup. All stop with the process context.
func startPeriodicTasks(ctx context.Context, cfg *config.Config, tracker *presence.Tracker, eventHub *hub.Hub) {
    go runEvery(ctx, cfg.SSEHeartbeatInterval, eventHub.HeartbeatAll)

    go runEvery(ctx, 2*cfg.SSEHeartbeatInterval, func() {
        eventHub.SweepStale()
    })

    go runEvery(ctx, cfg.SessionSweepInterval, func() {
        cleaned, err := tracker.SweepExpired(ctx)
        if err != nil {
            log.Println("Error sweeping sessions:", err)
            return
        }
        if cleaned > 0 {
            log.Printf("Cleaned up %d expired sessions", cleaned)
        }
    })
}

func runEvery(ctx context.Context, interval time.Duration, task func()) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            task()
        }
    }
}
