package handlers

import (
    "context"
    "log"
    "time"

    "github.com/inkround/inkround-backend/game"
    "github.com/inkround/inkround-backend/hub"
    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/presence"
    "github.com/inkround/inkround-backend/roster"
)

// ArchiveFetcher reads back finished-game transcripts; satisfied by
// *repository.MongoArchive. May be nil when no archive is configured.
type ArchiveFetcher interface {
    FetchArchivedGame(ctx context.Context, gameID string) ([]models.CompletedPaper, error)
}

// Handler bundles the injected core components for the HTTP layer. No
// package-level state: the composition root builds one of these and hands it
// to NewRouter.
type Handler struct {
    Tracker     *presence.Tracker
    Hub         *hub.Hub
    Coordinator *game.Coordinator
    Roster      roster.Roster
    Archive     ArchiveFetcher
    JWTSecret   string
}

// broadcastOnlineStatus recomputes the group's online list and fans it out.
// Joining, leaving and logging out all surface as this one refresh event.
func (h *Handler) broadcastOnlineStatus(ctx context.Context, groupID string) {
    online, err := h.Tracker.OnlineParticipants(ctx, groupID)
    if err != nil {
        log.Printf("Error computing online participants for group %s: %v", groupID, err)
        return
    }
    for i := range online {
        name, err := h.Roster.DisplayName(ctx, online[i].ParticipantID)
        if err == nil {
            online[i].DisplayName = name
        }
    }

    h.Hub.Publish(groupID, models.NewEvent(models.EventOnlineStatus, groupID, models.OnlineStatusData{
        GroupID:            groupID,
        OnlineParticipants: online,
        TotalOnline:        len(online),
        LastUpdated:        time.Now().UTC(),
    }))
}
