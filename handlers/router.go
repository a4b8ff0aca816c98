package handlers

import (
    "github.com/gorilla/mux"

    "github.com/inkround/inkround-backend/middleware"
)

func NewRouter(h *Handler) *mux.Router {
    r := mux.NewRouter()

    // Public routes: login, session upkeep and the event streams. The
    // streams carry their own signed token; heartbeat and logout treat an
    // unknown token as a benign no-op, so neither goes through SessionAuth.
    r.HandleFunc("/api/groups/{groupID}/login", h.Login).Methods("POST")
    r.HandleFunc("/api/sessions/heartbeat", h.Heartbeat).Methods("POST")
    r.HandleFunc("/api/sessions/logout", h.Logout).Methods("POST")
    r.HandleFunc("/api/groups/{groupID}/events", h.GroupEvents).Methods("GET")
    r.HandleFunc("/ws", h.WsHandler)

    // Secured routes
    secured := r.PathPrefix("/api").Subrouter()
    secured.Use(middleware.SessionAuth(h.Tracker))
    secured.HandleFunc("/groups/{groupID}/online", h.OnlineParticipants).Methods("GET")
    secured.HandleFunc("/groups/{groupID}/events/refresh", h.RefreshOnlineStatus).Methods("POST")
    secured.HandleFunc("/groups/{groupID}/games", h.CreateGame).Methods("POST")
    secured.HandleFunc("/games/{gameID}/start", h.StartGame).Methods("POST")
    secured.HandleFunc("/games/{gameID}/pause", h.PauseGame).Methods("POST")
    secured.HandleFunc("/games/{gameID}/resume", h.ResumeGame).Methods("POST")
    secured.HandleFunc("/games/{gameID}/state", h.GameState).Methods("GET")
    secured.HandleFunc("/games/{gameID}/complete", h.GameComplete).Methods("GET")
    secured.HandleFunc("/games/{gameID}/papers", h.CompletedPapers).Methods("GET")
    secured.HandleFunc("/games/{gameID}/archive", h.ArchivedGame).Methods("GET")
    secured.HandleFunc("/games/{gameID}/papers/{paperID}/submit", h.SubmitLine).Methods("POST")
    secured.HandleFunc("/games/{gameID}/papers/{paperID}/skip", h.SkipTurn).Methods("POST")
    secured.HandleFunc("/admin/events/stats", h.HubStats).Methods("GET")
    secured.HandleFunc("/admin/groups/{groupID}/broadcast", h.Broadcast).Methods("POST")

    return r
}
