package handlers

import (
    "context"
    "fmt"
    "log"
    "net/http"

    "github.com/gorilla/mux"

    "github.com/inkround/inkround-backend/pkg/responses"
    "github.com/inkround/inkround-backend/utils"
)

// GroupEvents is the SSE endpoint: it registers a hub connection for the
// group and streams serialized events until the client goes away. The
// stream token travels as a query parameter.
func (h *Handler) GroupEvents(w http.ResponseWriter, r *http.Request) {
    groupID := mux.Vars(r)["groupID"]

    claims, err := ValidateStreamToken(h.JWTSecret, r.URL.Query().Get("token"))
    if err != nil {
        utils.HandleError(w, responses.UnauthorizedError{Msg: "Invalid or missing stream token."})
        return
    }
    if claims.GroupID != groupID {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Access denied to this group."})
        return
    }

    flusher, ok := w.(http.Flusher)
    if !ok {
        utils.HandleError(w, responses.InternalServerError{Msg: "Streaming unsupported."})
        return
    }

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    w.Header().Set("Access-Control-Allow-Origin", "*")
    w.WriteHeader(http.StatusOK)
    flusher.Flush()

    conn := h.Hub.Subscribe(groupID, claims.ParticipantID)
    defer func() {
        h.Hub.Unsubscribe(conn)
        // The request context is gone by now; announce the departure anyway.
        h.broadcastOnlineStatus(context.Background(), groupID)
    }()

    // The newcomer shows up for everyone else as an online-status refresh,
    // not a distinct "joined" event.
    h.broadcastOnlineStatus(r.Context(), groupID)

    for {
        select {
        case <-r.Context().Done():
            return
        case payload, open := <-conn.Send():
            if !open {
                return
            }
            if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
                log.Printf("Error writing to SSE connection %s: %v", conn.ID, err)
                return
            }
            flusher.Flush()
        }
    }
}
