package handlers

import (
    "context"
    "encoding/json"
    "log"
    "net/http"

    "github.com/gorilla/websocket"

    hubpkg "github.com/inkround/inkround-backend/hub"
    "github.com/inkround/inkround-backend/pkg/responses"
    "github.com/inkround/inkround-backend/utils"
)

var upgrader = websocket.Upgrader{
    ReadBufferSize:  1024,
    WriteBufferSize: 1024,
    CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is what websocket clients may send upstream. Heartbeats
// refresh both the stream connection and, when a session token is included,
// the presence session.
type clientMessage struct {
    Action       string `json:"action"`
    SessionToken string `json:"session_token,omitempty"`
}

// WsHandler is the websocket flavor of the event stream: same hub, same
// events, but with client-side heartbeats instead of server keep-alive
// probing alone.
func (h *Handler) WsHandler(w http.ResponseWriter, r *http.Request) {
    claims, err := ValidateStreamToken(h.JWTSecret, r.URL.Query().Get("token"))
    if err != nil {
        utils.HandleError(w, responses.UnauthorizedError{Msg: "Invalid or missing stream token."})
        return
    }

    ws, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        log.Println("Upgrade error:", err)
        return
    }

    conn := h.Hub.Subscribe(claims.GroupID, claims.ParticipantID)
    h.broadcastOnlineStatus(r.Context(), claims.GroupID)

    go h.writePump(ws, conn)
    h.readPump(ws, conn)
}

func (h *Handler) writePump(ws *websocket.Conn, conn *hubpkg.Connection) {
    defer ws.Close()

    for payload := range conn.Send() {
        if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
            log.Printf("Error writing to ws connection %s: %v", conn.ID, err)
            break
        }
    }
}

func (h *Handler) readPump(ws *websocket.Conn, conn *hubpkg.Connection) {
    defer func() {
        h.Hub.Unsubscribe(conn)
        ws.Close()
        h.broadcastOnlineStatus(context.Background(), conn.GroupID)
        log.Printf("Participant %s disconnected from group %s", conn.ParticipantID, conn.GroupID)
    }()

    for {
        _, message, err := ws.ReadMessage()
        if err != nil {
            return
        }

        var msg clientMessage
        if err := json.Unmarshal(message, &msg); err != nil {
            continue
        }
        if msg.Action == "heartbeat" {
            h.Hub.Touch(conn)
            if msg.SessionToken != "" {
                if _, err := h.Tracker.Heartbeat(context.Background(), msg.SessionToken); err != nil {
                    log.Printf("Error refreshing session from ws heartbeat: %v", err)
                }
            }
        }
    }
}
