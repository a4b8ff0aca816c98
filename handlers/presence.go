package handlers

import (
    "encoding/json"
    "log"
    "net/http"
    "time"

    "github.com/gorilla/mux"

    "github.com/inkround/inkround-backend/middleware"
    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/pkg/responses"
    "github.com/inkround/inkround-backend/utils"
)

type loginRequest struct {
    ParticipantID string `json:"participant_id"`
    DeviceInfo    string `json:"device_info"`
}

type loginResponse struct {
    SessionToken  string    `json:"session_token"`
    StreamToken   string    `json:"stream_token"`
    IsMultiDevice bool      `json:"is_multi_device"`
    LastSeen      time.Time `json:"last_seen"`
}

// Login creates a session for a group member. Logging in from a second
// device is detected, reported and allowed.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
    groupID := mux.Vars(r)["groupID"]

    var req loginRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
        utils.HandleError(w, responses.BadRequestError{Msg: "participant_id is required."})
        return
    }

    member, err := h.Roster.IsMember(r.Context(), req.ParticipantID, groupID)
    if err != nil {
        log.Printf("Error checking membership: %v", err)
        utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
        return
    }
    if !member {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Not a member of this group."})
        return
    }

    session, multiDevice, err := h.Tracker.Login(r.Context(), req.ParticipantID, groupID, req.DeviceInfo)
    if err != nil {
        log.Printf("Error creating session: %v", err)
        utils.HandleError(w, responses.InternalServerError{Msg: "Failed to create session."})
        return
    }

    streamToken, err := IssueStreamToken(h.JWTSecret, req.ParticipantID, groupID)
    if err != nil {
        utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate stream token."})
        return
    }

    h.broadcastOnlineStatus(r.Context(), groupID)
    utils.HandleSuccess(w, models.SuccessResponse(loginResponse{
        SessionToken:  session.Token,
        StreamToken:   streamToken,
        IsMultiDevice: multiDevice,
        LastSeen:      session.LastSeen,
    }))
}

// Heartbeat refreshes the session. An unknown token is reported with
// active=false, never as an HTTP failure.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
    token := middleware.TokenFromRequest(r)
    if token == "" {
        utils.HandleError(w, responses.BadRequestError{Msg: "Session token required."})
        return
    }

    active, err := h.Tracker.Heartbeat(r.Context(), token)
    if err != nil {
        log.Printf("Error refreshing session: %v", err)
        utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(map[string]bool{"active": active}))
}

// Logout deletes the session. Idempotent: logging out twice reports
// logged_out=false the second time.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
    token := middleware.TokenFromRequest(r)
    if token == "" {
        utils.HandleError(w, responses.BadRequestError{Msg: "Session token required."})
        return
    }

    // Resolve the group before deleting, so the departure can be announced.
    session, err := h.Tracker.Lookup(r.Context(), token)
    if err != nil {
        log.Printf("Error resolving session: %v", err)
    }

    removed, err := h.Tracker.Logout(r.Context(), token)
    if err != nil {
        log.Printf("Error deleting session: %v", err)
        utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
        return
    }
    if session != nil {
        h.broadcastOnlineStatus(r.Context(), session.GroupID)
    }
    utils.HandleSuccess(w, models.SuccessResponse(map[string]bool{"logged_out": removed}))
}

// OnlineParticipants lists who is currently online in the caller's group.
func (h *Handler) OnlineParticipants(w http.ResponseWriter, r *http.Request) {
    groupID := mux.Vars(r)["groupID"]
    session := middleware.SessionFromContext(r.Context())
    if session == nil || session.GroupID != groupID {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Access denied to this group."})
        return
    }

    online, err := h.Tracker.OnlineParticipants(r.Context(), groupID)
    if err != nil {
        log.Printf("Error fetching online participants: %v", err)
        utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
        return
    }
    for i := range online {
        if name, err := h.Roster.DisplayName(r.Context(), online[i].ParticipantID); err == nil {
            online[i].DisplayName = name
        }
    }
    utils.HandleSuccess(w, models.SuccessResponse(online))
}

// RefreshOnlineStatus re-broadcasts the group's online list on demand, for
// clients reconciling after a reconnect.
func (h *Handler) RefreshOnlineStatus(w http.ResponseWriter, r *http.Request) {
    groupID := mux.Vars(r)["groupID"]
    session := middleware.SessionFromContext(r.Context())
    if session == nil || session.GroupID != groupID {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Access denied to this group."})
        return
    }

    h.broadcastOnlineStatus(r.Context(), groupID)
    utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "Online status update broadcasted."}))
}
