package handlers

import (
    "encoding/json"
    "net/http"

    "github.com/gorilla/mux"

    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/pkg/responses"
    "github.com/inkround/inkround-backend/utils"
)

// HubStats exposes connection counts for operational monitoring.
func (h *Handler) HubStats(w http.ResponseWriter, r *http.Request) {
    utils.HandleSuccess(w, models.SuccessResponse(h.Hub.Stats()))
}

type broadcastRequest struct {
    Type string      `json:"type"`
    Data interface{} `json:"data"`
}

// Broadcast publishes an arbitrary event to a group. The hub treats the
// payload as opaque, so collaborators (document updates, activity metadata)
// pass through here unchanged.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
    groupID := mux.Vars(r)["groupID"]

    var req broadcastRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
        utils.HandleError(w, responses.BadRequestError{Msg: "Event type is required."})
        return
    }

    h.Hub.Publish(groupID, models.NewEvent(req.Type, groupID, req.Data))
    utils.HandleSuccess(w, models.SuccessResponse(map[string]string{
        "message": "Event '" + req.Type + "' broadcasted to group " + groupID + ".",
    }))
}
