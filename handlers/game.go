package handlers

import (
    "encoding/json"
    "errors"
    "log"
    "net/http"

    "github.com/gorilla/mux"

    "github.com/inkround/inkround-backend/game"
    "github.com/inkround/inkround-backend/middleware"
    "github.com/inkround/inkround-backend/models"
    "github.com/inkround/inkround-backend/pkg/responses"
    "github.com/inkround/inkround-backend/utils"
)

// gameError translates coordinator errors into API responses.
func gameError(err error) error {
    switch {
    case errors.Is(err, game.ErrNotYourTurn):
        return responses.ConflictError{Msg: "Not your turn for this paper."}
    case errors.Is(err, game.ErrNoParticipants):
        return responses.BadRequestError{Msg: "Cannot start a game with no participants."}
    case errors.Is(err, game.ErrGameNotFound):
        return responses.NotFoundError{Msg: "Game not found."}
    case errors.Is(err, game.ErrGameNotActive):
        return responses.ConflictError{Msg: "Game is not accepting turns."}
    case errors.Is(err, game.ErrInvalidTransition):
        return responses.ConflictError{Msg: "Game is not in the right state for that."}
    case errors.Is(err, game.ErrNotInGame):
        return responses.ForbiddenError{Msg: "You are not part of this game."}
    default:
        log.Printf("Game error: %v", err)
        return responses.InternalServerError{Msg: "Error processing request."}
    }
}

// requireFacilitator resolves the game and checks the caller's facilitator
// role in its group.
func (h *Handler) requireFacilitator(w http.ResponseWriter, r *http.Request, gameID string) *models.GameInstance {
    session := middleware.SessionFromContext(r.Context())
    instance, err := h.Coordinator.Game(r.Context(), gameID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return nil
    }
    if session == nil || session.GroupID != instance.GroupID {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Access denied to this group."})
        return nil
    }
    facilitator, err := h.Roster.IsFacilitator(r.Context(), session.ParticipantID, instance.GroupID)
    if err != nil {
        utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
        return nil
    }
    if !facilitator {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Facilitator role required."})
        return nil
    }
    return instance
}

// requireGameMember checks that the caller's session belongs to the game's
// group and returns the instance.
func (h *Handler) requireGameMember(w http.ResponseWriter, r *http.Request, gameID string) *models.GameInstance {
    session := middleware.SessionFromContext(r.Context())
    instance, err := h.Coordinator.Game(r.Context(), gameID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return nil
    }
    if session == nil || session.GroupID != instance.GroupID {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Access denied to this group."})
        return nil
    }
    return instance
}

// CreateGame registers a new game instance in setup state. Facilitators only.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
    groupID := mux.Vars(r)["groupID"]
    session := middleware.SessionFromContext(r.Context())
    if session == nil || session.GroupID != groupID {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Access denied to this group."})
        return
    }
    facilitator, err := h.Roster.IsFacilitator(r.Context(), session.ParticipantID, groupID)
    if err != nil || !facilitator {
        utils.HandleError(w, responses.ForbiddenError{Msg: "Facilitator role required."})
        return
    }

    instance, err := h.Coordinator.CreateGame(r.Context(), groupID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(instance))
}

// StartGame freezes the turn order and puts the papers in circulation.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireFacilitator(w, r, gameID) == nil {
        return
    }

    result, err := h.Coordinator.Initialize(r.Context(), gameID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(result))
}

func (h *Handler) PauseGame(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireFacilitator(w, r, gameID) == nil {
        return
    }
    if err := h.Coordinator.Pause(r.Context(), gameID); err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"status": string(models.GamePaused)}))
}

func (h *Handler) ResumeGame(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireFacilitator(w, r, gameID) == nil {
        return
    }
    if err := h.Coordinator.Resume(r.Context(), gameID); err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"status": string(models.GameActive)}))
}

// GameState reports the caller's view: is it their turn, on which paper,
// or who they are waiting for.
func (h *Handler) GameState(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireGameMember(w, r, gameID) == nil {
        return
    }
    session := middleware.SessionFromContext(r.Context())

    view, err := h.Coordinator.GameState(r.Context(), gameID, session.ParticipantID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(view))
}

type submitRequest struct {
    Content string `json:"content"`
}

type turnResponse struct {
    NextParticipant string `json:"next_participant"`
}

// SubmitLine appends the caller's line to the paper waiting on them.
func (h *Handler) SubmitLine(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    gameID, paperID := vars["gameID"], vars["paperID"]
    if h.requireGameMember(w, r, gameID) == nil {
        return
    }
    session := middleware.SessionFromContext(r.Context())

    var req submitRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
        utils.HandleError(w, responses.BadRequestError{Msg: "content is required."})
        return
    }

    next, err := h.Coordinator.SubmitLine(r.Context(), gameID, session.ParticipantID, paperID, req.Content)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(turnResponse{NextParticipant: next}))
}

// SkipTurn consumes the caller's slot on the paper without writing.
func (h *Handler) SkipTurn(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    gameID, paperID := vars["gameID"], vars["paperID"]
    if h.requireGameMember(w, r, gameID) == nil {
        return
    }
    session := middleware.SessionFromContext(r.Context())

    next, err := h.Coordinator.SkipTurn(r.Context(), gameID, session.ParticipantID, paperID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(turnResponse{NextParticipant: next}))
}

// GameComplete reports whether every paper has gone full circle.
func (h *Handler) GameComplete(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireGameMember(w, r, gameID) == nil {
        return
    }

    complete, err := h.Coordinator.IsComplete(r.Context(), gameID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(map[string]bool{"complete": complete}))
}

// CompletedPapers hands facilitators the full transcripts.
func (h *Handler) CompletedPapers(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireFacilitator(w, r, gameID) == nil {
        return
    }

    papers, err := h.Coordinator.CompletedPapers(r.Context(), gameID)
    if err != nil {
        utils.HandleError(w, gameError(err))
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(papers))
}

// ArchivedGame fetches the transcripts archived at completion time.
func (h *Handler) ArchivedGame(w http.ResponseWriter, r *http.Request) {
    gameID := mux.Vars(r)["gameID"]
    if h.requireFacilitator(w, r, gameID) == nil {
        return
    }
    if h.Archive == nil {
        utils.HandleError(w, responses.NotFoundError{Msg: "No archive configured."})
        return
    }

    papers, err := h.Archive.FetchArchivedGame(r.Context(), gameID)
    if err != nil {
        log.Printf("Error fetching archived game %s: %v", gameID, err)
        utils.HandleError(w, responses.InternalServerError{Msg: "Error fetching archived game."})
        return
    }
    if papers == nil {
        utils.HandleError(w, responses.NotFoundError{Msg: "Game was never archived."})
        return
    }
    utils.HandleSuccess(w, models.SuccessResponse(papers))
}
