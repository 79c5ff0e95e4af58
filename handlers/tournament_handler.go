package handlers

import (
	"net/http"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

// CreateHandler godoc
// @Summary Create a tournament room
// @Description The caller becomes the room owner. The room starts in waiting.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param input body services.CreateRoomInput true "Room"
// @Success 201 {object} models.TournamentRoom
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var input services.CreateRoomInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.tournamentService.CreateRoom(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler godoc
// @Summary List tournament rooms
// @Tags tournaments
// @Produce json
// @Param status query string false "waiting, ongoing or completed"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.TournamentRoom
// @Router /tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var input services.ListRoomsInput
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.RoomStatus(raw)
		input.Status = &status
	}

	var err error
	if input.Limit, err = queryInt(r, "limit"); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Offset, err = queryInt(r, "offset"); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rooms, err := h.tournamentService.ListRooms(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rooms": rooms}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler godoc
// @Summary Room details with roster, alive roster and matches
// @Tags tournaments
// @Produce json
// @Param roomID path int true "Room ID"
// @Success 200 {object} models.TournamentRoom
// @Failure 404 {object} map[string]string
// @Router /tournaments/{roomID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.tournamentService.GetRoom(r.Context(), roomID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// JoinHandler godoc
// @Summary Join a waiting room
// @Tags tournaments
// @Produce json
// @Param roomID path int true "Room ID"
// @Success 201 {object} models.TournamentPlayer
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "Room full, not waiting, or already joined"
// @Failure 422 {object} map[string]string "User has no player record"
// @Security BearerAuth
// @Router /tournaments/{roomID}/players [post]
func (h *TournamentHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tp, err := h.tournamentService.AddPlayer(r.Context(), roomID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": tp}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaveHandler godoc
// @Summary Leave a waiting room
// @Tags tournaments
// @Param roomID path int true "Room ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{roomID}/players/me [delete]
func (h *TournamentHandler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.tournamentService.RemovePlayer(r.Context(), roomID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartHandler godoc
// @Summary Start the bracket
// @Description Owner only. Needs an even roster of at least four players.
// @Tags tournaments
// @Produce json
// @Param roomID path int true "Room ID"
// @Success 200 {object} models.TournamentRoom
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{roomID}/start [post]
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	room, err := h.tournamentService.Start(r.Context(), roomID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// NextMatchHandler godoc
// @Summary Put the next match live or decide the champion
// @Tags tournaments
// @Produce json
// @Param roomID path int true "Room ID"
// @Success 200 {object} services.NextMatchOutcome
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "A match is already live or the room is not ongoing"
// @Security BearerAuth
// @Router /tournaments/{roomID}/next-match [post]
func (h *TournamentHandler) NextMatchHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	out, err := h.tournamentService.NextMatch(r.Context(), roomID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, out, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultHandler godoc
// @Summary Submit the result of the live match
// @Description Winner and loser are tournament player ids and must be the scheduled pair.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param roomID path int true "Room ID"
// @Param matchID path int true "Tournament match ID"
// @Param input body services.SubmitTournamentResultInput true "Result"
// @Success 200 {object} models.TournamentMatch
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{roomID}/matches/{matchID}/result [post]
func (h *TournamentHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var input services.SubmitTournamentResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.MatchID = matchID

	match, err := h.tournamentService.SubmitResult(r.Context(), roomID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EndHandler godoc
// @Summary Force-complete a room
// @Tags tournaments
// @Produce json
// @Param roomID path int true "Room ID"
// @Success 200 {object} models.TournamentRoom
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{roomID}/end [post]
func (h *TournamentHandler) EndHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	room, err := h.tournamentService.End(r.Context(), roomID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
