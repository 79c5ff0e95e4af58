package handlers

import (
	"net/http"

	"github.com/Dosada05/pong-arena/services"
)

type PlayerHandler struct {
	playerService services.PlayerService
}

func NewPlayerHandler(ps services.PlayerService) *PlayerHandler {
	return &PlayerHandler{playerService: ps}
}

// Me godoc
// @Summary Current player record
// @Tags players
// @Produce json
// @Success 200 {object} models.Player
// @Failure 401 {object} map[string]string
// @Failure 422 {object} map[string]string "User has no player record"
// @Security BearerAuth
// @Router /players/me [get]
func (h *PlayerHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	player, err := h.playerService.GetMe(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByID godoc
// @Summary Player record by id
// @Tags players
// @Produce json
// @Param playerID path int true "Player ID"
// @Success 200 {object} models.Player
// @Failure 404 {object} map[string]string
// @Router /players/{playerID} [get]
func (h *PlayerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.GetByID(r.Context(), playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// History godoc
// @Summary Match history of a player, newest first
// @Tags players
// @Produce json
// @Param playerID path int true "Player ID"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.MatchHistory
// @Failure 404 {object} map[string]string
// @Router /players/{playerID}/history [get]
func (h *PlayerHandler) History(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entries, err := h.playerService.History(r.Context(), playerID, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
