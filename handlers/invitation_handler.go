package handlers

import (
	"net/http"

	"github.com/Dosada05/pong-arena/services"
)

type InvitationHandler struct {
	invitationService services.InvitationService
}

func NewInvitationHandler(is services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: is}
}

// Create godoc
// @Summary Invite another user to a match
// @Description The invitation stays answerable for 300 seconds.
// @Tags invitations
// @Accept json
// @Produce json
// @Param input body services.CreateInvitationInput true "Invitation"
// @Success 201 {object} models.MatchInvitation
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /invitations [post]
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var input services.CreateInvitationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	inv, err := h.invitationService.Create(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"invitation": inv}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List godoc
// @Summary Invitations sent or received by the caller
// @Tags invitations
// @Produce json
// @Param limit query int false "Page size"
// @Success 200 {array} services.InvitationView
// @Security BearerAuth
// @Router /invitations [get]
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	views, err := h.invitationService.ListMine(r.Context(), userID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"invitations": views}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get godoc
// @Summary Invitation status
// @Description Expired is computed at read time.
// @Tags invitations
// @Produce json
// @Param invitationID path int true "Invitation ID"
// @Success 200 {object} services.InvitationView
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /invitations/{invitationID} [get]
func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	invitationID, err := getIDFromURL(r, "invitationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	view, err := h.invitationService.Get(r.Context(), invitationID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"invitation": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Accept godoc
// @Summary Accept an invitation (receiver only)
// @Tags invitations
// @Produce json
// @Param invitationID path int true "Invitation ID"
// @Success 200 {object} models.MatchInvitation
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "Already resolved or expired"
// @Security BearerAuth
// @Router /invitations/{invitationID}/accept [post]
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	invitationID, err := getIDFromURL(r, "invitationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	inv, err := h.invitationService.Accept(r.Context(), invitationID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"invitation": inv}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Reject godoc
// @Summary Reject or withdraw an invitation
// @Tags invitations
// @Accept json
// @Produce json
// @Param invitationID path int true "Invitation ID"
// @Param input body services.RejectInvitationInput false "Reason"
// @Success 200 {object} models.MatchInvitation
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /invitations/{invitationID}/reject [post]
func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	invitationID, err := getIDFromURL(r, "invitationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var input services.RejectInvitationInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	inv, err := h.invitationService.Reject(r.Context(), invitationID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"invitation": inv}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateMatch godoc
// @Summary Create the match for an accepted invitation
// @Tags invitations
// @Produce json
// @Param invitationID path int true "Invitation ID"
// @Success 201 {object} models.Match
// @Failure 409 {object} map[string]string "Not accepted or already has a match"
// @Security BearerAuth
// @Router /invitations/{invitationID}/match [post]
func (h *InvitationHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	invitationID, err := getIDFromURL(r, "invitationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	match, err := h.invitationService.CreateMatch(r.Context(), invitationID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
