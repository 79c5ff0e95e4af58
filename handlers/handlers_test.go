package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/pong-arena/middleware"
	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/services"
	"github.com/Dosada05/pong-arena/utils"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTournamentService overrides the methods a test needs; the embedded
// nil interface panics on anything else.
type stubTournamentService struct {
	services.TournamentService

	nextMatch    func(roomID, userID int) (*services.NextMatchOutcome, error)
	submitResult func(roomID, userID int, input services.SubmitTournamentResultInput) (*models.TournamentMatch, error)
}

func (s *stubTournamentService) NextMatch(_ context.Context, roomID, userID int) (*services.NextMatchOutcome, error) {
	return s.nextMatch(roomID, userID)
}

func (s *stubTournamentService) SubmitResult(_ context.Context, roomID, userID int, input services.SubmitTournamentResultInput) (*models.TournamentMatch, error) {
	return s.submitResult(roomID, userID, input)
}

var testSecret = []byte("handler-test-secret")

func newTournamentRouter(svc services.TournamentService) http.Handler {
	h := NewTournamentHandler(svc)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Post("/tournaments/{roomID}/next-match", h.NextMatchHandler)
		r.Post("/tournaments/{roomID}/matches/{matchID}/result", h.SubmitResultHandler)
	})
	return r
}

func bearer(t *testing.T, userID int) string {
	t.Helper()
	token, err := utils.GenerateJWT(userID, "tester", testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrRoomNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", services.ErrInvitationNotFound), http.StatusNotFound},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrForbiddenOperation, http.StatusForbidden},
		{models.ErrNotOwner, http.StatusForbidden},
		{services.ErrSelfInvitation, http.StatusBadRequest},
		{models.ErrInvalidResult, http.StatusUnprocessableEntity},
		{models.ErrNotRegistered, http.StatusUnprocessableEntity},
		{models.ErrMatchInProgress, http.StatusConflict},
		{models.ErrInvitationExpired, http.StatusConflict},
		{models.ErrCapacityExceeded, http.StatusConflict},
		{models.ErrAlreadyRecorded, http.StatusConflict},
		{services.ErrPlayerInActiveRoom, http.StatusConflict},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mapServiceErrorToHTTP(rec, req, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestTournamentHandler_NextMatch(t *testing.T) {
	var gotRoom, gotUser int
	svc := &stubTournamentService{
		nextMatch: func(roomID, userID int) (*services.NextMatchOutcome, error) {
			gotRoom, gotUser = roomID, userID
			return &services.NextMatchOutcome{
				Match:    &models.TournamentMatch{ID: 31, RoomID: roomID, Round: 1, Status: models.MatchStatusOngoing, Player1ID: 3, Player2ID: 4},
				NewRound: true,
			}, nil
		},
	}
	router := newTournamentRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/tournaments/12/next-match", nil)
	req.Header.Set("Authorization", bearer(t, 7))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12, gotRoom)
	assert.Equal(t, 7, gotUser)

	var body struct {
		Match    models.TournamentMatch `json:"match"`
		NewRound bool                   `json:"new_round"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 31, body.Match.ID)
	assert.True(t, body.NewRound)
}

func TestTournamentHandler_NextMatchErrors(t *testing.T) {
	svc := &stubTournamentService{
		nextMatch: func(int, int) (*services.NextMatchOutcome, error) {
			return nil, models.ErrMatchInProgress
		},
	}
	router := newTournamentRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tournaments/12/next-match", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/tournaments/12/next-match", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/tournaments/abc/next-match", nil)
	req.Header.Set("Authorization", bearer(t, 7))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/tournaments/12/next-match", nil)
	req.Header.Set("Authorization", bearer(t, 7))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTournamentHandler_SubmitResult(t *testing.T) {
	var got services.SubmitTournamentResultInput
	svc := &stubTournamentService{
		submitResult: func(roomID, userID int, input services.SubmitTournamentResultInput) (*models.TournamentMatch, error) {
			got = input
			return &models.TournamentMatch{ID: input.MatchID, Status: models.MatchStatusCompleted}, nil
		},
	}
	router := newTournamentRouter(svc)

	body := `{"winner_id":3,"loser_id":4,"winner_score":11,"loser_score":6,"winner_rating_delta":10,"loser_rating_delta":-10}`
	req := httptest.NewRequest(http.MethodPost, "/tournaments/12/matches/31/result", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, 7))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.SubmitTournamentResultInput{
		MatchID:           31,
		WinnerID:          3,
		LoserID:           4,
		WinnerScore:       11,
		LoserScore:        6,
		WinnerRatingDelta: 10,
		LoserRatingDelta:  -10,
	}, got)

	req = httptest.NewRequest(http.MethodPost, "/tournaments/12/matches/31/result", strings.NewReader(`{"winner":3}`))
	req.Header.Set("Authorization", bearer(t, 7))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown key")
}
