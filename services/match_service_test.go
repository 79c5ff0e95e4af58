package services

import (
	"context"
	"testing"

	"github.com/Dosada05/pong-arena/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchFixture struct {
	store    *memoryStore
	recorder ResultRecorder
	svc      MatchService
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	store := newMemoryStore(clock)
	recorder := NewResultRecorder(memoryPlayerRepo{store}, memoryHistoryRepo{store}, nil)
	return &matchFixture{
		store:    store,
		recorder: recorder,
		svc:      NewMatchService(store, memoryMatchRepo{store}, memoryPlayerRepo{store}, recorder, clock, nil),
	}
}

func (f *matchFixture) pvpMatch(t *testing.T, p1, p2 int) *models.Match {
	t.Helper()
	m := &models.Match{Kind: models.MatchKindPvP, Player1ID: p1, Player2ID: &p2}
	require.NoError(t, memoryMatchRepo{f.store}.Create(context.Background(), nil, m))
	return m
}

func intPtr(v int) *int { return &v }

func TestMatchService_SubmitPvP(t *testing.T) {
	ctx := context.Background()
	f := newMatchFixture(t)
	aliceUser, alice := f.store.seedUser("alice")
	_, bob := f.store.seedUser("bob")
	outsider, _ := f.store.seedUser("mallory")
	match := f.pvpMatch(t, alice, bob)

	input := SubmitMatchResultInput{
		WinnerID:          intPtr(bob),
		LoserID:           intPtr(alice),
		WinnerScore:       11,
		LoserScore:        9,
		WinnerRatingDelta: 12,
		LoserRatingDelta:  -12,
	}

	_, err := f.svc.SubmitResult(ctx, match.ID, outsider, input)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	wrong := input
	wrong.LoserID = intPtr(bob)
	_, err = f.svc.SubmitResult(ctx, match.ID, aliceUser, wrong)
	assert.ErrorIs(t, err, models.ErrInvalidResult)

	got, err := f.svc.SubmitResult(ctx, match.ID, aliceUser, input)
	require.NoError(t, err)
	assert.True(t, got.IsFinished())
	assert.Equal(t, bob, *got.WinnerID)

	assert.Equal(t, 1, f.store.player(bob).Wins)
	assert.Equal(t, models.DefaultRating+12, f.store.player(bob).Rating)
	assert.Equal(t, 1, f.store.player(alice).Losses)
	assert.Equal(t, models.DefaultRating-12, f.store.player(alice).Rating)

	history := f.store.historyFor(alice)
	require.Len(t, history, 1)
	assert.Equal(t, models.ContestRef{Kind: models.ContestMatch, ID: match.ID}, history[0].Contest)
	assert.Equal(t, models.ResultLoss, history[0].Result)
	assert.Equal(t, -12, history[0].RatingChange)

	_, err = f.svc.SubmitResult(ctx, match.ID, aliceUser, input)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 1, f.store.player(bob).Wins)
}

func TestMatchService_PvE(t *testing.T) {
	ctx := context.Background()
	f := newMatchFixture(t)
	userID, playerID := f.store.seedUser("solo")

	match, err := f.svc.CreatePvEMatch(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchKindPvE, match.Kind)
	assert.Nil(t, match.Player2ID)

	_, err = f.svc.SubmitResult(ctx, match.ID, userID, SubmitMatchResultInput{
		WinnerID: intPtr(playerID),
		LoserID:  intPtr(playerID),
	})
	assert.ErrorIs(t, err, models.ErrInvalidResult)

	_, err = f.svc.SubmitResult(ctx, match.ID, userID, SubmitMatchResultInput{
		LoserID:          intPtr(playerID),
		WinnerScore:      11,
		LoserScore:       3,
		LoserRatingDelta: -5,
	})
	require.NoError(t, err)

	p := f.store.player(playerID)
	assert.Equal(t, 0, p.Wins)
	assert.Equal(t, 1, p.Losses)
	assert.Equal(t, models.DefaultRating-5, p.Rating)
	assert.Len(t, f.store.historyFor(playerID), 1)

	_, err = f.svc.CreatePvEMatch(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotRegistered)

	_, err = f.svc.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestResultRecorder(t *testing.T) {
	ctx := context.Background()
	f := newMatchFixture(t)
	_, alice := f.store.seedUser("alice")
	_, bob := f.store.seedUser("bob")
	ref := models.ContestRef{Kind: models.ContestTournamentMatch, ID: 77}

	contest := Contest{
		Ref: ref,
		Participants: []Participant{
			{PlayerID: bob, IsWinner: false, RatingDelta: -8},
			{PlayerID: alice, IsWinner: true, RatingDelta: 8},
		},
	}
	entries, err := f.recorder.Record(ctx, nil, contest)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, alice, entries[0].PlayerID)
	assert.Equal(t, models.ResultWin, entries[0].Result)

	_, err = f.recorder.Record(ctx, nil, contest)
	assert.ErrorIs(t, err, models.ErrAlreadyRecorded)
	assert.Equal(t, 1, f.store.player(alice).Wins)

	tests := []struct {
		name    string
		contest Contest
	}{
		{"no participants", Contest{Ref: models.ContestRef{Kind: models.ContestMatch, ID: 1}}},
		{"two winners", Contest{Ref: models.ContestRef{Kind: models.ContestMatch, ID: 2}, Participants: []Participant{
			{PlayerID: alice, IsWinner: true}, {PlayerID: bob, IsWinner: true},
		}}},
		{"same player twice", Contest{Ref: models.ContestRef{Kind: models.ContestMatch, ID: 3}, Participants: []Participant{
			{PlayerID: alice, IsWinner: true}, {PlayerID: alice},
		}}},
		{"unknown kind", Contest{Ref: models.ContestRef{Kind: "bet", ID: 4}, Participants: []Participant{{PlayerID: alice}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.recorder.Record(ctx, nil, tt.contest)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}

	_, err = f.recorder.Record(ctx, nil, Contest{
		Ref:          models.ContestRef{Kind: models.ContestMatch, ID: 5},
		Participants: []Participant{{PlayerID: 9999, IsWinner: true}},
	})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}
