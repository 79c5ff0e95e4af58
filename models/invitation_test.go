package models_test

import (
	"testing"
	"time"

	"github.com/Dosada05/pong-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewMatchInvitation(t *testing.T) {
	inv := models.NewMatchInvitation(1, 2, "rematch?", t0)

	assert.Equal(t, models.InvitationWaiting, inv.Status)
	require.NotNil(t, inv.ExpiresAt)
	assert.Equal(t, t0.Add(300*time.Second), *inv.ExpiresAt)
	assert.Equal(t, "rematch?", inv.Message)
	assert.Nil(t, inv.MatchID)
}

func TestMatchInvitation_IsExpired(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "at creation", at: t0, want: false},
		{name: "exactly at ttl", at: t0.Add(300 * time.Second), want: false},
		{name: "one second after ttl", at: t0.Add(301 * time.Second), want: true},
		{name: "long after", at: t0.Add(time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := models.NewMatchInvitation(1, 2, "", t0)
			assert.Equal(t, tt.want, inv.IsExpired(tt.at))
		})
	}
}

func TestMatchInvitation_AcceptClearsExpiry(t *testing.T) {
	inv := models.NewMatchInvitation(1, 2, "", t0)

	require.NoError(t, inv.Accept(t0.Add(10*time.Second)))

	assert.Equal(t, models.InvitationAccepted, inv.Status)
	assert.Nil(t, inv.ExpiresAt)
	require.NotNil(t, inv.RespondedAt)
	assert.False(t, inv.IsExpired(t0.Add(time.Hour)))
}

func TestMatchInvitation_RejectRecordsReason(t *testing.T) {
	inv := models.NewMatchInvitation(1, 2, "", t0)

	require.NoError(t, inv.Reject("busy", t0.Add(time.Second)))

	assert.Equal(t, models.InvitationRejected, inv.Status)
	assert.Equal(t, "busy", inv.RejectReason)
	assert.Nil(t, inv.ExpiresAt)
	assert.False(t, inv.IsExpired(t0.Add(time.Hour)))
}

func TestMatchInvitation_ResolvedIsTerminal(t *testing.T) {
	inv := models.NewMatchInvitation(1, 2, "", t0)
	require.NoError(t, inv.Accept(t0))
	before := *inv

	err := inv.Reject("changed my mind", t0)
	require.ErrorIs(t, err, models.ErrInvalidState)
	err = inv.Accept(t0)
	require.ErrorIs(t, err, models.ErrInvalidState)

	assert.Equal(t, before, *inv)
}

func TestMatchInvitation_AcceptAfterExpiry(t *testing.T) {
	inv := models.NewMatchInvitation(1, 2, "", t0)

	err := inv.Accept(t0.Add(301 * time.Second))

	require.ErrorIs(t, err, models.ErrInvitationExpired)
	require.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, models.InvitationWaiting, inv.Status)
	assert.NotNil(t, inv.ExpiresAt)
}

func TestMatchInvitation_AttachMatch(t *testing.T) {
	inv := models.NewMatchInvitation(1, 2, "", t0)

	require.ErrorIs(t, inv.AttachMatch(10), models.ErrInvalidState)

	require.NoError(t, inv.Accept(t0))
	require.NoError(t, inv.AttachMatch(10))
	require.ErrorIs(t, inv.AttachMatch(11), models.ErrAlreadyExists)
	require.NotNil(t, inv.MatchID)
	assert.Equal(t, 10, *inv.MatchID)
}
