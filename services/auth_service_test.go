package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/utils"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	secret := []byte("test-secret")
	store := newMemoryStore(clockwork.NewRealClock())
	svc := NewAuthService(store, memoryUserRepo{store}, memoryPlayerRepo{store}, secret, time.Hour, clockwork.NewRealClock(), nil)

	user, player, err := svc.Register(ctx, RegisterInput{Username: "neo", Email: " Neo@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "neo@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.Equal(t, user.ID, player.UserID)
	assert.Equal(t, models.DefaultRating, player.Rating)

	_, _, err = svc.Register(ctx, RegisterInput{Username: "trinity", Email: "neo@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrUserEmailConflict)

	_, err = svc.Login(ctx, LoginInput{Email: "neo@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(ctx, LoginInput{Email: "NEO@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Empty(t, res.User.PasswordHash)

	claims, err := utils.ParseJWT(res.Token, secret)
	require.NoError(t, err)
	assert.EqualValues(t, user.ID, claims[utils.ClaimUserID])
	assert.Equal(t, "neo", claims[utils.ClaimUsername])
}

func TestAuthService_RegisterValidation(t *testing.T) {
	store := newMemoryStore(clockwork.NewRealClock())
	svc := NewAuthService(store, memoryUserRepo{store}, memoryPlayerRepo{store}, []byte("s"), time.Hour, clockwork.NewRealClock(), nil)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@example.com", Password: "password1"}},
		{"bad email", RegisterInput{Username: "abc", Email: "not-an-email", Password: "password1"}},
		{"short password", RegisterInput{Username: "abc", Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}
