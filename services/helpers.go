package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
)

// RoomNotifier pushes room events to spectators. *brackets.Hub implements it.
type RoomNotifier interface {
	BroadcastToRoom(roomID int, msgType string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastToRoom(int, string, any) {}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// playerForUser resolves the Player record of an authenticated user.
func playerForUser(ctx context.Context, players repositories.PlayerRepository, exec repositories.SQLExecutor, userID int) (*models.Player, error) {
	player, err := players.GetByUserID(ctx, exec, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, fmt.Errorf("%w: user %d", models.ErrNotRegistered, userID)
		}
		return nil, fmt.Errorf("failed to get player of user %d: %w", userID, err)
	}
	return player, nil
}

func validateName(field, value string, min, max int) error {
	n := len([]rune(strings.TrimSpace(value)))
	if n < min || n > max {
		return fmt.Errorf("%w: %s must be between %d and %d characters", ErrValidationFailed, field, min, max)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
