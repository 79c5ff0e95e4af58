package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
)

type PlayerService interface {
	GetMe(ctx context.Context, userID int) (*models.Player, error)
	GetByID(ctx context.Context, playerID int) (*models.Player, error)
	History(ctx context.Context, playerID, limit, offset int) ([]models.MatchHistory, error)
}

type playerService struct {
	playerRepo  repositories.PlayerRepository
	historyRepo repositories.HistoryRepository
}

func NewPlayerService(playerRepo repositories.PlayerRepository, historyRepo repositories.HistoryRepository) PlayerService {
	return &playerService{playerRepo: playerRepo, historyRepo: historyRepo}
}

func (s *playerService) GetMe(ctx context.Context, userID int) (*models.Player, error) {
	return playerForUser(ctx, s.playerRepo, nil, userID)
}

func (s *playerService) GetByID(ctx context.Context, playerID int) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, nil, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
		}
		return nil, fmt.Errorf("failed to get player %d: %w", playerID, err)
	}
	return player, nil
}

// History lists the player's entries newest first.
func (s *playerService) History(ctx context.Context, playerID, limit, offset int) ([]models.MatchHistory, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidationFailed)
	}
	if _, err := s.GetByID(ctx, playerID); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListByPlayer(ctx, playerID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of player %d: %w", playerID, err)
	}
	return entries, nil
}
