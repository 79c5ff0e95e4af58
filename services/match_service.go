package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
	"github.com/jonboulle/clockwork"
)

// SubmitMatchResultInput decides an ad-hoc match. For a PvE match exactly
// one of WinnerID and LoserID names the player; the other side is the
// environment and stays nil.
type SubmitMatchResultInput struct {
	WinnerID          *int `json:"winner_id"`
	LoserID           *int `json:"loser_id"`
	WinnerScore       int  `json:"winner_score"`
	LoserScore        int  `json:"loser_score"`
	WinnerRatingDelta int  `json:"winner_rating_delta"`
	LoserRatingDelta  int  `json:"loser_rating_delta"`
}

type MatchService interface {
	GetByID(ctx context.Context, matchID int) (*models.Match, error)
	CreatePvEMatch(ctx context.Context, userID int) (*models.Match, error)
	SubmitResult(ctx context.Context, matchID, userID int, input SubmitMatchResultInput) (*models.Match, error)
}

type matchService struct {
	tx         repositories.Transactor
	matchRepo  repositories.MatchRepository
	playerRepo repositories.PlayerRepository
	recorder   ResultRecorder
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewMatchService(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	playerRepo repositories.PlayerRepository,
	recorder ResultRecorder,
	clock clockwork.Clock,
	logger *slog.Logger,
) MatchService {
	if logger == nil {
		logger = discardLogger()
	}
	return &matchService{
		tx:         tx,
		matchRepo:  matchRepo,
		playerRepo: playerRepo,
		recorder:   recorder,
		clock:      clock,
		logger:     logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, s.mapMatchError(err, matchID)
	}
	return match, nil
}

func (s *matchService) CreatePvEMatch(ctx context.Context, userID int) (*models.Match, error) {
	player, err := playerForUser(ctx, s.playerRepo, nil, userID)
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		Kind:      models.MatchKindPvE,
		Player1ID: player.ID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.matchRepo.Create(ctx, nil, match); err != nil {
		if errors.Is(err, repositories.ErrMatchPlayerInvalid) {
			return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, player.ID)
		}
		return nil, fmt.Errorf("failed to create pve match: %w", err)
	}

	s.logger.InfoContext(ctx, "pve match created", slog.Int("match_id", match.ID), slog.Int("player_id", player.ID))
	return match, nil
}

// SubmitResult finishes a scheduled match and records it. Only a
// participant may submit, and only once.
func (s *matchService) SubmitResult(ctx context.Context, matchID, userID int, input SubmitMatchResultInput) (*models.Match, error) {
	var match *models.Match

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		match, err = s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return s.mapMatchError(err, matchID)
		}

		player, err := playerForUser(ctx, s.playerRepo, exec, userID)
		if err != nil {
			return err
		}
		if !match.HasParticipant(player.ID) {
			return ErrForbiddenOperation
		}

		if err := match.Finish(input.WinnerID, input.LoserID, input.WinnerScore, input.LoserScore, s.clock.Now()); err != nil {
			return err
		}
		if err := s.matchRepo.UpdateResult(ctx, exec, match); err != nil {
			return s.mapMatchError(err, matchID)
		}

		_, err = s.recorder.Record(ctx, exec, Contest{
			Ref:          models.ContestRef{Kind: models.ContestMatch, ID: match.ID},
			Participants: matchParticipants(input),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("match_id", match.ID), slog.String("kind", string(match.Kind)))
	return match, nil
}

func matchParticipants(input SubmitMatchResultInput) []Participant {
	var out []Participant
	if input.WinnerID != nil {
		out = append(out, Participant{PlayerID: *input.WinnerID, IsWinner: true, RatingDelta: input.WinnerRatingDelta})
	}
	if input.LoserID != nil {
		out = append(out, Participant{PlayerID: *input.LoserID, IsWinner: false, RatingDelta: input.LoserRatingDelta})
	}
	return out
}

func (s *matchService) mapMatchError(err error, matchID int) error {
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return fmt.Errorf("%w: %d", ErrMatchNotFound, matchID)
	}
	return fmt.Errorf("failed to access match %d: %w", matchID, err)
}
