package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/pong-arena/brackets"
	"github.com/Dosada05/pong-arena/metrics"
	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
	"github.com/Dosada05/pong-arena/storage"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type CreateRoomInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListRoomsInput struct {
	Status *models.RoomStatus
	Limit  int
	Offset int
}

type SubmitTournamentResultInput struct {
	MatchID           int `json:"-"`
	WinnerID          int `json:"winner_id"`
	LoserID           int `json:"loser_id"`
	WinnerScore       int `json:"winner_score"`
	LoserScore        int `json:"loser_score"`
	WinnerRatingDelta int `json:"winner_rating_delta"`
	LoserRatingDelta  int `json:"loser_rating_delta"`
}

// NextMatchOutcome is either a live match or a decided champion.
type NextMatchOutcome struct {
	Match    *models.TournamentMatch  `json:"match,omitempty"`
	NewRound bool                     `json:"new_round"`
	Champion *models.TournamentPlayer `json:"champion,omitempty"`
	Room     *models.TournamentRoom   `json:"room"`
}

type TournamentService interface {
	CreateRoom(ctx context.Context, ownerID int, input CreateRoomInput) (*models.TournamentRoom, error)
	ListRooms(ctx context.Context, input ListRoomsInput) ([]models.TournamentRoom, error)
	GetRoom(ctx context.Context, roomID int) (*models.TournamentRoom, error)
	AddPlayer(ctx context.Context, roomID, userID int) (*models.TournamentPlayer, error)
	RemovePlayer(ctx context.Context, roomID, userID int) error
	Start(ctx context.Context, roomID, userID int) (*models.TournamentRoom, error)
	NextMatch(ctx context.Context, roomID, userID int) (*NextMatchOutcome, error)
	SubmitResult(ctx context.Context, roomID, userID int, input SubmitTournamentResultInput) (*models.TournamentMatch, error)
	End(ctx context.Context, roomID, userID int) (*models.TournamentRoom, error)
	// EndStaleRooms force-completes rooms that stayed in waiting longer
	// than the configured threshold and returns how many were ended.
	EndStaleRooms(ctx context.Context) (int, error)
}

type TournamentServiceConfig struct {
	StaleRoomAfter time.Duration
}

type tournamentService struct {
	tx         repositories.Transactor
	roomRepo   repositories.TournamentRepository
	playerRepo repositories.PlayerRepository
	recorder   ResultRecorder
	notifier   RoomNotifier
	archiver   storage.BracketArchiver
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        TournamentServiceConfig
}

func NewTournamentService(
	tx repositories.Transactor,
	roomRepo repositories.TournamentRepository,
	playerRepo repositories.PlayerRepository,
	recorder ResultRecorder,
	notifier RoomNotifier,
	archiver storage.BracketArchiver,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg TournamentServiceConfig,
) TournamentService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if archiver == nil {
		archiver = storage.NopArchiver{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &tournamentService{
		tx:         tx,
		roomRepo:   roomRepo,
		playerRepo: playerRepo,
		recorder:   recorder,
		notifier:   notifier,
		archiver:   archiver,
		clock:      clock,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
	}
}

func (s *tournamentService) CreateRoom(ctx context.Context, ownerID int, input CreateRoomInput) (*models.TournamentRoom, error) {
	if err := validateName("name", input.Name, 1, 100); err != nil {
		return nil, err
	}

	room := &models.TournamentRoom{
		Name:        input.Name,
		Description: input.Description,
		OwnerID:     ownerID,
		Status:      models.RoomStatusWaiting,
		Players:     []models.TournamentPlayer{},
		PlayersLeft: []int{},
		Matches:     []models.TournamentMatch{},
	}
	if err := s.roomRepo.Create(ctx, nil, room); err != nil {
		if errors.Is(err, repositories.ErrRoomOwnerInvalid) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create tournament room: %w", err)
	}

	s.metrics.RoomsCreated.Inc()
	s.logger.InfoContext(ctx, "tournament room created", slog.Int("room_id", room.ID), slog.Int("owner_id", ownerID))
	return room, nil
}

func (s *tournamentService) ListRooms(ctx context.Context, input ListRoomsInput) ([]models.TournamentRoom, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown room status %q", ErrValidationFailed, *input.Status)
	}
	if input.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidationFailed)
	}
	return s.roomRepo.List(ctx, repositories.ListRoomsFilter{
		Status: input.Status,
		Limit:  normalizeLimit(input.Limit),
		Offset: input.Offset,
	})
}

// GetRoom loads the room row, then its roster, alive roster and matches in parallel.
func (s *tournamentService) GetRoom(ctx context.Context, roomID int) (*models.TournamentRoom, error) {
	room, err := s.roomRepo.GetByID(ctx, nil, roomID)
	if err != nil {
		return nil, s.mapRoomError(err, roomID)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		players, err := s.roomRepo.ListPlayers(gCtx, nil, roomID)
		if err != nil {
			return fmt.Errorf("failed to load roster of room %d: %w", roomID, err)
		}
		room.Players = players
		return nil
	})
	g.Go(func() error {
		left, err := s.roomRepo.ListPlayersLeft(gCtx, nil, roomID)
		if err != nil {
			return fmt.Errorf("failed to load alive roster of room %d: %w", roomID, err)
		}
		room.PlayersLeft = left
		return nil
	})
	g.Go(func() error {
		matches, err := s.roomRepo.ListMatches(gCtx, nil, roomID)
		if err != nil {
			return fmt.Errorf("failed to load matches of room %d: %w", roomID, err)
		}
		room.Matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *tournamentService) AddPlayer(ctx context.Context, roomID, userID int) (*models.TournamentPlayer, error) {
	var added models.TournamentPlayer
	var room *models.TournamentRoom

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		room, err = s.lockRoom(ctx, exec, roomID)
		if err != nil {
			return err
		}
		// Room state is reported before a missing player record.
		if err := brackets.CheckJoinable(room); err != nil {
			return err
		}

		player, err := s.playerRepo.GetByUserIDForUpdate(ctx, exec, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return fmt.Errorf("%w: user %d", models.ErrNotRegistered, userID)
			}
			return fmt.Errorf("failed to get player of user %d: %w", userID, err)
		}

		activeID, err := s.roomRepo.FindActiveRoomID(ctx, exec, player.ID)
		switch {
		case err == nil && activeID != roomID:
			return fmt.Errorf("%w: room %d", ErrPlayerInActiveRoom, activeID)
		case err != nil && !errors.Is(err, repositories.ErrRoomNotFound):
			return fmt.Errorf("failed to look up active room of player %d: %w", player.ID, err)
		}

		tp, err := brackets.AddPlayer(room, player.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.roomRepo.AddPlayer(ctx, exec, tp); err != nil {
			if errors.Is(err, repositories.ErrRoomPlayerConflict) {
				return fmt.Errorf("%w: player %d is already in room %d", models.ErrAlreadyExists, player.ID, roomID)
			}
			return fmt.Errorf("failed to add player %d to room %d: %w", player.ID, roomID, err)
		}
		tp.Username = player.Username
		added = *tp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "player joined tournament room",
		slog.Int("room_id", roomID), slog.Int("player_id", added.PlayerID), slog.Int("roster_size", len(room.Players)))
	s.notifier.BroadcastToRoom(roomID, brackets.MessageRoomUpdated, room)
	return &added, nil
}

func (s *tournamentService) RemovePlayer(ctx context.Context, roomID, userID int) error {
	var room *models.TournamentRoom
	var removed models.TournamentPlayer

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		room, err = s.lockRoom(ctx, exec, roomID)
		if err != nil {
			return err
		}
		player, err := playerForUser(ctx, s.playerRepo, exec, userID)
		if err != nil {
			return err
		}
		removed, err = brackets.RemovePlayer(room, player.ID)
		if err != nil {
			return err
		}
		if err := s.roomRepo.RemovePlayer(ctx, exec, removed.ID); err != nil {
			return fmt.Errorf("failed to remove player %d from room %d: %w", player.ID, roomID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "player left tournament room", slog.Int("room_id", roomID), slog.Int("player_id", removed.PlayerID))
	s.notifier.BroadcastToRoom(roomID, brackets.MessageRoomUpdated, room)
	return nil
}

func (s *tournamentService) Start(ctx context.Context, roomID, userID int) (*models.TournamentRoom, error) {
	var room *models.TournamentRoom

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		room, err = s.lockRoom(ctx, exec, roomID)
		if err != nil {
			return err
		}
		if err := brackets.Start(room, userID); err != nil {
			return err
		}
		if err := s.roomRepo.ReplacePlayersLeft(ctx, exec, roomID, room.PlayersLeft); err != nil {
			return fmt.Errorf("failed to store alive roster of room %d: %w", roomID, err)
		}
		return s.updateRoomState(ctx, exec, room)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RoomsStarted.Inc()
	s.logger.InfoContext(ctx, "tournament started", slog.Int("room_id", roomID), slog.Int("players", len(room.Players)))
	s.notifier.BroadcastToRoom(roomID, brackets.MessageRoomUpdated, room)
	return room, nil
}

func (s *tournamentService) NextMatch(ctx context.Context, roomID, userID int) (*NextMatchOutcome, error) {
	var room *models.TournamentRoom
	var res *brackets.NextMatchResult

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		room, err = s.lockRoom(ctx, exec, roomID)
		if err != nil {
			return err
		}
		if !room.IsOwner(userID) {
			return models.ErrNotOwner
		}

		res, err = brackets.NextMatch(room, s.clock.Now())
		if err != nil {
			return err
		}
		if res.Champion != nil {
			return s.updateRoomState(ctx, exec, room)
		}

		// New matches are inserted in creation order; the live one among
		// them is inserted already ongoing.
		for _, m := range res.NewMatches {
			if err := s.roomRepo.CreateMatch(ctx, exec, m); err != nil {
				return s.mapMatchWriteError(err, roomID)
			}
		}
		if !res.NewRound {
			if err := s.roomRepo.UpdateMatch(ctx, exec, res.Match); err != nil {
				return s.mapMatchWriteError(err, roomID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &NextMatchOutcome{Match: res.Match, NewRound: res.NewRound, Champion: res.Champion, Room: room}
	if res.Champion != nil {
		s.metrics.RoomsCompleted.WithLabelValues(metrics.CompletedChampion).Inc()
		s.logger.InfoContext(ctx, "tournament champion decided",
			slog.Int("room_id", roomID), slog.Int("player_id", res.Champion.PlayerID))
		s.notifier.BroadcastToRoom(roomID, brackets.MessageChampion, room)
		s.archive(ctx, room)
		return out, nil
	}

	s.metrics.MatchesScheduled.Add(float64(len(res.NewMatches)))
	s.logger.InfoContext(ctx, "tournament match live",
		slog.Int("room_id", roomID), slog.Int("match_id", res.Match.ID),
		slog.Int("round", res.Match.Round), slog.Bool("new_round", res.NewRound))
	s.notifier.BroadcastToRoom(roomID, brackets.MessageMatchLive, room)
	return out, nil
}

func (s *tournamentService) SubmitResult(ctx context.Context, roomID, userID int, input SubmitTournamentResultInput) (*models.TournamentMatch, error) {
	var room *models.TournamentRoom
	var outcome *brackets.SubmitResultOutcome

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		room, err = s.lockRoom(ctx, exec, roomID)
		if err != nil {
			return err
		}
		if !room.IsOwner(userID) {
			return models.ErrNotOwner
		}

		outcome, err = brackets.SubmitResult(room, brackets.Result{
			MatchID:     input.MatchID,
			WinnerID:    input.WinnerID,
			LoserID:     input.LoserID,
			WinnerScore: input.WinnerScore,
			LoserScore:  input.LoserScore,
		}, s.clock.Now())
		if err != nil {
			return err
		}

		if err := s.roomRepo.UpdateMatch(ctx, exec, outcome.Match); err != nil {
			return s.mapMatchWriteError(err, roomID)
		}
		if err := s.roomRepo.RemovePlayerLeft(ctx, exec, roomID, outcome.Loser.ID); err != nil {
			return fmt.Errorf("failed to eliminate player %d in room %d: %w", outcome.Loser.ID, roomID, err)
		}

		_, err = s.recorder.Record(ctx, exec, Contest{
			Ref: models.ContestRef{Kind: models.ContestTournamentMatch, ID: outcome.Match.ID},
			Participants: []Participant{
				{PlayerID: outcome.Winner.PlayerID, IsWinner: true, RatingDelta: input.WinnerRatingDelta},
				{PlayerID: outcome.Loser.PlayerID, IsWinner: false, RatingDelta: input.LoserRatingDelta},
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament match decided",
		slog.Int("room_id", roomID), slog.Int("match_id", outcome.Match.ID),
		slog.Int("winner_id", outcome.Winner.ID), slog.Int("loser_id", outcome.Loser.ID),
		slog.Int("alive", len(room.PlayersLeft)))
	s.notifier.BroadcastToRoom(roomID, brackets.MessageMatchResult, room)
	return outcome.Match, nil
}

func (s *tournamentService) End(ctx context.Context, roomID, userID int) (*models.TournamentRoom, error) {
	var room *models.TournamentRoom

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		room, err = s.lockRoom(ctx, exec, roomID)
		if err != nil {
			return err
		}
		if !room.IsOwner(userID) {
			return models.ErrNotOwner
		}
		if err := brackets.End(room, s.clock.Now()); err != nil {
			return err
		}
		return s.updateRoomState(ctx, exec, room)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RoomsCompleted.WithLabelValues(metrics.CompletedEnded).Inc()
	s.logger.InfoContext(ctx, "tournament ended by owner", slog.Int("room_id", roomID))
	s.notifier.BroadcastToRoom(roomID, brackets.MessageRoomUpdated, room)
	s.archive(ctx, room)
	return room, nil
}

func (s *tournamentService) EndStaleRooms(ctx context.Context) (int, error) {
	if s.cfg.StaleRoomAfter <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.cfg.StaleRoomAfter)

	ids, err := s.roomRepo.ListStaleWaitingIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale rooms: %w", err)
	}

	ended := 0
	var errs []error
	for _, roomID := range ids {
		var room *models.TournamentRoom
		err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			var err error
			room, err = s.lockRoom(ctx, exec, roomID)
			if err != nil {
				return err
			}
			// Re-checked under the lock: the room may have started since listing.
			if room.Status != models.RoomStatusWaiting {
				room = nil
				return nil
			}
			if err := brackets.End(room, s.clock.Now()); err != nil {
				return err
			}
			return s.updateRoomState(ctx, exec, room)
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to end stale room", slog.Int("room_id", roomID), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		if room == nil {
			continue
		}
		ended++
		s.metrics.RoomsCompleted.WithLabelValues(metrics.CompletedStale).Inc()
		s.notifier.BroadcastToRoom(roomID, brackets.MessageRoomUpdated, room)
	}

	if ended > 0 {
		s.logger.InfoContext(ctx, "stale tournament rooms ended", slog.Int("count", ended), slog.Time("cutoff", cutoff))
	}
	return ended, errors.Join(errs...)
}

// lockRoom loads the full room snapshot with the room row locked.
func (s *tournamentService) lockRoom(ctx context.Context, exec repositories.SQLExecutor, roomID int) (*models.TournamentRoom, error) {
	room, err := s.roomRepo.GetByIDForUpdate(ctx, exec, roomID)
	if err != nil {
		return nil, s.mapRoomError(err, roomID)
	}
	if room.Players, err = s.roomRepo.ListPlayers(ctx, exec, roomID); err != nil {
		return nil, fmt.Errorf("failed to load roster of room %d: %w", roomID, err)
	}
	if room.PlayersLeft, err = s.roomRepo.ListPlayersLeft(ctx, exec, roomID); err != nil {
		return nil, fmt.Errorf("failed to load alive roster of room %d: %w", roomID, err)
	}
	if room.Matches, err = s.roomRepo.ListMatches(ctx, exec, roomID); err != nil {
		return nil, fmt.Errorf("failed to load matches of room %d: %w", roomID, err)
	}
	return room, nil
}

func (s *tournamentService) updateRoomState(ctx context.Context, exec repositories.SQLExecutor, room *models.TournamentRoom) error {
	if err := s.roomRepo.UpdateState(ctx, exec, room); err != nil {
		return s.mapRoomError(err, room.ID)
	}
	return nil
}

func (s *tournamentService) mapRoomError(err error, roomID int) error {
	if errors.Is(err, repositories.ErrRoomNotFound) {
		return fmt.Errorf("%w: %d", ErrRoomNotFound, roomID)
	}
	return fmt.Errorf("failed to load tournament room %d: %w", roomID, err)
}

func (s *tournamentService) mapMatchWriteError(err error, roomID int) error {
	if errors.Is(err, repositories.ErrLiveMatchConflict) {
		return models.ErrMatchInProgress
	}
	return fmt.Errorf("failed to store match of room %d: %w", roomID, err)
}

// archive uploads the final snapshot. Failures are logged only; the room
// is already committed as completed.
func (s *tournamentService) archive(ctx context.Context, room *models.TournamentRoom) {
	res, err := s.archiver.Archive(ctx, room)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to archive completed bracket", slog.Int("room_id", room.ID), slog.Any("error", err))
		return
	}
	if res != nil {
		s.logger.InfoContext(ctx, "completed bracket archived", slog.Int("room_id", room.ID), slog.String("key", res.Key))
	}
}
