package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/pong-arena/metrics"
	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
)

// Participant is one side of a finished contest with the rating delta the
// caller decided for it.
type Participant struct {
	PlayerID    int
	IsWinner    bool
	RatingDelta int
}

// Contest is a finished Match or TournamentMatch ready to be recorded.
type Contest struct {
	Ref          models.ContestRef
	Participants []Participant
}

// ResultRecorder applies a finished contest to player records and appends
// history. It never computes rating deltas.
type ResultRecorder interface {
	Record(ctx context.Context, exec repositories.SQLExecutor, contest Contest) ([]models.MatchHistory, error)
}

type resultRecorder struct {
	playerRepo  repositories.PlayerRepository
	historyRepo repositories.HistoryRepository
	metrics     *metrics.Metrics
}

func NewResultRecorder(playerRepo repositories.PlayerRepository, historyRepo repositories.HistoryRepository, m *metrics.Metrics) ResultRecorder {
	return &resultRecorder{playerRepo: playerRepo, historyRepo: historyRepo, metrics: m}
}

// Record must run inside the caller's transaction so the history and the
// counters commit together with the contest itself.
func (r *resultRecorder) Record(ctx context.Context, exec repositories.SQLExecutor, contest Contest) ([]models.MatchHistory, error) {
	if err := validateContest(contest); err != nil {
		return nil, err
	}

	exists, err := r.historyRepo.ExistsForContest(ctx, exec, contest.Ref)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyRecorded, contest.Ref)
	}

	// Lock player rows in ascending id order so two contests sharing
	// players cannot deadlock.
	participants := append([]Participant(nil), contest.Participants...)
	sort.Slice(participants, func(i, j int) bool { return participants[i].PlayerID < participants[j].PlayerID })

	entries := make([]models.MatchHistory, 0, len(participants))
	for _, p := range participants {
		if err := r.playerRepo.ApplyResult(ctx, exec, p.PlayerID, p.IsWinner, p.RatingDelta); err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, p.PlayerID)
			}
			return nil, fmt.Errorf("failed to apply %s to player %d: %w", contest.Ref, p.PlayerID, err)
		}

		entry := models.MatchHistory{
			PlayerID:     p.PlayerID,
			Contest:      contest.Ref,
			Result:       models.ResultLoss,
			RatingChange: p.RatingDelta,
		}
		if p.IsWinner {
			entry.Result = models.ResultWin
		}
		if err := r.historyRepo.Create(ctx, exec, &entry); err != nil {
			if errors.Is(err, repositories.ErrHistoryConflict) {
				return nil, fmt.Errorf("%w: %s", models.ErrAlreadyRecorded, contest.Ref)
			}
			return nil, fmt.Errorf("failed to append history for player %d: %w", p.PlayerID, err)
		}
		entries = append(entries, entry)
	}

	if r.metrics != nil {
		r.metrics.ResultsRecorded.WithLabelValues(string(contest.Ref.Kind)).Inc()
	}
	return entries, nil
}

func validateContest(c Contest) error {
	if c.Ref.ID <= 0 || (c.Ref.Kind != models.ContestMatch && c.Ref.Kind != models.ContestTournamentMatch) {
		return fmt.Errorf("%w: invalid contest reference %s", ErrValidationFailed, c.Ref)
	}
	if len(c.Participants) == 0 || len(c.Participants) > 2 {
		return fmt.Errorf("%w: contest %s has %d participants", ErrValidationFailed, c.Ref, len(c.Participants))
	}
	if len(c.Participants) == 2 {
		a, b := c.Participants[0], c.Participants[1]
		if a.PlayerID == b.PlayerID || a.IsWinner == b.IsWinner {
			return fmt.Errorf("%w: contest %s needs one winner and one loser", ErrValidationFailed, c.Ref)
		}
	}
	return nil
}
