package brackets

import (
	"fmt"
	"time"

	"github.com/Dosada05/pong-arena/models"
)

// nextRound pairs the alive roster sequentially in its current order:
// (0,1), (2,3), ... Each pair becomes one waiting match of a new round.
// Survivors are re-paired every round, so no seeding tree is kept. With an
// odd roster the last alive player is left unpaired and gets a bye.
func nextRound(room *models.TournamentRoom, now time.Time) ([]models.TournamentMatch, error) {
	if room.Status != models.RoomStatusOngoing {
		return nil, models.ErrRoomNotOngoing
	}
	if room.CountMatches(models.MatchStatusOngoing) > 0 {
		return nil, models.ErrMatchInProgress
	}

	alive := room.PlayersLeft
	if len(alive) < 2 {
		return nil, fmt.Errorf("%w: cannot pair %d players", models.ErrInvalidState, len(alive))
	}

	round := room.CurrentRound() + 1
	matches := make([]models.TournamentMatch, 0, len(alive)/2)
	for i := 0; i+1 < len(alive); i += 2 {
		matches = append(matches, models.TournamentMatch{
			RoomID:    room.ID,
			Round:     round,
			Status:    models.MatchStatusWaiting,
			Player1ID: alive[i],
			Player2ID: alive[i+1],
			CreatedAt: now,
		})
	}
	return matches, nil
}

// latestWaitingMatch returns the most recently created waiting match.
func latestWaitingMatch(room *models.TournamentRoom) *models.TournamentMatch {
	for i := len(room.Matches) - 1; i >= 0; i-- {
		if room.Matches[i].Status == models.MatchStatusWaiting {
			return &room.Matches[i]
		}
	}
	return nil
}

func removeAlive(room *models.TournamentRoom, tournamentPlayerID int) {
	left := make([]int, 0, len(room.PlayersLeft))
	for _, id := range room.PlayersLeft {
		if id != tournamentPlayerID {
			left = append(left, id)
		}
	}
	room.PlayersLeft = left
}
