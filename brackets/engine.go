// Package brackets implements the single-elimination bracket engine and the
// websocket feed that streams room state to spectators.
//
// The engine functions operate on a loaded *models.TournamentRoom snapshot and
// never touch storage. Callers hold the room lock, call one function, and
// persist what it reports.
package brackets

import (
	"fmt"
	"time"

	"github.com/Dosada05/pong-arena/models"
)

// MinPlayers is the smallest roster a room can start with.
const MinPlayers = 4

// CheckJoinable reports whether one more player may join the room.
func CheckJoinable(room *models.TournamentRoom) error {
	if room.Status != models.RoomStatusWaiting {
		return models.ErrRoomNotWaiting
	}
	if len(room.Players) >= room.Capacity() {
		return models.ErrCapacityExceeded
	}
	return nil
}

// AddPlayer appends a new TournamentPlayer for playerID to the full roster.
// The returned pointer is into room.Players and has ID 0 until persisted.
func AddPlayer(room *models.TournamentRoom, playerID int, now time.Time) (*models.TournamentPlayer, error) {
	if err := CheckJoinable(room); err != nil {
		return nil, err
	}
	if room.IsMember(playerID) {
		return nil, fmt.Errorf("%w: player %d is already in room %d", models.ErrAlreadyExists, playerID, room.ID)
	}

	room.Players = append(room.Players, models.TournamentPlayer{
		RoomID:    room.ID,
		PlayerID:  playerID,
		CreatedAt: now,
	})
	return &room.Players[len(room.Players)-1], nil
}

// RemovePlayer drops the player's membership and returns it so the caller
// can delete it.
func RemovePlayer(room *models.TournamentRoom, playerID int) (models.TournamentPlayer, error) {
	if room.Status != models.RoomStatusWaiting {
		return models.TournamentPlayer{}, models.ErrRoomNotWaiting
	}

	for i, tp := range room.Players {
		if tp.PlayerID != playerID {
			continue
		}
		players := make([]models.TournamentPlayer, 0, len(room.Players)-1)
		players = append(players, room.Players[:i]...)
		players = append(players, room.Players[i+1:]...)
		room.Players = players
		return tp, nil
	}
	return models.TournamentPlayer{}, fmt.Errorf("%w: player %d is not in room %d", models.ErrNotFound, playerID, room.ID)
}

// Start opens the bracket. The checks run in a fixed order so callers get a
// stable error for a room that violates several of them.
func Start(room *models.TournamentRoom, callerUserID int) error {
	if !room.IsOwner(callerUserID) {
		return models.ErrNotOwner
	}
	if len(room.Players) < MinPlayers {
		return models.ErrNotEnoughPlayers
	}
	if len(room.Players)%2 != 0 {
		return models.ErrOddPlayerCount
	}
	if room.Status != models.RoomStatusWaiting {
		return models.ErrRoomNotWaiting
	}

	alive := make([]int, 0, len(room.Players))
	for _, tp := range room.Players {
		alive = append(alive, tp.ID)
	}
	room.PlayersLeft = alive
	room.Status = models.RoomStatusOngoing
	return nil
}

// NextMatch decides the champion or puts the next match live, generating a
// new round first when the current one is exhausted.
func NextMatch(room *models.TournamentRoom, now time.Time) (*NextMatchResult, error) {
	if room.Status != models.RoomStatusOngoing {
		return nil, models.ErrRoomNotOngoing
	}
	if len(room.PlayersLeft) == 0 {
		return nil, models.ErrNoPlayersLeft
	}

	// Must run before round generation: a lone survivor cannot be paired.
	if len(room.PlayersLeft) == 1 {
		champion := room.PlayerByID(room.PlayersLeft[0])
		if champion == nil {
			return nil, fmt.Errorf("%w: alive player %d is not on the roster", models.ErrNotFound, room.PlayersLeft[0])
		}
		winner := champion.PlayerID
		ended := now
		room.WinnerPlayerID = &winner
		room.Status = models.RoomStatusCompleted
		room.EndedAt = &ended
		return &NextMatchResult{Champion: champion}, nil
	}

	if room.CountMatches(models.MatchStatusOngoing) > 0 {
		return nil, models.ErrMatchInProgress
	}

	result := &NextMatchResult{}
	if room.CountMatches(models.MatchStatusWaiting) == 0 {
		generated, err := nextRound(room, now)
		if err != nil {
			return nil, err
		}
		first := len(room.Matches)
		room.Matches = append(room.Matches, generated...)
		for i := first; i < len(room.Matches); i++ {
			result.NewMatches = append(result.NewMatches, &room.Matches[i])
		}
		result.NewRound = true
	}

	match := latestWaitingMatch(room)
	if match == nil {
		return nil, fmt.Errorf("%w: no waiting match after round generation", models.ErrInvalidState)
	}
	started := now
	match.Status = models.MatchStatusOngoing
	match.StartedAt = &started
	result.Match = match
	return result, nil
}

// SubmitResult decides the live match and eliminates the loser. Nothing on
// the room changes when an error is returned.
func SubmitResult(room *models.TournamentRoom, res Result, now time.Time) (*SubmitResultOutcome, error) {
	if room.Status != models.RoomStatusOngoing {
		return nil, models.ErrRoomNotOngoing
	}
	match := room.MatchByID(res.MatchID)
	if match == nil {
		return nil, fmt.Errorf("%w: match %d does not belong to room %d", models.ErrInvalidState, res.MatchID, room.ID)
	}
	if match.Status != models.MatchStatusOngoing {
		return nil, fmt.Errorf("%w: match %d is %s", models.ErrInvalidState, match.ID, match.Status)
	}
	if res.WinnerID == res.LoserID || !match.HasParticipant(res.WinnerID) || !match.HasParticipant(res.LoserID) {
		return nil, ErrResultMismatch(match, res)
	}
	if res.WinnerScore < 0 || res.LoserScore < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", models.ErrInvalidResult)
	}

	winner := room.PlayerByID(res.WinnerID)
	loser := room.PlayerByID(res.LoserID)
	if winner == nil || loser == nil {
		return nil, fmt.Errorf("%w: match %d references a player outside the roster", models.ErrNotFound, match.ID)
	}

	winnerID, loserID := res.WinnerID, res.LoserID
	completed := now
	match.WinnerID = &winnerID
	match.LoserID = &loserID
	match.WinnerScore = res.WinnerScore
	match.LoserScore = res.LoserScore
	match.Status = models.MatchStatusCompleted
	match.CompletedAt = &completed
	removeAlive(room, loserID)

	return &SubmitResultOutcome{Match: match, Winner: winner, Loser: loser}, nil
}

// End force-completes the room for administrative termination.
func End(room *models.TournamentRoom, now time.Time) error {
	if room.Status == models.RoomStatusCompleted {
		return fmt.Errorf("%w: room %d is already completed", models.ErrInvalidState, room.ID)
	}
	ended := now
	room.Status = models.RoomStatusCompleted
	room.EndedAt = &ended
	return nil
}

// ErrResultMismatch builds the error returned when a submitted result names
// players other than the scheduled pair.
func ErrResultMismatch(match *models.TournamentMatch, res Result) error {
	return fmt.Errorf("%w: match %d is %d vs %d, got winner %d loser %d",
		models.ErrInvalidResult, match.ID, match.Player1ID, match.Player2ID, res.WinnerID, res.LoserID)
}
