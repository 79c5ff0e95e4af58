package models

import "time"

// RoomCapacity is the maximum roster size of a tournament room.
const RoomCapacity = 8

// RoomStatus transitions waiting -> ongoing -> completed and never backward.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusOngoing   RoomStatus = "ongoing"
	RoomStatusCompleted RoomStatus = "completed"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusWaiting, RoomStatusOngoing, RoomStatusCompleted:
		return true
	}
	return false
}

type MatchStatus string

const (
	MatchStatusWaiting   MatchStatus = "waiting"
	MatchStatusOngoing   MatchStatus = "ongoing"
	MatchStatusCompleted MatchStatus = "completed"
)

// TournamentRoom is a snapshot of a room with its full roster, alive roster
// and match set, loaded together so the bracket engine can work on it.
type TournamentRoom struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	OwnerID        int        `json:"owner_id"`
	Status         RoomStatus `json:"status"`
	WinnerPlayerID *int       `json:"winner_player_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`

	// Players is the full roster in creation order.
	Players []TournamentPlayer `json:"players"`
	// PlayersLeft holds TournamentPlayer IDs still alive, in pairing order.
	PlayersLeft []int `json:"players_left"`
	// Matches are kept in creation order.
	Matches []TournamentMatch `json:"matches"`
}

func (r *TournamentRoom) Capacity() int {
	return RoomCapacity
}

func (r *TournamentRoom) IsOwner(userID int) bool {
	return r.OwnerID == userID
}

// IsMember reports whether the player has a TournamentPlayer in this room.
func (r *TournamentRoom) IsMember(playerID int) bool {
	return r.PlayerByPlayerID(playerID) != nil
}

func (r *TournamentRoom) PlayerByPlayerID(playerID int) *TournamentPlayer {
	for i := range r.Players {
		if r.Players[i].PlayerID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *TournamentRoom) PlayerByID(tournamentPlayerID int) *TournamentPlayer {
	for i := range r.Players {
		if r.Players[i].ID == tournamentPlayerID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *TournamentRoom) MatchByID(matchID int) *TournamentMatch {
	for i := range r.Matches {
		if r.Matches[i].ID == matchID {
			return &r.Matches[i]
		}
	}
	return nil
}

// CountMatches returns how many matches of this room have the given status.
func (r *TournamentRoom) CountMatches(status MatchStatus) int {
	n := 0
	for _, m := range r.Matches {
		if m.Status == status {
			n++
		}
	}
	return n
}

// CurrentRound is the highest round generated so far, 0 before the first.
func (r *TournamentRoom) CurrentRound() int {
	round := 0
	for _, m := range r.Matches {
		if m.Round > round {
			round = m.Round
		}
	}
	return round
}

// TournamentPlayer is the membership of a Player in one room.
type TournamentPlayer struct {
	ID        int       `json:"id"`
	RoomID    int       `json:"room_id"`
	PlayerID  int       `json:"player_id"`
	CreatedAt time.Time `json:"created_at"`

	Username string `json:"username,omitempty"`
}

// TournamentMatch is one pairing of a round. Winner and loser stay nil
// until a result is submitted.
type TournamentMatch struct {
	ID          int         `json:"id"`
	RoomID      int         `json:"room_id"`
	Round       int         `json:"round"`
	Status      MatchStatus `json:"status"`
	Player1ID   int         `json:"player1_id"`
	Player2ID   int         `json:"player2_id"`
	WinnerID    *int        `json:"winner_id,omitempty"`
	LoserID     *int        `json:"loser_id,omitempty"`
	WinnerScore int         `json:"winner_score"`
	LoserScore  int         `json:"loser_score"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

func (m *TournamentMatch) HasParticipant(tournamentPlayerID int) bool {
	return m.Player1ID == tournamentPlayerID || m.Player2ID == tournamentPlayerID
}
