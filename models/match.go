package models

import (
	"fmt"
	"time"
)

type MatchKind string

const (
	MatchKindPvP MatchKind = "pvp"
	MatchKindPvE MatchKind = "pve"
)

// Match is an ad-hoc contest outside of any tournament room. It is created
// scheduled (participants known, no result) and becomes immutable once
// EndedAt is set. A PvE match has no second player.
type Match struct {
	ID          int        `json:"id"`
	Kind        MatchKind  `json:"kind"`
	Player1ID   int        `json:"player1_id"`
	Player2ID   *int       `json:"player2_id,omitempty"`
	WinnerID    *int       `json:"winner_id,omitempty"`
	LoserID     *int       `json:"loser_id,omitempty"`
	WinnerScore int        `json:"winner_score"`
	LoserScore  int        `json:"loser_score"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

func (m *Match) IsFinished() bool {
	return m.EndedAt != nil
}

func (m *Match) HasParticipant(playerID int) bool {
	if m.Player1ID == playerID {
		return true
	}
	return m.Player2ID != nil && *m.Player2ID == playerID
}

// Finish records the outcome. For PvE exactly one of winnerID/loserID is the
// player and the other is nil (the environment).
func (m *Match) Finish(winnerID, loserID *int, winnerScore, loserScore int, now time.Time) error {
	if m.IsFinished() {
		return fmt.Errorf("%w: match %d already finished", ErrInvalidState, m.ID)
	}
	if winnerScore < 0 || loserScore < 0 {
		return fmt.Errorf("%w: scores must be non-negative", ErrInvalidResult)
	}

	switch m.Kind {
	case MatchKindPvP:
		if winnerID == nil || loserID == nil || m.Player2ID == nil {
			return ErrInvalidResult
		}
		w, l := *winnerID, *loserID
		p1, p2 := m.Player1ID, *m.Player2ID
		if !((w == p1 && l == p2) || (w == p2 && l == p1)) {
			return ErrInvalidResult
		}
	case MatchKindPvE:
		if (winnerID == nil) == (loserID == nil) {
			return ErrInvalidResult
		}
		if winnerID != nil && *winnerID != m.Player1ID {
			return ErrInvalidResult
		}
		if loserID != nil && *loserID != m.Player1ID {
			return ErrInvalidResult
		}
	default:
		return fmt.Errorf("%w: unknown match kind %q", ErrInvalidState, m.Kind)
	}

	m.WinnerID = winnerID
	m.LoserID = loserID
	m.WinnerScore = winnerScore
	m.LoserScore = loserScore
	ended := now
	m.EndedAt = &ended
	return nil
}

// ContestKind tags which table a ContestRef points into.
type ContestKind string

const (
	ContestMatch           ContestKind = "match"
	ContestTournamentMatch ContestKind = "tournament_match"
)

// ContestRef references either an ad-hoc Match or a TournamentMatch.
type ContestRef struct {
	Kind ContestKind `json:"kind"`
	ID   int         `json:"id"`
}

func (c ContestRef) String() string {
	return fmt.Sprintf("%s:%d", c.Kind, c.ID)
}

type MatchResult string

const (
	ResultWin  MatchResult = "win"
	ResultLoss MatchResult = "loss"
)

// MatchHistory is an append-only audit entry, one per player per contest.
type MatchHistory struct {
	ID           int         `json:"id"`
	PlayerID     int         `json:"player_id"`
	Contest      ContestRef  `json:"contest"`
	Result       MatchResult `json:"result"`
	RatingChange int         `json:"rating_change"`
	CreatedAt    time.Time   `json:"created_at"`
}
