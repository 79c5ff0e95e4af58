package models

import "time"

// DefaultRating is the rating every new player starts with.
const DefaultRating = 1200

// Player holds the cumulative record of a user across all contests.
type Player struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`

	Username string `json:"username,omitempty"`
}

// ApplyResult is the only mutator of the counters.
func (p *Player) ApplyResult(isWinner bool, ratingDelta int) {
	if isWinner {
		p.Wins++
	} else {
		p.Losses++
	}
	p.Rating += ratingDelta
}
