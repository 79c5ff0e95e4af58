package brackets

import "github.com/Dosada05/pong-arena/models"

// NextMatchResult describes what NextMatch changed on the room.
type NextMatchResult struct {
	// Match is the match that just went live. Nil when a champion was decided.
	Match *models.TournamentMatch
	// NewRound reports that a round was generated to produce Match.
	NewRound bool
	// NewMatches point into room.Matches at the matches created by this
	// call, in creation order. They are not persisted yet and carry ID 0.
	NewMatches []*models.TournamentMatch
	// Champion is set when only one player was left alive.
	Champion *models.TournamentPlayer
}

// SubmitResultOutcome carries the decided match and both participants.
type SubmitResultOutcome struct {
	Match  *models.TournamentMatch
	Winner *models.TournamentPlayer
	Loser  *models.TournamentPlayer
}

// Result is the outcome of a refereed tournament match as reported by the caller.
type Result struct {
	MatchID     int
	WinnerID    int
	LoserID     int
	WinnerScore int
	LoserScore  int
}
