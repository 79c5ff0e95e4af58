package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
)

var ErrHistoryConflict = errors.New("history entry already exists for this player and contest")

type HistoryRepository interface {
	ExistsForContest(ctx context.Context, exec SQLExecutor, contest models.ContestRef) (bool, error)
	Create(ctx context.Context, exec SQLExecutor, entry *models.MatchHistory) error
	ListByPlayer(ctx context.Context, playerID, limit, offset int) ([]models.MatchHistory, error)
}

type postgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) HistoryRepository {
	return &postgresHistoryRepository{db: db}
}

func (r *postgresHistoryRepository) ExistsForContest(ctx context.Context, exec SQLExecutor, contest models.ContestRef) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM match_history WHERE contest_kind = $1 AND contest_id = $2)`
	var exists bool
	if err := executor(r.db, exec).QueryRowContext(ctx, query, contest.Kind, contest.ID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check history for %s: %w", contest, err)
	}
	return exists, nil
}

func (r *postgresHistoryRepository) Create(ctx context.Context, exec SQLExecutor, entry *models.MatchHistory) error {
	query := `
		INSERT INTO match_history (player_id, contest_kind, contest_id, result, rating_change)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query,
		entry.PlayerID, entry.Contest.Kind, entry.Contest.ID, entry.Result, entry.RatingChange,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrHistoryConflict
			case pqForeignKeyViolation:
				return ErrPlayerNotFound
			}
		}
		return err
	}
	return nil
}

func (r *postgresHistoryRepository) ListByPlayer(ctx context.Context, playerID, limit, offset int) ([]models.MatchHistory, error) {
	query := `
		SELECT id, player_id, contest_kind, contest_id, result, rating_change, created_at
		FROM match_history
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of player %d: %w", playerID, err)
	}
	defer rows.Close()

	entries := make([]models.MatchHistory, 0)
	for rows.Next() {
		var h models.MatchHistory
		if scanErr := rows.Scan(&h.ID, &h.PlayerID, &h.Contest.Kind, &h.Contest.ID, &h.Result, &h.RatingChange, &h.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, h)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
