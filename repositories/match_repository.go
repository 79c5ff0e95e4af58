package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchPlayerInvalid = errors.New("match player reference is invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const selectMatch = `
	SELECT id, kind, player1_id, player2_id, winner_id, loser_id,
	       winner_score, loser_score, created_at, ended_at
	FROM matches
	WHERE id = $1`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches (kind, player1_id, player2_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query, m.Kind, m.Player1ID, m.Player2ID).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrMatchPlayerInvalid
		}
		return err
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.scanOne(executor(r.db, exec).QueryRowContext(ctx, selectMatch, id))
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.scanOne(executor(r.db, exec).QueryRowContext(ctx, selectMatch+` FOR UPDATE`, id))
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET
			winner_id = $1, loser_id = $2, winner_score = $3, loser_score = $4, ended_at = $5
		WHERE id = $6 AND ended_at IS NULL`

	result, err := executor(r.db, exec).ExecContext(ctx, query,
		m.WinnerID, m.LoserID, m.WinnerScore, m.LoserScore, m.EndedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update result of match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) scanOne(row *sql.Row) (*models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.Kind, &m.Player1ID, &m.Player2ID, &m.WinnerID, &m.LoserID,
		&m.WinnerScore, &m.LoserScore, &m.CreatedAt, &m.EndedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}
