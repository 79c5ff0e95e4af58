package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
)

var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrPlayerUserConflict = errors.New("user already has a player")
	ErrPlayerUserInvalid  = errors.New("player user reference is invalid")
)

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error)
	GetByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Player, error)
	// GetByUserIDForUpdate locks the player row until the transaction ends.
	GetByUserIDForUpdate(ctx context.Context, exec SQLExecutor, userID int) (*models.Player, error)
	// ApplyResult is the storage side of Player.ApplyResult. It runs as one
	// statement so concurrent contests on the same player serialize.
	ApplyResult(ctx context.Context, exec SQLExecutor, playerID int, isWinner bool, ratingDelta int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const selectPlayer = `
	SELECT p.id, p.user_id, p.wins, p.losses, p.rating, p.created_at, u.username
	FROM players p
	JOIN users u ON u.id = p.user_id`

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	query := `
		INSERT INTO players (user_id, rating)
		VALUES ($1, $2)
		RETURNING id, wins, losses, created_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query, player.UserID, player.Rating).
		Scan(&player.ID, &player.Wins, &player.Losses, &player.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrPlayerUserConflict
			case pqForeignKeyViolation:
				return ErrPlayerUserInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error) {
	return r.scanOne(executor(r.db, exec).QueryRowContext(ctx, selectPlayer+` WHERE p.id = $1`, id))
}

func (r *postgresPlayerRepository) GetByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Player, error) {
	return r.scanOne(executor(r.db, exec).QueryRowContext(ctx, selectPlayer+` WHERE p.user_id = $1`, userID))
}

func (r *postgresPlayerRepository) GetByUserIDForUpdate(ctx context.Context, exec SQLExecutor, userID int) (*models.Player, error) {
	return r.scanOne(executor(r.db, exec).QueryRowContext(ctx, selectPlayer+` WHERE p.user_id = $1 FOR UPDATE OF p`, userID))
}

func (r *postgresPlayerRepository) ApplyResult(ctx context.Context, exec SQLExecutor, playerID int, isWinner bool, ratingDelta int) error {
	query := `
		UPDATE players SET
			wins = wins + CASE WHEN $2 THEN 1 ELSE 0 END,
			losses = losses + CASE WHEN $2 THEN 0 ELSE 1 END,
			rating = rating + $3
		WHERE id = $1`

	result, err := executor(r.db, exec).ExecContext(ctx, query, playerID, isWinner, ratingDelta)
	if err != nil {
		return fmt.Errorf("failed to apply result to player %d: %w", playerID, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) scanOne(row *sql.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.UserID, &p.Wins, &p.Losses, &p.Rating, &p.CreatedAt, &p.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}
