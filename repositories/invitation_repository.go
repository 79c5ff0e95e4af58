package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
)

var (
	ErrInvitationNotFound     = errors.New("invitation not found")
	ErrInvitationUserInvalid  = errors.New("invitation user reference is invalid")
	ErrInvitationMatchInvalid = errors.New("invitation match conflict or invalid")
)

type InvitationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, inv *models.MatchInvitation) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MatchInvitation, error)
	// GetByIDForUpdate locks the invitation row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.MatchInvitation, error)
	Update(ctx context.Context, exec SQLExecutor, inv *models.MatchInvitation) error
	ListForUser(ctx context.Context, userID, limit int) ([]models.MatchInvitation, error)
}

type postgresInvitationRepository struct {
	db *sql.DB
}

func NewPostgresInvitationRepository(db *sql.DB) InvitationRepository {
	return &postgresInvitationRepository{db: db}
}

const selectInvitation = `
	SELECT id, sender_id, receiver_id, status, message, reject_reason,
	       match_id, expires_at, created_at, responded_at
	FROM match_invitations`

func (r *postgresInvitationRepository) Create(ctx context.Context, exec SQLExecutor, inv *models.MatchInvitation) error {
	query := `
		INSERT INTO match_invitations (sender_id, receiver_id, status, message, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := executor(r.db, exec).QueryRowContext(ctx, query,
		inv.SenderID, inv.ReceiverID, inv.Status, inv.Message, inv.ExpiresAt, inv.CreatedAt,
	).Scan(&inv.ID)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrInvitationUserInvalid
		}
		return err
	}
	return nil
}

func (r *postgresInvitationRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.MatchInvitation, error) {
	return scanInvitation(executor(r.db, exec).QueryRowContext(ctx, selectInvitation+` WHERE id = $1`, id))
}

func (r *postgresInvitationRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.MatchInvitation, error) {
	return scanInvitation(executor(r.db, exec).QueryRowContext(ctx, selectInvitation+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *postgresInvitationRepository) Update(ctx context.Context, exec SQLExecutor, inv *models.MatchInvitation) error {
	query := `
		UPDATE match_invitations SET
			status = $1, reject_reason = $2, match_id = $3, expires_at = $4, responded_at = $5
		WHERE id = $6`

	result, err := executor(r.db, exec).ExecContext(ctx, query,
		inv.Status, inv.RejectReason, inv.MatchID, inv.ExpiresAt, inv.RespondedAt, inv.ID)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation, pqForeignKeyViolation:
				return ErrInvitationMatchInvalid
			case pqCheckViolation:
				return fmt.Errorf("invitation %d violates expiry invariant: %w", inv.ID, err)
			}
		}
		return err
	}
	return checkAffectedRows(result, ErrInvitationNotFound)
}

func (r *postgresInvitationRepository) ListForUser(ctx context.Context, userID, limit int) ([]models.MatchInvitation, error) {
	query := selectInvitation + `
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations of user %d: %w", userID, err)
	}
	defer rows.Close()

	invitations := make([]models.MatchInvitation, 0)
	for rows.Next() {
		inv, scanErr := scanInvitation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		invitations = append(invitations, *inv)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return invitations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.MatchInvitation, error) {
	var inv models.MatchInvitation
	err := row.Scan(&inv.ID, &inv.SenderID, &inv.ReceiverID, &inv.Status, &inv.Message, &inv.RejectReason,
		&inv.MatchID, &inv.ExpiresAt, &inv.CreatedAt, &inv.RespondedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}
