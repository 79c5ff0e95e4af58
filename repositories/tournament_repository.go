package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/pong-arena/models"
	"github.com/lib/pq"
)

var (
	ErrRoomNotFound            = errors.New("tournament room not found")
	ErrRoomOwnerInvalid        = errors.New("tournament room owner reference is invalid")
	ErrRoomPlayerConflict      = errors.New("player is already in this tournament room")
	ErrRoomPlayerNotFound      = errors.New("tournament player not found")
	ErrRoomPlayerInvalid       = errors.New("tournament player reference is invalid")
	ErrTournamentMatchNotFound = errors.New("tournament match not found")
	ErrLiveMatchConflict       = errors.New("tournament room already has an ongoing match")
)

type ListRoomsFilter struct {
	Status *models.RoomStatus
	Limit  int
	Offset int
}

// TournamentRepository persists rooms together with their full roster,
// alive roster and match set.
type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, room *models.TournamentRoom) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRoom, error)
	// GetByIDForUpdate locks the room row. Every state transition of a room
	// holds this lock, which serializes them per room.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRoom, error)
	List(ctx context.Context, filter ListRoomsFilter) ([]models.TournamentRoom, error)
	UpdateState(ctx context.Context, exec SQLExecutor, room *models.TournamentRoom) error
	ListStaleWaitingIDs(ctx context.Context, createdBefore time.Time) ([]int, error)
	// FindActiveRoomID returns the non-completed room the player belongs to.
	FindActiveRoomID(ctx context.Context, exec SQLExecutor, playerID int) (int, error)

	ListPlayers(ctx context.Context, exec SQLExecutor, roomID int) ([]models.TournamentPlayer, error)
	AddPlayer(ctx context.Context, exec SQLExecutor, tp *models.TournamentPlayer) error
	RemovePlayer(ctx context.Context, exec SQLExecutor, tournamentPlayerID int) error

	ListPlayersLeft(ctx context.Context, exec SQLExecutor, roomID int) ([]int, error)
	ReplacePlayersLeft(ctx context.Context, exec SQLExecutor, roomID int, tournamentPlayerIDs []int) error
	RemovePlayerLeft(ctx context.Context, exec SQLExecutor, roomID, tournamentPlayerID int) error

	ListMatches(ctx context.Context, exec SQLExecutor, roomID int) ([]models.TournamentMatch, error)
	CreateMatch(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error
	UpdateMatch(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const selectRoom = `
	SELECT id, name, description, owner_id, status, winner_player_id, created_at, ended_at
	FROM tournament_rooms`

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, room *models.TournamentRoom) error {
	query := `
		INSERT INTO tournament_rooms (name, description, owner_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor(r.db, exec).QueryRowContext(ctx, query, room.Name, room.Description, room.OwnerID, room.Status).
		Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrRoomOwnerInvalid
		}
		return err
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRoom, error) {
	return scanRoom(executor(r.db, exec).QueryRowContext(ctx, selectRoom+` WHERE id = $1`, id))
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRoom, error) {
	return scanRoom(executor(r.db, exec).QueryRowContext(ctx, selectRoom+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListRoomsFilter) ([]models.TournamentRoom, error) {
	query := selectRoom + ` WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.TournamentRoom, 0)
	for rows.Next() {
		room, scanErr := scanRoom(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rooms = append(rooms, *room)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *postgresTournamentRepository) UpdateState(ctx context.Context, exec SQLExecutor, room *models.TournamentRoom) error {
	query := `UPDATE tournament_rooms SET status = $1, winner_player_id = $2, ended_at = $3 WHERE id = $4`
	result, err := executor(r.db, exec).ExecContext(ctx, query, room.Status, room.WinnerPlayerID, room.EndedAt, room.ID)
	if err != nil {
		return fmt.Errorf("failed to update state of room %d: %w", room.ID, err)
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}

func (r *postgresTournamentRepository) ListStaleWaitingIDs(ctx context.Context, createdBefore time.Time) ([]int, error) {
	query := `SELECT id FROM tournament_rooms WHERE status = $1 AND created_at < $2 ORDER BY id`
	return queryIDs(ctx, r.db, query, models.RoomStatusWaiting, createdBefore)
}

func (r *postgresTournamentRepository) FindActiveRoomID(ctx context.Context, exec SQLExecutor, playerID int) (int, error) {
	query := `
		SELECT tr.id
		FROM tournament_rooms tr
		JOIN tournament_players tp ON tp.room_id = tr.id
		WHERE tp.player_id = $1 AND tr.status <> $2
		ORDER BY tr.created_at DESC
		LIMIT 1`

	var roomID int
	err := executor(r.db, exec).QueryRowContext(ctx, query, playerID, models.RoomStatusCompleted).Scan(&roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}
	return roomID, nil
}

func (r *postgresTournamentRepository) ListPlayers(ctx context.Context, exec SQLExecutor, roomID int) ([]models.TournamentPlayer, error) {
	query := `
		SELECT tp.id, tp.room_id, tp.player_id, tp.created_at, u.username
		FROM tournament_players tp
		JOIN players p ON p.id = tp.player_id
		JOIN users u ON u.id = p.user_id
		WHERE tp.room_id = $1
		ORDER BY tp.created_at ASC, tp.id ASC`

	rows, err := executor(r.db, exec).QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players of room %d: %w", roomID, err)
	}
	defer rows.Close()

	players := make([]models.TournamentPlayer, 0)
	for rows.Next() {
		var tp models.TournamentPlayer
		if scanErr := rows.Scan(&tp.ID, &tp.RoomID, &tp.PlayerID, &tp.CreatedAt, &tp.Username); scanErr != nil {
			return nil, scanErr
		}
		players = append(players, tp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *postgresTournamentRepository) AddPlayer(ctx context.Context, exec SQLExecutor, tp *models.TournamentPlayer) error {
	query := `
		INSERT INTO tournament_players (room_id, player_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := executor(r.db, exec).QueryRowContext(ctx, query, tp.RoomID, tp.PlayerID, tp.CreatedAt).Scan(&tp.ID)
	if err != nil {
		if pqErr, ok := pqError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrRoomPlayerConflict
			case pqForeignKeyViolation:
				return ErrRoomPlayerInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresTournamentRepository) RemovePlayer(ctx context.Context, exec SQLExecutor, tournamentPlayerID int) error {
	result, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM tournament_players WHERE id = $1`, tournamentPlayerID)
	if err != nil {
		return fmt.Errorf("failed to delete tournament player %d: %w", tournamentPlayerID, err)
	}
	return checkAffectedRows(result, ErrRoomPlayerNotFound)
}

func (r *postgresTournamentRepository) ListPlayersLeft(ctx context.Context, exec SQLExecutor, roomID int) ([]int, error) {
	query := `SELECT tournament_player_id FROM tournament_players_left WHERE room_id = $1 ORDER BY position ASC`
	return queryIDs(ctx, executor(r.db, exec), query, roomID)
}

func (r *postgresTournamentRepository) ReplacePlayersLeft(ctx context.Context, exec SQLExecutor, roomID int, tournamentPlayerIDs []int) error {
	e := executor(r.db, exec)
	if _, err := e.ExecContext(ctx, `DELETE FROM tournament_players_left WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to clear alive roster of room %d: %w", roomID, err)
	}
	if len(tournamentPlayerIDs) == 0 {
		return nil
	}

	ids := make([]int64, len(tournamentPlayerIDs))
	for i, id := range tournamentPlayerIDs {
		ids[i] = int64(id)
	}
	query := `
		INSERT INTO tournament_players_left (room_id, tournament_player_id, position)
		SELECT $1, t.id, t.ord
		FROM unnest($2::int[]) WITH ORDINALITY AS t(id, ord)`

	if _, err := e.ExecContext(ctx, query, roomID, pq.Array(ids)); err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return ErrRoomPlayerInvalid
		}
		return fmt.Errorf("failed to fill alive roster of room %d: %w", roomID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) RemovePlayerLeft(ctx context.Context, exec SQLExecutor, roomID, tournamentPlayerID int) error {
	query := `DELETE FROM tournament_players_left WHERE room_id = $1 AND tournament_player_id = $2`
	result, err := executor(r.db, exec).ExecContext(ctx, query, roomID, tournamentPlayerID)
	if err != nil {
		return fmt.Errorf("failed to eliminate tournament player %d: %w", tournamentPlayerID, err)
	}
	return checkAffectedRows(result, ErrRoomPlayerNotFound)
}

const selectTournamentMatch = `
	SELECT id, room_id, round, status, player1_id, player2_id, winner_id, loser_id,
	       winner_score, loser_score, created_at, started_at, completed_at
	FROM tournament_matches`

func (r *postgresTournamentRepository) ListMatches(ctx context.Context, exec SQLExecutor, roomID int) ([]models.TournamentMatch, error) {
	query := selectTournamentMatch + ` WHERE room_id = $1 ORDER BY id ASC`

	rows, err := executor(r.db, exec).QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches of room %d: %w", roomID, err)
	}
	defer rows.Close()

	matches := make([]models.TournamentMatch, 0)
	for rows.Next() {
		var m models.TournamentMatch
		if scanErr := rows.Scan(&m.ID, &m.RoomID, &m.Round, &m.Status, &m.Player1ID, &m.Player2ID,
			&m.WinnerID, &m.LoserID, &m.WinnerScore, &m.LoserScore, &m.CreatedAt, &m.StartedAt, &m.CompletedAt); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresTournamentRepository) CreateMatch(ctx context.Context, exec SQLExecutor, m *models.TournamentMatch) error {
	query := `
		INSERT INTO tournament_matches (room_id, round, status, player1_id, player2_id, created_at, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := executor(r.db, exec).QueryRowContext(ctx, query,
		m.RoomID, m.Round, m.Status, m.Player1ID, m.Player2ID, m.CreatedAt, m.StartedAt,
	).Scan(&m.ID)
	return handleTournamentMatchError(err)
}

func (r *postgresTournamentRepository) UpdateMatch(ctx context.Context, exec SQLExecutor, m *models.TournamentMatch) error {
	query := `
		UPDATE tournament_matches SET
			status = $1, winner_id = $2, loser_id = $3, winner_score = $4, loser_score = $5,
			started_at = $6, completed_at = $7
		WHERE id = $8 AND room_id = $9`

	result, err := executor(r.db, exec).ExecContext(ctx, query,
		m.Status, m.WinnerID, m.LoserID, m.WinnerScore, m.LoserScore, m.StartedAt, m.CompletedAt, m.ID, m.RoomID)
	if err != nil {
		return handleTournamentMatchError(err)
	}
	return checkAffectedRows(result, ErrTournamentMatchNotFound)
}

func handleTournamentMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := pqError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "uq_tournament_matches_one_ongoing" {
				return ErrLiveMatchConflict
			}
		case pqForeignKeyViolation:
			return ErrRoomPlayerInvalid
		}
	}
	return err
}

func scanRoom(row rowScanner) (*models.TournamentRoom, error) {
	var room models.TournamentRoom
	err := row.Scan(&room.ID, &room.Name, &room.Description, &room.OwnerID, &room.Status,
		&room.WinnerPlayerID, &room.CreatedAt, &room.EndedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func queryIDs(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]int, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
