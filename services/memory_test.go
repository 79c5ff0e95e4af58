package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
	"github.com/jonboulle/clockwork"
)

// memoryStore backs every in-memory repository used by the service tests.
// Transactions are serialized on txMu, which stands in for the row locks,
// and a failed transaction restores the state captured when it began.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	clock clockwork.Clock
	seq   int

	users       map[int]models.User
	players     map[int]models.Player
	matches     map[int]models.Match
	history     []models.MatchHistory
	invitations map[int]models.MatchInvitation
	rooms       map[int]models.TournamentRoom
	tplayers    map[int]models.TournamentPlayer
	left        map[int][]int
	tmatches    map[int]models.TournamentMatch

	commits   int
	rollbacks int
}

func newMemoryStore(clock clockwork.Clock) *memoryStore {
	return &memoryStore{
		clock:       clock,
		users:       map[int]models.User{},
		players:     map[int]models.Player{},
		matches:     map[int]models.Match{},
		invitations: map[int]models.MatchInvitation{},
		rooms:       map[int]models.TournamentRoom{},
		tplayers:    map[int]models.TournamentPlayer{},
		left:        map[int][]int{},
		tmatches:    map[int]models.TournamentMatch{},
	}
}

type memorySnapshot struct {
	seq         int
	users       map[int]models.User
	players     map[int]models.Player
	matches     map[int]models.Match
	history     []models.MatchHistory
	invitations map[int]models.MatchInvitation
	rooms       map[int]models.TournamentRoom
	tplayers    map[int]models.TournamentPlayer
	left        map[int][]int
	tmatches    map[int]models.TournamentMatch
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	left := make(map[int][]int, len(s.left))
	for k, v := range s.left {
		left[k] = append([]int(nil), v...)
	}
	return memorySnapshot{
		seq:         s.seq,
		users:       copyMap(s.users),
		players:     copyMap(s.players),
		matches:     copyMap(s.matches),
		history:     append([]models.MatchHistory(nil), s.history...),
		invitations: copyMap(s.invitations),
		rooms:       copyMap(s.rooms),
		tplayers:    copyMap(s.tplayers),
		left:        left,
		tmatches:    copyMap(s.tmatches),
	}
}

func (s *memoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.users = snap.users
	s.players = snap.players
	s.matches = snap.matches
	s.history = snap.history
	s.invitations = snap.invitations
	s.rooms = snap.rooms
	s.tplayers = snap.tplayers
	s.left = snap.left
	s.tmatches = snap.tmatches
}

func (s *memoryStore) nextID() int {
	s.seq++
	return s.seq
}

func (s *memoryStore) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		s.mu.Lock()
		s.rollbacks++
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// seedUser registers a user with a player record and returns both ids.
func (s *memoryStore) seedUser(username string) (userID, playerID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID = s.nextID()
	s.users[userID] = models.User{ID: userID, Username: username, Email: username + "@example.com", CreatedAt: s.clock.Now()}
	playerID = s.nextID()
	s.players[playerID] = models.Player{ID: playerID, UserID: userID, Rating: models.DefaultRating, CreatedAt: s.clock.Now()}
	return userID, playerID
}

func (s *memoryStore) player(id int) models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id]
}

func (s *memoryStore) historyFor(playerID int) []models.MatchHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MatchHistory
	for _, h := range s.history {
		if h.PlayerID == playerID {
			out = append(out, h)
		}
	}
	return out
}

// users

type memoryUserRepo struct{ s *memoryStore }

func (r memoryUserRepo) Create(_ context.Context, _ repositories.SQLExecutor, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if u.Username == user.Username {
			return repositories.ErrUserUsernameConflict
		}
	}
	user.ID = r.s.nextID()
	user.CreatedAt = r.s.clock.Now()
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r memoryUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

// players

type memoryPlayerRepo struct{ s *memoryStore }

func (r memoryPlayerRepo) Create(_ context.Context, _ repositories.SQLExecutor, player *models.Player) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[player.UserID]; !ok {
		return repositories.ErrPlayerUserInvalid
	}
	for _, p := range r.s.players {
		if p.UserID == player.UserID {
			return repositories.ErrPlayerUserConflict
		}
	}
	player.ID = r.s.nextID()
	player.CreatedAt = r.s.clock.Now()
	r.s.players[player.ID] = *player
	return nil
}

func (r memoryPlayerRepo) withUsername(p models.Player) *models.Player {
	p.Username = r.s.users[p.UserID].Username
	return &p
}

func (r memoryPlayerRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return r.withUsername(p), nil
}

func (r memoryPlayerRepo) GetByUserID(_ context.Context, _ repositories.SQLExecutor, userID int) (*models.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.players {
		if p.UserID == userID {
			return r.withUsername(p), nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r memoryPlayerRepo) GetByUserIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, userID int) (*models.Player, error) {
	return r.GetByUserID(ctx, exec, userID)
}

func (r memoryPlayerRepo) ApplyResult(_ context.Context, _ repositories.SQLExecutor, playerID int, isWinner bool, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.players[playerID]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.ApplyResult(isWinner, delta)
	r.s.players[playerID] = p
	return nil
}

// matches

type memoryMatchRepo struct{ s *memoryStore }

func (r memoryMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.players[m.Player1ID]; !ok {
		return repositories.ErrMatchPlayerInvalid
	}
	m.ID = r.s.nextID()
	m.CreatedAt = r.s.clock.Now()
	r.s.matches[m.ID] = *m
	return nil
}

func (r memoryMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (r memoryMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memoryMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.matches[m.ID]
	if !ok || stored.EndedAt != nil {
		return repositories.ErrMatchNotFound
	}
	r.s.matches[m.ID] = *m
	return nil
}

// history

type memoryHistoryRepo struct{ s *memoryStore }

func (r memoryHistoryRepo) ExistsForContest(_ context.Context, _ repositories.SQLExecutor, ref models.ContestRef) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.history {
		if h.Contest == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryHistoryRepo) Create(_ context.Context, _ repositories.SQLExecutor, entry *models.MatchHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.history {
		if h.PlayerID == entry.PlayerID && h.Contest == entry.Contest {
			return repositories.ErrHistoryConflict
		}
	}
	entry.ID = r.s.nextID()
	entry.CreatedAt = r.s.clock.Now()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r memoryHistoryRepo) ListByPlayer(_ context.Context, playerID, limit, offset int) ([]models.MatchHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.MatchHistory
	for i := len(r.s.history) - 1; i >= 0; i-- {
		if r.s.history[i].PlayerID == playerID {
			out = append(out, r.s.history[i])
		}
	}
	if offset >= len(out) {
		return []models.MatchHistory{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// invitations

type memoryInvitationRepo struct{ s *memoryStore }

func (r memoryInvitationRepo) Create(_ context.Context, _ repositories.SQLExecutor, inv *models.MatchInvitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[inv.SenderID]; !ok {
		return repositories.ErrInvitationUserInvalid
	}
	if _, ok := r.s.users[inv.ReceiverID]; !ok {
		return repositories.ErrInvitationUserInvalid
	}
	inv.ID = r.s.nextID()
	r.s.invitations[inv.ID] = *inv
	return nil
}

func (r memoryInvitationRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.MatchInvitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, repositories.ErrInvitationNotFound
	}
	return &inv, nil
}

func (r memoryInvitationRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.MatchInvitation, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memoryInvitationRepo) Update(_ context.Context, _ repositories.SQLExecutor, inv *models.MatchInvitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invitations[inv.ID]; !ok {
		return repositories.ErrInvitationNotFound
	}
	if inv.MatchID != nil {
		for _, other := range r.s.invitations {
			if other.ID != inv.ID && other.MatchID != nil && *other.MatchID == *inv.MatchID {
				return repositories.ErrInvitationMatchInvalid
			}
		}
	}
	r.s.invitations[inv.ID] = *inv
	return nil
}

func (r memoryInvitationRepo) ListForUser(_ context.Context, userID, limit int) ([]models.MatchInvitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.MatchInvitation
	for _, inv := range r.s.invitations {
		if inv.IsParty(userID) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// tournaments

type memoryTournamentRepo struct{ s *memoryStore }

func (r memoryTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, room *models.TournamentRoom) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[room.OwnerID]; !ok {
		return repositories.ErrRoomOwnerInvalid
	}
	room.ID = r.s.nextID()
	room.CreatedAt = r.s.clock.Now()
	row := *room
	row.Players, row.PlayersLeft, row.Matches = nil, nil, nil
	r.s.rooms[room.ID] = row
	return nil
}

func (r memoryTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.TournamentRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, repositories.ErrRoomNotFound
	}
	return &room, nil
}

func (r memoryTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentRoom, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memoryTournamentRepo) List(_ context.Context, filter repositories.ListRoomsFilter) ([]models.TournamentRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TournamentRoom
	for _, room := range r.s.rooms {
		if filter.Status == nil || room.Status == *filter.Status {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Offset >= len(out) {
		return []models.TournamentRoom{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memoryTournamentRepo) UpdateState(_ context.Context, _ repositories.SQLExecutor, room *models.TournamentRoom) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.rooms[room.ID]
	if !ok {
		return repositories.ErrRoomNotFound
	}
	row.Status = room.Status
	row.WinnerPlayerID = room.WinnerPlayerID
	row.EndedAt = room.EndedAt
	r.s.rooms[room.ID] = row
	return nil
}

func (r memoryTournamentRepo) ListStaleWaitingIDs(_ context.Context, createdBefore time.Time) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int
	for id, room := range r.s.rooms {
		if room.Status == models.RoomStatusWaiting && room.CreatedAt.Before(createdBefore) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r memoryTournamentRepo) FindActiveRoomID(_ context.Context, _ repositories.SQLExecutor, playerID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tp := range r.s.tplayers {
		if tp.PlayerID == playerID && r.s.rooms[tp.RoomID].Status != models.RoomStatusCompleted {
			return tp.RoomID, nil
		}
	}
	return 0, repositories.ErrRoomNotFound
}

func (r memoryTournamentRepo) ListPlayers(_ context.Context, _ repositories.SQLExecutor, roomID int) ([]models.TournamentPlayer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.TournamentPlayer{}
	for _, tp := range r.s.tplayers {
		if tp.RoomID == roomID {
			tp.Username = r.s.users[r.s.players[tp.PlayerID].UserID].Username
			out = append(out, tp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryTournamentRepo) AddPlayer(_ context.Context, _ repositories.SQLExecutor, tp *models.TournamentPlayer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.tplayers {
		if other.RoomID == tp.RoomID && other.PlayerID == tp.PlayerID {
			return repositories.ErrRoomPlayerConflict
		}
	}
	tp.ID = r.s.nextID()
	r.s.tplayers[tp.ID] = *tp
	return nil
}

func (r memoryTournamentRepo) RemovePlayer(_ context.Context, _ repositories.SQLExecutor, tpID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tplayers[tpID]; !ok {
		return repositories.ErrRoomPlayerNotFound
	}
	delete(r.s.tplayers, tpID)
	return nil
}

func (r memoryTournamentRepo) ListPlayersLeft(_ context.Context, _ repositories.SQLExecutor, roomID int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]int{}, r.s.left[roomID]...), nil
}

func (r memoryTournamentRepo) ReplacePlayersLeft(_ context.Context, _ repositories.SQLExecutor, roomID int, ids []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.left[roomID] = append([]int(nil), ids...)
	return nil
}

func (r memoryTournamentRepo) RemovePlayerLeft(_ context.Context, _ repositories.SQLExecutor, roomID, tpID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := r.s.left[roomID]
	for i, id := range ids {
		if id == tpID {
			r.s.left[roomID] = append(append([]int(nil), ids[:i]...), ids[i+1:]...)
			return nil
		}
	}
	return repositories.ErrRoomPlayerNotFound
}

func (r memoryTournamentRepo) ListMatches(_ context.Context, _ repositories.SQLExecutor, roomID int) ([]models.TournamentMatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.TournamentMatch{}
	for _, m := range r.s.tmatches {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// liveConflict mirrors the partial unique index on ongoing matches.
func (r memoryTournamentRepo) liveConflict(m *models.TournamentMatch) bool {
	if m.Status != models.MatchStatusOngoing {
		return false
	}
	for _, other := range r.s.tmatches {
		if other.ID != m.ID && other.RoomID == m.RoomID && other.Status == models.MatchStatusOngoing {
			return true
		}
	}
	return false
}

func (r memoryTournamentRepo) CreateMatch(_ context.Context, _ repositories.SQLExecutor, m *models.TournamentMatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.liveConflict(m) {
		return repositories.ErrLiveMatchConflict
	}
	m.ID = r.s.nextID()
	r.s.tmatches[m.ID] = *m
	return nil
}

func (r memoryTournamentRepo) UpdateMatch(_ context.Context, _ repositories.SQLExecutor, m *models.TournamentMatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tmatches[m.ID]; !ok {
		return repositories.ErrTournamentMatchNotFound
	}
	if r.liveConflict(m) {
		return repositories.ErrLiveMatchConflict
	}
	r.s.tmatches[m.ID] = *m
	return nil
}

// recordingNotifier captures broadcasts in order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) BroadcastToRoom(_ int, msgType string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, msgType)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
