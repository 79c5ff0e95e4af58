package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-arena/metrics"
	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const maxInvitationMessage = 500

type CreateInvitationInput struct {
	ReceiverID int    `json:"receiver_id"`
	Message    string `json:"message"`
}

type RejectInvitationInput struct {
	Reason string `json:"reason"`
}

// InvitationView is an invitation with its expiry evaluated at read time.
type InvitationView struct {
	*models.MatchInvitation
	Expired bool `json:"expired"`
}

type InvitationService interface {
	Create(ctx context.Context, senderID int, input CreateInvitationInput) (*models.MatchInvitation, error)
	Get(ctx context.Context, invitationID, userID int) (*InvitationView, error)
	ListMine(ctx context.Context, userID, limit int) ([]InvitationView, error)
	Accept(ctx context.Context, invitationID, userID int) (*models.MatchInvitation, error)
	Reject(ctx context.Context, invitationID, userID int, input RejectInvitationInput) (*models.MatchInvitation, error)
	CreateMatch(ctx context.Context, invitationID, userID int) (*models.Match, error)
}

type invitationService struct {
	tx         repositories.Transactor
	invRepo    repositories.InvitationRepository
	userRepo   repositories.UserRepository
	playerRepo repositories.PlayerRepository
	matchRepo  repositories.MatchRepository
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewInvitationService(
	tx repositories.Transactor,
	invRepo repositories.InvitationRepository,
	userRepo repositories.UserRepository,
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) InvitationService {
	if logger == nil {
		logger = discardLogger()
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &invitationService{
		tx:         tx,
		invRepo:    invRepo,
		userRepo:   userRepo,
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		clock:      clock,
		metrics:    m,
		logger:     logger,
	}
}

func (s *invitationService) Create(ctx context.Context, senderID int, input CreateInvitationInput) (*models.MatchInvitation, error) {
	if input.ReceiverID <= 0 {
		return nil, fmt.Errorf("%w: receiver_id is required", ErrValidationFailed)
	}
	if input.ReceiverID == senderID {
		return nil, ErrSelfInvitation
	}
	if len([]rune(input.Message)) > maxInvitationMessage {
		return nil, fmt.Errorf("%w: message must be at most %d characters", ErrValidationFailed, maxInvitationMessage)
	}

	if _, err := s.userRepo.GetByID(ctx, input.ReceiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, input.ReceiverID)
		}
		return nil, fmt.Errorf("failed to get receiver %d: %w", input.ReceiverID, err)
	}

	inv := models.NewMatchInvitation(senderID, input.ReceiverID, input.Message, s.clock.Now())
	if err := s.invRepo.Create(ctx, nil, inv); err != nil {
		if errors.Is(err, repositories.ErrInvitationUserInvalid) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.metrics.Invitations.WithLabelValues("created").Inc()
	s.logger.InfoContext(ctx, "invitation created",
		slog.Int("invitation_id", inv.ID), slog.Int("sender_id", senderID), slog.Int("receiver_id", input.ReceiverID))
	return inv, nil
}

// Get is visible to the two parties only. Expiry is computed, never stored.
func (s *invitationService) Get(ctx context.Context, invitationID, userID int) (*InvitationView, error) {
	inv, err := s.invRepo.GetByID(ctx, nil, invitationID)
	if err != nil {
		return nil, s.mapInvitationError(err, invitationID)
	}
	if !inv.IsParty(userID) {
		return nil, ErrForbiddenOperation
	}
	return &InvitationView{MatchInvitation: inv, Expired: inv.IsExpired(s.clock.Now())}, nil
}

func (s *invitationService) ListMine(ctx context.Context, userID, limit int) ([]InvitationView, error) {
	invs, err := s.invRepo.ListForUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations of user %d: %w", userID, err)
	}
	now := s.clock.Now()
	views := make([]InvitationView, 0, len(invs))
	for i := range invs {
		views = append(views, InvitationView{MatchInvitation: &invs[i], Expired: invs[i].IsExpired(now)})
	}
	return views, nil
}

// Accept is reserved to the receiver.
func (s *invitationService) Accept(ctx context.Context, invitationID, userID int) (*models.MatchInvitation, error) {
	inv, err := s.resolve(ctx, invitationID, func(inv *models.MatchInvitation) error {
		if inv.ReceiverID != userID {
			return ErrForbiddenOperation
		}
		return inv.Accept(s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Invitations.WithLabelValues("accepted").Inc()
	s.logger.InfoContext(ctx, "invitation accepted", slog.Int("invitation_id", invitationID))
	return inv, nil
}

// Reject may come from either party; from the sender it acts as a withdrawal.
func (s *invitationService) Reject(ctx context.Context, invitationID, userID int, input RejectInvitationInput) (*models.MatchInvitation, error) {
	inv, err := s.resolve(ctx, invitationID, func(inv *models.MatchInvitation) error {
		if !inv.IsParty(userID) {
			return ErrForbiddenOperation
		}
		return inv.Reject(input.Reason, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Invitations.WithLabelValues("rejected").Inc()
	s.logger.InfoContext(ctx, "invitation rejected", slog.Int("invitation_id", invitationID), slog.Int("by_user_id", userID))
	return inv, nil
}

func (s *invitationService) CreateMatch(ctx context.Context, invitationID, userID int) (*models.Match, error) {
	var match *models.Match

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		inv, err := s.invRepo.GetByIDForUpdate(ctx, exec, invitationID)
		if err != nil {
			return s.mapInvitationError(err, invitationID)
		}
		if !inv.IsParty(userID) {
			return ErrForbiddenOperation
		}
		if err := inv.CheckMatchable(); err != nil {
			return err
		}

		sender, err := playerForUser(ctx, s.playerRepo, exec, inv.SenderID)
		if err != nil {
			return err
		}
		receiver, err := playerForUser(ctx, s.playerRepo, exec, inv.ReceiverID)
		if err != nil {
			return err
		}

		receiverID := receiver.ID
		match = &models.Match{
			Kind:      models.MatchKindPvP,
			Player1ID: sender.ID,
			Player2ID: &receiverID,
			CreatedAt: s.clock.Now(),
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to create match for invitation %d: %w", invitationID, err)
		}
		if err := inv.AttachMatch(match.ID); err != nil {
			return err
		}
		if err := s.invRepo.Update(ctx, exec, inv); err != nil {
			return s.mapInvitationError(err, invitationID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Invitations.WithLabelValues("matched").Inc()
	s.logger.InfoContext(ctx, "match created from invitation",
		slog.Int("invitation_id", invitationID), slog.Int("match_id", match.ID))
	return match, nil
}

// resolve runs fn against the locked invitation and persists the result.
// The lock makes a concurrent accept and reject serialize; the second one
// sees a resolved invitation and fails.
func (s *invitationService) resolve(ctx context.Context, invitationID int, fn func(inv *models.MatchInvitation) error) (*models.MatchInvitation, error) {
	var inv *models.MatchInvitation
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		inv, err = s.invRepo.GetByIDForUpdate(ctx, exec, invitationID)
		if err != nil {
			return s.mapInvitationError(err, invitationID)
		}
		if err := fn(inv); err != nil {
			return err
		}
		if err := s.invRepo.Update(ctx, exec, inv); err != nil {
			return s.mapInvitationError(err, invitationID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invitationService) mapInvitationError(err error, invitationID int) error {
	if errors.Is(err, repositories.ErrInvitationNotFound) {
		return fmt.Errorf("%w: %d", ErrInvitationNotFound, invitationID)
	}
	return fmt.Errorf("failed to access invitation %d: %w", invitationID, err)
}
