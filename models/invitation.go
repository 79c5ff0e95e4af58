package models

import (
	"fmt"
	"time"
)

// InvitationTTL is how long a waiting invitation stays answerable.
const InvitationTTL = 300 * time.Second

type InvitationStatus string

const (
	InvitationWaiting  InvitationStatus = "waiting"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// MatchInvitation is a one-off challenge from one user to another.
// ExpiresAt is set exactly while the invitation is waiting.
type MatchInvitation struct {
	ID           int              `json:"id"`
	SenderID     int              `json:"sender_id"`
	ReceiverID   int              `json:"receiver_id"`
	Status       InvitationStatus `json:"status"`
	Message      string           `json:"message"`
	RejectReason string           `json:"reject_reason,omitempty"`
	MatchID      *int             `json:"match_id,omitempty"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	RespondedAt  *time.Time       `json:"responded_at,omitempty"`
}

func NewMatchInvitation(senderID, receiverID int, message string, now time.Time) *MatchInvitation {
	expiresAt := now.Add(InvitationTTL)
	return &MatchInvitation{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     InvitationWaiting,
		Message:    message,
		ExpiresAt:  &expiresAt,
		CreatedAt:  now,
	}
}

// IsExpired is evaluated lazily on read. Resolved invitations never expire.
func (inv *MatchInvitation) IsExpired(now time.Time) bool {
	if inv.Status != InvitationWaiting || inv.ExpiresAt == nil {
		return false
	}
	return now.After(*inv.ExpiresAt)
}

func (inv *MatchInvitation) IsParty(userID int) bool {
	return inv.SenderID == userID || inv.ReceiverID == userID
}

func (inv *MatchInvitation) Accept(now time.Time) error {
	if err := inv.checkAnswerable(now); err != nil {
		return err
	}
	inv.Status = InvitationAccepted
	inv.resolve(now)
	return nil
}

func (inv *MatchInvitation) Reject(reason string, now time.Time) error {
	if err := inv.checkAnswerable(now); err != nil {
		return err
	}
	inv.Status = InvitationRejected
	inv.RejectReason = reason
	inv.resolve(now)
	return nil
}

// CheckMatchable reports whether a match may be created for the invitation.
func (inv *MatchInvitation) CheckMatchable() error {
	if inv.Status != InvitationAccepted {
		return fmt.Errorf("%w: invitation %d is not accepted", ErrInvalidState, inv.ID)
	}
	if inv.MatchID != nil {
		return fmt.Errorf("%w: invitation %d already has match %d", ErrAlreadyExists, inv.ID, *inv.MatchID)
	}
	return nil
}

// AttachMatch links the match created for an accepted invitation. It can
// happen at most once.
func (inv *MatchInvitation) AttachMatch(matchID int) error {
	if err := inv.CheckMatchable(); err != nil {
		return err
	}
	inv.MatchID = &matchID
	return nil
}

func (inv *MatchInvitation) checkAnswerable(now time.Time) error {
	if inv.Status != InvitationWaiting {
		return fmt.Errorf("%w: invitation %d is %s", ErrInvalidState, inv.ID, inv.Status)
	}
	if inv.IsExpired(now) {
		return ErrInvitationExpired
	}
	return nil
}

func (inv *MatchInvitation) resolve(now time.Time) {
	responded := now
	inv.RespondedAt = &responded
	inv.ExpiresAt = nil
}
