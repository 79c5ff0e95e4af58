package models

import (
	"errors"
	"fmt"
)

// Domain errors shared by the bracket engine, the invitation lifecycle and
// the result recorder. The web layer maps them to HTTP responses.
var (
	ErrInvalidState     = errors.New("operation not valid in current state")
	ErrCapacityExceeded = errors.New("tournament room is full")
	ErrNotRegistered    = errors.New("user has no player record")
	ErrNotFound         = errors.New("referenced entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrAlreadyRecorded  = errors.New("contest result already recorded")
	ErrNoPlayersLeft    = errors.New("no players left in tournament room")
)

// Variants of ErrInvalidState. errors.Is(err, ErrInvalidState) holds for all of them.
var (
	ErrNotOwner          = fmt.Errorf("%w: caller is not the owner of this tournament room", ErrInvalidState)
	ErrNotEnoughPlayers  = fmt.Errorf("%w: minimum number of players not met", ErrInvalidState)
	ErrOddPlayerCount    = fmt.Errorf("%w: number of players must be even", ErrInvalidState)
	ErrRoomNotWaiting    = fmt.Errorf("%w: tournament room is not waiting", ErrInvalidState)
	ErrRoomNotOngoing    = fmt.Errorf("%w: tournament room is not ongoing", ErrInvalidState)
	ErrMatchInProgress   = fmt.Errorf("%w: there is an ongoing match", ErrInvalidState)
	ErrInvalidResult     = fmt.Errorf("%w: result does not match the scheduled pairing", ErrInvalidState)
	ErrInvitationExpired = fmt.Errorf("%w: invitation has expired", ErrInvalidState)
)
