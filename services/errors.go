package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/pong-arena/models"
)

// Service-level errors. The not-found, conflict and state variants wrap the
// domain sentinels in models so callers can match on either.
var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	ErrUserNotFound       = fmt.Errorf("%w: user", models.ErrNotFound)
	ErrPlayerNotFound     = fmt.Errorf("%w: player", models.ErrNotFound)
	ErrRoomNotFound       = fmt.Errorf("%w: tournament room", models.ErrNotFound)
	ErrMatchNotFound      = fmt.Errorf("%w: match", models.ErrNotFound)
	ErrInvitationNotFound = fmt.Errorf("%w: invitation", models.ErrNotFound)

	ErrUserEmailConflict    = fmt.Errorf("%w: email address is already in use", models.ErrAlreadyExists)
	ErrUserUsernameConflict = fmt.Errorf("%w: username is already in use", models.ErrAlreadyExists)
	ErrPlayerInActiveRoom   = fmt.Errorf("%w: player is already in an active tournament room", models.ErrAlreadyExists)

	ErrSelfInvitation = fmt.Errorf("%w: cannot invite yourself", ErrValidationFailed)
)
