package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/pong-arena/models"
	"github.com/Dosada05/pong-arena/repositories"
	"github.com/Dosada05/pong-arena/utils"
	"github.com/jonboulle/clockwork"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, *models.Player, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type authService struct {
	tx         repositories.Transactor
	userRepo   repositories.UserRepository
	playerRepo repositories.PlayerRepository
	jwtSecret  []byte
	tokenTTL   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewAuthService(
	tx repositories.Transactor,
	userRepo repositories.UserRepository,
	playerRepo repositories.PlayerRepository,
	jwtSecret []byte,
	tokenTTL time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) AuthService {
	if logger == nil {
		logger = discardLogger()
	}
	return &authService{
		tx:         tx,
		userRepo:   userRepo,
		playerRepo: playerRepo,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		clock:      clock,
		logger:     logger,
	}
}

// Register creates the user together with its player record.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, *models.Player, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := validateName("username", input.Username, 3, 32); err != nil {
		return nil, nil, err
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, nil, fmt.Errorf("%w: invalid email address", ErrValidationFailed)
	}
	if n := len(input.Password); n < minPasswordLength || n > maxPasswordLength {
		return nil, nil, fmt.Errorf("%w: password must be between %d and %d bytes", ErrValidationFailed, minPasswordLength, maxPasswordLength)
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}
	player := &models.Player{Rating: models.DefaultRating}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.userRepo.Create(ctx, exec, user); err != nil {
			switch {
			case errors.Is(err, repositories.ErrUserEmailConflict):
				return ErrUserEmailConflict
			case errors.Is(err, repositories.ErrUserUsernameConflict):
				return ErrUserUsernameConflict
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		player.UserID = user.ID
		if err := s.playerRepo.Create(ctx, exec, player); err != nil {
			return fmt.Errorf("failed to create player for user %d: %w", user.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	player.Username = user.Username

	s.logger.InfoContext(ctx, "user registered", slog.Int("user_id", user.ID), slog.Int("player_id", player.ID))
	return user, player, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.clock.Now()
	token, err := utils.GenerateJWT(user.ID, user.Username, s.jwtSecret, s.tokenTTL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for user %d: %w", user.ID, err)
	}

	user.PasswordHash = ""
	return &LoginResult{User: user, Token: token, ExpiresAt: now.Add(s.tokenTTL)}, nil
}
