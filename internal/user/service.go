package user

import (
	"context"
	"errors"

	"prepa/internal/auth"
	"prepa/internal/ledger"
	"prepa/internal/logger"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CreditGranter is the slice of the ledger the user service needs to
// grant the signup bonus.
type CreditGranter interface {
	Credit(ctx context.Context, userID int, amount int64, kind ledger.Kind, description string, reference *string) (*ledger.Transaction, error)
}

// Welcomer queues the welcome email for a new account.
type Welcomer interface {
	SendWelcome(ctx context.Context, email, name string, bonusCredits int64) error
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *User, error)
}

type service struct {
	repo      Repository
	credits   CreditGranter
	welcomer  Welcomer
	jwtSecret string
	bonus     int64
}

func NewService(repo Repository, credits CreditGranter, welcomer Welcomer, jwtSecret string, signupBonus int64) Service {
	return &service{
		repo:      repo,
		credits:   credits,
		welcomer:  welcomer,
		jwtSecret: jwtSecret,
		bonus:     signupBonus,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, string, string, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	user, err := s.repo.Create(ctx, req.Name, req.Email, passwordHash, auth.RoleStudent)
	if err != nil {
		return nil, "", "", err
	}

	if s.bonus > 0 {
		_, err := s.credits.Credit(ctx, user.ID, s.bonus, ledger.KindBonus, "signup bonus", nil)
		if err != nil {
			// The account exists. The bonus can be granted manually.
			logger.WithError(err).Error("failed to grant signup bonus", "user_id", user.ID)
		}
	}

	if s.welcomer != nil {
		if err := s.welcomer.SendWelcome(ctx, user.Email, user.Name, s.bonus); err != nil {
			logger.WithError(err).Error("failed to queue welcome email", "user_id", user.ID)
		}
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		user.ID,
		user.Email,
		user.Role,
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		user.ID,
		user.Email,
		user.Role,
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *User, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", nil, ErrUserNotFound
	}

	newAccessToken, err := auth.GenerateAccessToken(user.ID, user.Email, user.Role, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, user, nil
}
