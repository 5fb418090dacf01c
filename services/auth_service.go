package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/utils"
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
	Me(ctx context.Context, userID int) (*models.User, error)
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authService struct {
	userRepo        repositories.UserRepository
	adminRepo       repositories.AdminRepository
	superAdminEmail string
	logger          *slog.Logger
}

func NewAuthService(
	userRepo repositories.UserRepository,
	adminRepo repositories.AdminRepository,
	superAdminEmail string,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:        userRepo,
		adminRepo:       adminRepo,
		superAdminEmail: utils.NormalizeEmail(superAdminEmail),
		logger:          logger,
	}
}

// checkNotReserved не дает зарегистрировать email владельца или сотрудника.
// Такие аккаунты создаются только через CreateSubAdmin и команду create-owner.
func (s *authService) checkNotReserved(ctx context.Context, email string) error {
	if s.superAdminEmail != "" && email == s.superAdminEmail {
		return ErrUserEmailConflict
	}
	_, err := s.adminRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrUserEmailConflict
	case errors.Is(err, repositories.ErrAdminNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check admin roster: %w", err)
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := utils.NormalizeEmail(input.Email)
	if name == "" || !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: name and a valid email are required", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if err := s.checkNotReserved(ctx, email); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		Mobile:       strings.TrimSpace(input.Mobile),
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserEmailConflict
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, nil, utils.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrAuthInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login", slog.Int("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLogin = &now
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Me(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}
