package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/utils"
)

const (
	minPasswordLength     = 6
	defaultAdminLogsLimit = 100
	maxAdminLogsLimit     = 500
)

// ActivityLogger пишет журнал действий админов. Ошибка записи никогда не прерывает действие.
type ActivityLogger interface {
	Record(ctx context.Context, actor models.Actor, action string)
}

type nopActivity struct{}

func (nopActivity) Record(context.Context, models.Actor, string) {}

type CreateSubAdminInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminService interface {
	ActivityLogger
	EnsureOwner(ctx context.Context, email, name, password string) (*models.User, error)
	CreateSubAdmin(ctx context.Context, actor models.Actor, input CreateSubAdminInput) (*models.Admin, error)
	ListSubAdmins(ctx context.Context, actor models.Actor) ([]models.Admin, error)
	DeleteSubAdmin(ctx context.Context, actor models.Actor, id int) error
	ListLogs(ctx context.Context, actor models.Actor, limit int) ([]models.AdminLog, error)
	ListUsers(ctx context.Context, actor models.Actor, limit, offset int) ([]models.User, error)
}

type adminService struct {
	adminRepo  repositories.AdminRepository
	userRepo   repositories.UserRepository
	transactor repositories.Transactor
	logger     *slog.Logger
}

func NewAdminService(
	adminRepo repositories.AdminRepository,
	userRepo repositories.UserRepository,
	transactor repositories.Transactor,
	logger *slog.Logger,
) AdminService {
	return &adminService{
		adminRepo:  adminRepo,
		userRepo:   userRepo,
		transactor: transactor,
		logger:     logger,
	}
}

func (s *adminService) Record(ctx context.Context, actor models.Actor, action string) {
	entry := &models.AdminLog{AdminEmail: actor.Email, Action: action}
	if err := s.adminRepo.CreateLog(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to write admin log",
			slog.String("admin_email", actor.Email),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// CreateSubAdmin добавляет сотрудника в список админов и создает ему аккаунт
// с bcrypt-хешем пароля; вход идет через обычный /auth/login.
// Уже зарегистрированный email не принимается: владелец аккаунта мог быть кем угодно.
func (s *adminService) CreateSubAdmin(ctx context.Context, actor models.Actor, input CreateSubAdminInput) (*models.Admin, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbiddenOperation
	}

	name := strings.TrimSpace(input.Name)
	email := utils.NormalizeEmail(input.Email)
	if name == "" || !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: name and a valid email are required", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Admin{
		Name:      name,
		Email:     email,
		Role:      models.RoleSubAdmin,
		CreatedBy: actor.Email,
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.adminRepo.Create(ctx, exec, admin); err != nil {
			return err
		}
		// Уникальный индекс по email закрывает гонку с параллельной регистрацией.
		err := s.userRepo.Create(ctx, exec, &models.User{Name: name, Email: email, PasswordHash: hash})
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return fmt.Errorf("%w: an account with this email is already registered", ErrAdminEmailConflict)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Record(ctx, actor, fmt.Sprintf("Created new admin: %s (%s)", admin.Name, admin.Email))
	return admin, nil
}

// EnsureOwner создает аккаунт владельца или сбрасывает ему пароль.
// Вызывается только из CLI, HTTP-регистрация на этот email закрыта.
func (s *adminService) EnsureOwner(ctx context.Context, email, name, password string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: owner email is not valid", ErrValidationFailed)
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = superAdminName
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var owner *models.User
	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		existing, err := s.userRepo.GetByEmail(ctx, exec, email)
		switch {
		case err == nil:
			owner = existing
			return s.userRepo.UpdatePassword(ctx, exec, existing.ID, hash)
		case errors.Is(err, repositories.ErrUserNotFound):
			owner = &models.User{Name: name, Email: email, PasswordHash: hash}
			return s.userRepo.Create(ctx, exec, owner)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "owner account ready", slog.Int("user_id", owner.ID), slog.String("email", email))
	owner.PasswordHash = ""
	return owner, nil
}

func (s *adminService) ListSubAdmins(ctx context.Context, actor models.Actor) ([]models.Admin, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbiddenOperation
	}
	return s.adminRepo.List(ctx)
}

func (s *adminService) DeleteSubAdmin(ctx context.Context, actor models.Actor, id int) error {
	if !actor.IsSuperAdmin() {
		return ErrForbiddenOperation
	}
	if err := s.adminRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.Record(ctx, actor, fmt.Sprintf("Deleted admin #%d", id))
	return nil
}

func (s *adminService) ListLogs(ctx context.Context, actor models.Actor, limit int) ([]models.AdminLog, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbiddenOperation
	}
	return s.adminRepo.ListLogs(ctx, clampLimit(limit, defaultAdminLogsLimit, maxAdminLogsLimit))
}

func (s *adminService) ListUsers(ctx context.Context, actor models.Actor, limit, offset int) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, clampLimit(limit, 50, 200), offset)
}
