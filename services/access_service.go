package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/utils"
)

const superAdminName = "Owner"

// AccessService определяет роль администратора по email.
// Вызывается на каждый админский запрос, результат не кешируется.
type AccessService interface {
	VerifyAdmin(ctx context.Context, email string) (models.Role, string, error)
	// ResolveRole - как VerifyAdmin, но для не-админов возвращает RolePlayer без ошибки.
	ResolveRole(ctx context.Context, email string) (models.Role, error)
}

type accessService struct {
	superAdminEmail string
	adminRepo       repositories.AdminRepository
}

func NewAccessService(superAdminEmail string, adminRepo repositories.AdminRepository) AccessService {
	return &accessService{
		superAdminEmail: utils.NormalizeEmail(superAdminEmail),
		adminRepo:       adminRepo,
	}
}

func (s *accessService) VerifyAdmin(ctx context.Context, email string) (models.Role, string, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return "", "", ErrForbiddenOperation
	}
	if s.superAdminEmail != "" && email == s.superAdminEmail {
		return models.RoleSuperAdmin, superAdminName, nil
	}

	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrAdminNotFound) {
			return "", "", ErrForbiddenOperation
		}
		return "", "", fmt.Errorf("failed to look up admin roster: %w", err)
	}
	return models.RoleSubAdmin, admin.Name, nil
}

func (s *accessService) ResolveRole(ctx context.Context, email string) (models.Role, error) {
	role, _, err := s.VerifyAdmin(ctx, email)
	if err != nil {
		if errors.Is(err, ErrForbiddenOperation) {
			return models.RolePlayer, nil
		}
		return "", err
	}
	return role, nil
}
