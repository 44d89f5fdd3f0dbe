package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
)

type userService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewUserService(repo repositories.Repository, logger *slog.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger,
	}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, filters repositories.UserFilters, requesterID string) ([]*models.User, int64, error) {
	requester, err := s.repo.User().GetByID(ctx, requesterID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get requester: %w", err)
	}
	if requester.Role != models.RoleStaff && requester.Role != models.RoleAdmin {
		return nil, 0, NewPermissionError(requesterID, nil, "user", "list", "requires staff role")
	}

	users, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
