package service

import (
	"context"
	"errors"

	"event_ticketing/internal/domain/user/model"
	"event_ticketing/internal/domain/user/repository"
	"event_ticketing/pkg/apperror"
)

// UserService 用户服务接口
type UserService interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

var errUserNotFound = apperror.NotFound(apperror.CodeUserNotFound, "Usuario no encontrado")

// userService 实现
type userService struct {
	repo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.translate(s.repo.GetByID(ctx, id))
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.translate(s.repo.GetByEmail(ctx, email))
}

func (s *userService) translate(user *model.User, err error) (*model.User, error) {
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return user, nil
}
