package services

import (
	"context"
	"fmt"
	"strings"

	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

type UserService struct {
	ctx  context.Context
	repo repositories.UserRepository
}

func NewUserService(repo repositories.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *UserService) Register(name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	user := &models.User{Name: name}
	if err := s.repo.Create(s.ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Get(id uint) (*models.User, error) {
	user, err := s.repo.FindByID(s.ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return user, nil
}

func (s *UserService) List(limit, offset int) ([]models.User, error) {
	return s.repo.List(s.ctx, limit, offset)
}
