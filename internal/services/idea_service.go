package services

import (
	"context"
	"fmt"
	"strings"

	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

// IdeaService manages ideas and their linked context items.
type IdeaService struct {
	ctx  context.Context
	repo repositories.IdeaRepository
}

func NewIdeaService(repo repositories.IdeaRepository) *IdeaService {
	return &IdeaService{repo: repo}
}

func (s *IdeaService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *IdeaService) Create(userID uint, title, summary string) (*models.Idea, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	idea := &models.Idea{
		UserID:  userID,
		Title:   title,
		Summary: summary,
	}
	if err := s.repo.Create(idea); err != nil {
		return nil, err
	}
	return idea, nil
}

func (s *IdeaService) Get(id uint) (*models.Idea, error) {
	idea, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if idea == nil {
		return nil, fmt.Errorf("idea %d not found", id)
	}
	return idea, nil
}

func (s *IdeaService) ListByUser(userID uint) ([]models.Idea, error) {
	return s.repo.ListByUser(userID)
}

func (s *IdeaService) Update(idea *models.Idea) (*models.Idea, error) {
	if idea == nil || idea.ID == 0 {
		return nil, fmt.Errorf("idea with ID is required")
	}
	if strings.TrimSpace(idea.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := s.repo.Update(idea); err != nil {
		return nil, err
	}
	return idea, nil
}

// Delete removes the idea together with its context links.
func (s *IdeaService) Delete(id uint) error {
	return s.repo.DeleteByID(id)
}

// AddContextLink attaches a local checkout or a remote repository to an
// idea. At least one of localPath/remoteURL must be set.
func (s *IdeaService) AddContextLink(ideaID, userID uint, name, localPath, remoteURL, branch string) (*models.ContextLink, error) {
	if strings.TrimSpace(localPath) == "" && strings.TrimSpace(remoteURL) == "" {
		return nil, fmt.Errorf("a local path or a remote URL is required")
	}
	idea, err := s.repo.GetByID(ideaID)
	if err != nil {
		return nil, err
	}
	if idea == nil {
		return nil, fmt.Errorf("idea %d not found", ideaID)
	}
	link := &models.ContextLink{
		IdeaID:    ideaID,
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		LocalPath: strings.TrimSpace(localPath),
		RemoteURL: strings.TrimSpace(remoteURL),
		Branch:    strings.TrimSpace(branch),
	}
	if err := s.repo.AddContextLink(link); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *IdeaService) ListContextLinks(ideaID uint) ([]models.ContextLink, error) {
	return s.repo.ListContextLinks(ideaID)
}

func (s *IdeaService) DeleteContextLink(id uint) error {
	return s.repo.DeleteContextLink(id)
}
