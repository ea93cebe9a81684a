package services

import (
	"context"
	"fmt"
	"strings"

	"ideaforge/internal/llm/client"
	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

// PromptTemplateService layers database overrides over the prompt
// templates embedded in the binary. Deleting an override falls back to
// the embedded default.
type PromptTemplateService struct {
	ctx  context.Context
	repo repositories.PromptTemplateRepository
}

func NewPromptTemplateService(repo repositories.PromptTemplateRepository) *PromptTemplateService {
	return &PromptTemplateService{repo: repo}
}

func (s *PromptTemplateService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *PromptTemplateService) List() ([]models.PromptTemplate, error) {
	return s.repo.List()
}

// Resolve returns the effective template content for a name: the stored
// override when present, otherwise the embedded default.
func (s *PromptTemplateService) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("template name is required")
	}
	tpl, err := s.repo.GetByName(name)
	if err != nil {
		return "", err
	}
	if tpl != nil && strings.TrimSpace(tpl.Content) != "" {
		return tpl.Content, nil
	}
	return client.EmbeddedPrompt(name)
}

// Save stores an override for a template name.
func (s *PromptTemplateService) Save(name, content string) (*models.PromptTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("template content is required")
	}
	tpl := &models.PromptTemplate{Name: name, Content: content}
	if err := s.repo.Save(tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// Delete removes an override; the embedded default takes effect again.
func (s *PromptTemplateService) Delete(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("template name is required")
	}
	return s.repo.DeleteByName(name)
}
