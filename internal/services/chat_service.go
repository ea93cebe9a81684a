package services

import (
	"context"
	"fmt"
	"strings"

	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

// ChatService persists conversation history per session key. It is the
// chat store the orchestrator writes completed exchanges to; the UI
// reads history back through GetMessages.
type ChatService struct {
	ctx  context.Context
	repo repositories.ChatMessageRepository
}

func NewChatService(repo repositories.ChatMessageRepository) *ChatService {
	return &ChatService{repo: repo}
}

func (s *ChatService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *ChatService) AddMessage(sessionKey string, authorID uint, role, display, raw string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return fmt.Errorf("session key is required")
	}
	switch role {
	case "user", "assistant":
	default:
		return fmt.Errorf("invalid role %q", role)
	}
	return s.repo.Append(&models.ChatMessage{
		SessionKey: sessionKey,
		AuthorID:   authorID,
		Role:       role,
		Display:    display,
		Raw:        raw,
	})
}

func (s *ChatService) GetMessages(sessionKey string) ([]models.ChatMessage, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return nil, fmt.Errorf("session key is required")
	}
	return s.repo.ListBySession(sessionKey)
}

func (s *ChatService) ClearMessages(sessionKey string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return fmt.Errorf("session key is required")
	}
	return s.repo.DeleteBySession(sessionKey)
}

func (s *ChatService) DeleteAll() error {
	return s.repo.DeleteAll()
}
