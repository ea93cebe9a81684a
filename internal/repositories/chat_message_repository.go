package repositories

import (
	"fmt"

	"ideaforge/internal/models"

	"gorm.io/gorm"
)

type ChatMessageRepository interface {
	Append(msg *models.ChatMessage) error
	ListBySession(sessionKey string) ([]models.ChatMessage, error)
	DeleteBySession(sessionKey string) error
	DeleteAll() error
}

type chatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

func (r *chatMessageRepository) Append(msg *models.ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("message is required")
	}
	if msg.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	return r.db.Create(msg).Error
}

func (r *chatMessageRepository) ListBySession(sessionKey string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	res := r.db.Where("session_key = ?", sessionKey).Order("id asc").Find(&msgs)
	if res.Error != nil {
		return nil, res.Error
	}
	return msgs, nil
}

func (r *chatMessageRepository) DeleteBySession(sessionKey string) error {
	return r.db.Where("session_key = ?", sessionKey).Delete(&models.ChatMessage{}).Error
}

func (r *chatMessageRepository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&models.ChatMessage{}).Error
}
