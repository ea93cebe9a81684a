package repositories

import (
	"errors"
	"fmt"

	"ideaforge/internal/models"

	"gorm.io/gorm"
)

type LLMRequestRepository interface {
	Create(req *models.LLMRequest) error
	GetByRequestID(requestID string) (*models.LLMRequest, error)
	UpdateByRequestID(requestID string, updates map[string]interface{}) error
	ListBySession(sessionKey string, limit int) ([]models.LLMRequest, error)
}

type llmRequestRepository struct {
	db *gorm.DB
}

func NewLLMRequestRepository(db *gorm.DB) LLMRequestRepository {
	return &llmRequestRepository{db: db}
}

func (r *llmRequestRepository) Create(req *models.LLMRequest) error {
	if req == nil || req.RequestID == "" {
		return fmt.Errorf("request id is required")
	}
	return r.db.Create(req).Error
}

func (r *llmRequestRepository) GetByRequestID(requestID string) (*models.LLMRequest, error) {
	var req models.LLMRequest
	res := r.db.Where("request_id = ?", requestID).Take(&req)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &req, nil
}

func (r *llmRequestRepository) UpdateByRequestID(requestID string, updates map[string]interface{}) error {
	if requestID == "" {
		return fmt.Errorf("request id is required")
	}
	return r.db.Model(&models.LLMRequest{}).
		Where("request_id = ?", requestID).
		Updates(updates).Error
}

func (r *llmRequestRepository) ListBySession(sessionKey string, limit int) ([]models.LLMRequest, error) {
	var reqs []models.LLMRequest
	q := r.db.Where("session_key = ?", sessionKey).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}
