package repositories

import (
	"errors"
	"fmt"

	"ideaforge/internal/models"

	"gorm.io/gorm"
)

type IdeaRepository interface {
	Create(idea *models.Idea) error
	GetByID(id uint) (*models.Idea, error)
	ListByUser(userID uint) ([]models.Idea, error)
	Update(idea *models.Idea) error
	DeleteByID(id uint) error

	AddContextLink(link *models.ContextLink) error
	GetContextLink(id uint, userID uint) (*models.ContextLink, error)
	ListContextLinks(ideaID uint) ([]models.ContextLink, error)
	DeleteContextLink(id uint) error
}

type ideaRepository struct {
	db *gorm.DB
}

func NewIdeaRepository(db *gorm.DB) IdeaRepository {
	return &ideaRepository{db: db}
}

func (r *ideaRepository) Create(idea *models.Idea) error {
	if idea == nil {
		return fmt.Errorf("idea is required")
	}
	return r.db.Create(idea).Error
}

func (r *ideaRepository) GetByID(id uint) (*models.Idea, error) {
	var idea models.Idea
	res := r.db.Take(&idea, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &idea, nil
}

func (r *ideaRepository) ListByUser(userID uint) ([]models.Idea, error) {
	var ideas []models.Idea
	res := r.db.Where("user_id = ?", userID).Order("updated_at desc").Find(&ideas)
	if res.Error != nil {
		return nil, res.Error
	}
	return ideas, nil
}

func (r *ideaRepository) Update(idea *models.Idea) error {
	if idea == nil || idea.ID == 0 {
		return fmt.Errorf("idea with ID is required")
	}
	return r.db.Save(idea).Error
}

func (r *ideaRepository) DeleteByID(id uint) error {
	if err := r.db.Where("idea_id = ?", id).Delete(&models.ContextLink{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Idea{}, id).Error
}

func (r *ideaRepository) AddContextLink(link *models.ContextLink) error {
	if link == nil {
		return fmt.Errorf("context link is required")
	}
	return r.db.Create(link).Error
}

func (r *ideaRepository) GetContextLink(id uint, userID uint) (*models.ContextLink, error) {
	var link models.ContextLink
	res := r.db.Where("id = ? AND user_id = ?", id, userID).Take(&link)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &link, nil
}

func (r *ideaRepository) ListContextLinks(ideaID uint) ([]models.ContextLink, error) {
	var links []models.ContextLink
	res := r.db.Where("idea_id = ?", ideaID).Order("id asc").Find(&links)
	if res.Error != nil {
		return nil, res.Error
	}
	return links, nil
}

func (r *ideaRepository) DeleteContextLink(id uint) error {
	return r.db.Delete(&models.ContextLink{}, id).Error
}
