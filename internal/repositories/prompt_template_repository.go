package repositories

import (
	"errors"
	"fmt"

	"ideaforge/internal/models"

	"gorm.io/gorm"
)

type PromptTemplateRepository interface {
	List() ([]models.PromptTemplate, error)
	GetByName(name string) (*models.PromptTemplate, error)
	Save(tpl *models.PromptTemplate) error
	DeleteByName(name string) error
}

type promptTemplateRepository struct {
	db *gorm.DB
}

func NewPromptTemplateRepository(db *gorm.DB) PromptTemplateRepository {
	return &promptTemplateRepository{db: db}
}

func (r *promptTemplateRepository) List() ([]models.PromptTemplate, error) {
	var tpls []models.PromptTemplate
	if err := r.db.Order("name asc").Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *promptTemplateRepository) GetByName(name string) (*models.PromptTemplate, error) {
	var tpl models.PromptTemplate
	res := r.db.Where("name = ?", name).Take(&tpl)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &tpl, nil
}

func (r *promptTemplateRepository) Save(tpl *models.PromptTemplate) error {
	if tpl == nil || tpl.Name == "" {
		return fmt.Errorf("template name is required")
	}
	existing, err := r.GetByName(tpl.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		tpl.ID = existing.ID
	}
	return r.db.Save(tpl).Error
}

func (r *promptTemplateRepository) DeleteByName(name string) error {
	return r.db.Where("name = ?", name).Delete(&models.PromptTemplate{}).Error
}
