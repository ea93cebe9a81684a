package repositories

import (
	"fmt"

	"ideaforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ModelSettingRepository interface {
	List() ([]models.ModelSetting, error)
	Upsert(modelKey, provider string, enabled bool) (*models.ModelSetting, error)
	SetProviderEnabled(provider string, enabled bool) error
}

type modelSettingRepository struct {
	db *gorm.DB
}

func NewModelSettingRepository(db *gorm.DB) ModelSettingRepository {
	return &modelSettingRepository{db: db}
}

func (r *modelSettingRepository) List() ([]models.ModelSetting, error) {
	var settings []models.ModelSetting
	if err := r.db.Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *modelSettingRepository) Upsert(modelKey, provider string, enabled bool) (*models.ModelSetting, error) {
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}
	setting := models.ModelSetting{
		Provider: provider,
		ModelKey: modelKey,
		Enabled:  enabled,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider", "enabled", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *modelSettingRepository) SetProviderEnabled(provider string, enabled bool) error {
	return r.db.Model(&models.ModelSetting{}).
		Where("provider = ?", provider).
		Update("enabled", enabled).Error
}
