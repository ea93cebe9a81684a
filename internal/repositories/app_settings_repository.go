package repositories

import (
	"errors"

	"ideaforge/internal/models"

	"gorm.io/gorm"
)

type AppSettingsRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
}

type appSettingsRepository struct {
	db *gorm.DB
}

func NewAppSettingsRepository(db *gorm.DB) AppSettingsRepository {
	return &appSettingsRepository{db: db}
}

func (r *appSettingsRepository) Get() (*models.AppSettings, error) {
	var settings models.AppSettings
	res := r.db.First(&settings, 1)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &settings, nil
}

func (r *appSettingsRepository) Save(settings *models.AppSettings) error {
	settings.ID = 1
	return r.db.Save(settings).Error
}
