package services

import (
	"context"
	"fmt"
	"strings"

	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

const (
	defaultTheme      = "system"
	defaultQueueLimit = 200
)

// AppSettingsService manages the single-row application settings
// record, applying defaults when no row exists yet.
type AppSettingsService struct {
	ctx  context.Context
	repo repositories.AppSettingsRepository
}

func NewAppSettingsService(repo repositories.AppSettingsRepository) *AppSettingsService {
	return &AppSettingsService{repo: repo}
}

func (s *AppSettingsService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *AppSettingsService) Get() (*models.AppSettings, error) {
	settings, err := s.repo.Get()
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &models.AppSettings{
			Version:    1,
			Theme:      defaultTheme,
			QueueLimit: defaultQueueLimit,
		}
	}
	if settings.QueueLimit <= 0 {
		settings.QueueLimit = defaultQueueLimit
	}
	if strings.TrimSpace(settings.Theme) == "" {
		settings.Theme = defaultTheme
	}
	return settings, nil
}

func (s *AppSettingsService) Save(settings *models.AppSettings) (*models.AppSettings, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	switch settings.Theme {
	case "light", "dark", "system":
	default:
		return nil, fmt.Errorf("invalid theme %q", settings.Theme)
	}
	if settings.QueueLimit <= 0 {
		settings.QueueLimit = defaultQueueLimit
	}
	if err := s.repo.Save(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
