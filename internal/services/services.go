package services

import (
	"context"

	"gorm.io/gorm"

	"ideaforge/internal/repositories"
)

// Services is the application service container. Construction wires
// every service over its repository; Startup hands each the app
// context.
type Services struct {
	Users       *UserService
	Ideas       *IdeaService
	Chat        *ChatService
	Context     *ContextService
	Models      ModelConfigService
	Keyring     *KeyringService
	Templates   *PromptTemplateService
	Settings    *AppSettingsService
	Diagnostics *DiagnosticsService
}

func NewServices(db *gorm.DB) *Services {
	userRepo := repositories.NewUserRepository(db)
	ideaRepo := repositories.NewIdeaRepository(db)
	chatRepo := repositories.NewChatMessageRepository(db)
	modelRepo := repositories.NewModelSettingRepository(db)
	templateRepo := repositories.NewPromptTemplateRepository(db)
	settingsRepo := repositories.NewAppSettingsRepository(db)
	requestRepo := repositories.NewLLMRequestRepository(db)

	return &Services{
		Users:       NewUserService(userRepo),
		Ideas:       NewIdeaService(ideaRepo),
		Chat:        NewChatService(chatRepo),
		Context:     NewContextService(ideaRepo),
		Models:      NewModelConfigService(modelRepo),
		Keyring:     NewKeyringService(),
		Templates:   NewPromptTemplateService(templateRepo),
		Settings:    NewAppSettingsService(settingsRepo),
		Diagnostics: NewDiagnosticsService(requestRepo),
	}
}

// Startup propagates the runtime context to every service. The model
// catalog seed runs here; its error is returned so the app can surface
// a broken installation early.
func (s *Services) Startup(ctx context.Context) error {
	s.Users.Startup(ctx)
	s.Ideas.Startup(ctx)
	s.Chat.Startup(ctx)
	s.Context.Startup(ctx)
	s.Templates.Startup(ctx)
	s.Settings.Startup(ctx)
	s.Diagnostics.Startup(ctx)
	return s.Models.Startup(ctx)
}
