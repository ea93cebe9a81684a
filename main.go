package main

import (
	"context"
	"embed"
	"fmt"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"gorm.io/gorm/logger"

	"ideaforge/internal/database"
	"ideaforge/internal/events"
	"ideaforge/internal/services"
	"ideaforge/internal/utils"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	if database.IsDevelopment() {
		if err := utils.LoadEnv(); err != nil {
			fmt.Println("No .env loaded:", err)
		}
	}

	db, err := database.Init(database.Config{
		LogLevel: logger.Warn,
	})
	if err != nil {
		fmt.Println("Error opening database:", err)
		return
	}

	var dbClose func() error
	if sqlDB, err := db.DB(); err == nil {
		dbClose = sqlDB.Close
	}

	svc := services.NewServices(db)
	app := NewApp()

	err = wails.Run(&options.App{
		Title:  "IdeaForge",
		Width:  1200,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Linux: &linux.Options{
			WebviewGpuPolicy: linux.WebviewGpuPolicyAlways,
			ProgramName:      "IdeaForge",
		},
		BackgroundColour: &options.RGBA{R: 24, G: 24, B: 27, A: 1},
		OnStartup: func(ctx context.Context) {
			events.EnableRuntimeEmitter()
			if err := app.startup(ctx, svc, dbClose); err != nil {
				fmt.Println("Error starting app:", err)
			}
		},
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
			svc.Users,
			svc.Ideas,
			svc.Models,
			svc.Keyring,
			svc.Templates,
			svc.Settings,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
