// @title Code4Kids Backend API
// @version 1.0
// @description Backend server for the Code4Kids programming adventure game.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"

	"code4kids_backend/internal/app"
	"code4kids_backend/internal/config"
	"code4kids_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run the progress migrations and exit")
	migrate := flag.Bool("migrate", false, "run the progress migrations before serving")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	application := app.NewApp(cfg)

	if cfg.MigrateOnly {
		logger.Log.Info("Progress migration finished, exiting")
		return
	}

	if !cfg.ForceMigrate {
		// Documents are also migrated lazily on read; the sweep just front-loads the work.
		go func() {
			if _, err := application.MigrateProgress(context.Background()); err != nil {
				logger.Log.Warn("Background progress migration failed", zap.Error(err))
			}
		}()
	}

	application.Run()
}
