package main

import (
	"context"
	"os"

	"github.com/alecthomas/kingpin/v2"

	_ "taskflow/docs"
	"taskflow/internal/config"
	"taskflow/internal/logging"
	"taskflow/internal/server"
)

// @title           Taskflow API
// @version         1.0
// @description     Task workflow engine: assignment, approval chains, progress, time tracking and recurrence.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	app := kingpin.New("taskflow", "Task workflow engine HTTP server.")
	envFile := app.Flag("env-file", "Path of the .env file to load.").Default(".env").String()
	migrate := app.Flag("migrate", "Apply database migrations on start.").Bool()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*envFile)
	if err != nil {
		logging.Logger.Fatalf("❌ Configuration failed: %v", err)
	}
	if *migrate {
		cfg.MigrateOnStart = true
	}

	if err := logging.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		logging.Logger.Fatalf("❌ Logger initialization failed: %v", err)
	}

	s, err := server.Init(cfg, logging.Logger)
	if err != nil {
		logging.Logger.Fatalf("❌ Server initialization failed: %v", err)
	}

	if err := s.Run(context.Background()); err != nil {
		logging.Logger.Fatalf("❌ Server stopped: %v", err)
	}
}
