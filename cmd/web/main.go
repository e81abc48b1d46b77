package main

import (
	"flag"
	"log/slog"
	"os"

	"promocli/internal/app"
	"promocli/internal/config"
	"promocli/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to the usual search locations)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	// Create application instance
	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start application
	if err := application.Run(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
