// Command server runs the MoodMingle companion backend.
//
// Configuration comes from the environment (or a .env file): PORT, DB_PATH,
// JWT_SECRET, SESSION_TTL, ALLOWED_ORIGINS, SECURE_COOKIES, GEMINI_API_KEY,
// GEMINI_MODEL, WEATHER_API_KEY, GOOGLE_API_KEY, LOG_LEVEL and LOG_FILE.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/moodmingle/internal/config"
	"github.com/sakif/moodmingle/internal/logging"
	"github.com/sakif/moodmingle/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger, closer := logging.New(cfg.Log, os.Stdout)
	defer closer.Close()

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET must be set; generate one with: openssl rand -hex 32")
		return 1
	}

	srv, err := server.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return 1
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
