package main

import (
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/router"
	"github.com/relaychat/notifier/pkg/config"
	"github.com/relaychat/notifier/pkg/firebase"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Structured logger: console output in development, JSON elsewhere
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var logger zerolog.Logger
	if cfg.Env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	config.SetupMiddleware(e, logger)

	// Setup routes and dependencies
	router.SetupRoutes(e, cfg, db, firebaseApp, logger)

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
