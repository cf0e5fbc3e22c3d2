package router

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/fanout"
	"github.com/relaychat/notifier/internal/handlers"
	"github.com/relaychat/notifier/internal/middleware"
	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/repositories"
	"github.com/relaychat/notifier/internal/services"
	"github.com/relaychat/notifier/pkg/config"
	"github.com/relaychat/notifier/pkg/firebase"
)

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, firebaseApp *firebase.App, logger zerolog.Logger) {
	// AutoMigrate PostgreSQL models
	err := db.Postgres.AutoMigrate(
		&models.User{},
		&models.NotificationSettingsRecord{},
		&models.DeviceToken{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	mongoDB := db.Mongo.Database(cfg.MongoDatabase)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	chatRepo := repositories.NewMongoChatRepository(mongoDB, cfg.LookupTimeout)
	activityRepo := repositories.NewMongoActivityRepository(mongoDB, cfg.LookupTimeout)
	presenceRepo := repositories.NewMongoPresenceRepository(mongoDB, cfg.LookupTimeout)
	settingsRepo := repositories.NewPostgresSettingsRepository(db.Postgres)
	tokenRepo := repositories.NewPostgresDeviceTokenRepository(db.Postgres)
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := activityRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure activity indexes: %v", err)
	}
	log.Println("MongoDB activity indexes ensured.")

	// --- Initialize Services ---
	pushService := services.NewFCMPushService(firebaseApp.MessagingClient, services.PushConfig{
		RatePerSecond:   cfg.PushRatePerSec,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		VAPIDSubscriber: cfg.VAPIDSubscriber,
	}, logger)
	emailService := services.NewSMTPEmailService(services.EmailConfig{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUser,
		Password:      cfg.SMTPPassword,
		From:          cfg.SMTPFrom,
		RatePerSecond: cfg.EmailRatePerSec,
	}, logger)

	engine := fanout.NewEngine(fanout.Deps{
		Chat:     chatRepo,
		Users:    userRepo,
		Settings: settingsRepo,
		Presence: presenceRepo,
		Tokens:   tokenRepo,
		Activity: activityRepo,
		Push:     pushService,
		Email:    emailService,
		Auth:     firebaseApp.AuthClient,
		Log:      logger,
		Workers:  cfg.FanoutWorkers,
	})
	log.Println("Fan-out engine initialized.")

	// --- Internal routes (service-to-service, shared token) ---
	internal := e.Group("/internal", middleware.InternalAuthMiddleware(cfg.InternalEventToken, logger))
	eventHandler := handlers.NewEventHandler(engine, cfg.InvocationTimeout, logger)
	eventHandler.RegisterEventRoutes(internal)
	log.Println("Event intake routes configured.")

	// --- Protected routes (require Firebase authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.FirebaseAuthMiddleware(firebaseApp.AuthClient))
	log.Println("Firebase authentication middleware applied to /api/v1 group.")

	// Activity feed routes
	activityHandler := handlers.NewActivityHandler(activityRepo)
	activityHandler.RegisterActivityRoutes(api)
	log.Println("Activity routes configured.")

	// Device token routes
	tokenHandler := handlers.NewDeviceTokenHandler(tokenRepo)
	tokenHandler.RegisterDeviceTokenRoutes(api)
	log.Println("Device token routes configured.")

	// Notification settings routes
	settingsHandler := handlers.NewSettingsHandler(settingsRepo)
	settingsHandler.RegisterSettingsRoutes(api)
	log.Println("Settings routes configured.")

	log.Println("All routes configured.")
}
