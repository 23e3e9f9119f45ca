package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/channelforge/auth-service/config"
	"github.com/channelforge/auth-service/db"
	"github.com/channelforge/auth-service/internal/auth/handler"
	"github.com/channelforge/auth-service/internal/auth/password"
	repo "github.com/channelforge/auth-service/internal/auth/repository/postgres"
	"github.com/channelforge/auth-service/internal/auth/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx := context.Background()

	privateKey, publicKey, generated, err := cfg.LoadKeyPair()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load JWT key pair")
	}
	if generated {
		log.Warn().Msg("JWT key pair not provided via environment, generated ephemeral keys for development")
	}

	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer dbPool.Close()

	userRepo := repo.NewPostgresRepository(dbPool)
	hasher := password.NewHasher(cfg.Pepper)
	tokenService := service.NewTokenService(privateKey, publicKey, cfg.AccessExpiryMin)
	sessionService := service.NewSessionService(userRepo, cfg.Pepper, cfg.RefreshExpiryMin)
	userService := service.NewUserService(userRepo, tokenService, sessionService, hasher, cfg, log)
	authHandler := handler.NewAuthHandler(userService, tokenService, cfg, log)

	if err := userService.Seed(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin account")
	}

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(recover.New())
	handler.RegisterRoutes(app, authHandler)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
