package main

import (
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"worldhousing/server/config"
	"worldhousing/server/internal/api"
	"worldhousing/server/internal/currency"
	"worldhousing/server/internal/database"
	"worldhousing/server/internal/housing"
	"worldhousing/server/internal/housing/providers"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Info("No .env file loaded")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.DatabasePath)

	db, err := database.NewDatabase(cfg.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}
	if err := db.Seed(config.SupportedCountries); err != nil {
		logger.WithError(err).Fatal("Failed to seed reference data")
	}

	converter := currency.NewConverter(cfg.Remote.CurrencyAPIBaseURL, cfg.Remote.Timeout, logger)
	registry := housing.NewRegistry(
		providers.NewBrazilIBGE(cfg.Remote.IBGEBaseURL, cfg.Remote.Timeout, converter, logger),
	)
	service := housing.NewService(db, registry, logger)
	handler := api.NewHandler(db, service, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
