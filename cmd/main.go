package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"fintrack/internal/middleware"
	"fintrack/internal/model"
	"fintrack/pkg/config"
	"fintrack/pkg/database"
	"fintrack/pkg/logger"
	"fintrack/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("fintrack")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting fintrack data-access service...", cfg.LogConfig()...)

	// Initialize database
	if _, err := database.InitDB(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Migrate the shared catalog tables. Tenant-local tables live in the
	// per-entity namespaces and are provisioned with each entity.
	if err := database.MigrateModels(&model.User{}, &model.Entity{}, &model.Membership{}); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database migrated")

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Operational endpoints only; the domain API is served by a separate
	// transport layer consuming the internal services.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "healthy",
			"service": "fintrack",
		})
	})
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
