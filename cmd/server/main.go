package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/widgetworks/service-subscription/internal/application"
	"github.com/widgetworks/service-subscription/internal/config"
	"github.com/widgetworks/service-subscription/internal/database"
	"github.com/widgetworks/service-subscription/internal/events"
	"github.com/widgetworks/service-subscription/internal/handler"
	"github.com/widgetworks/service-subscription/internal/health"
	"github.com/widgetworks/service-subscription/internal/logger"
	"github.com/widgetworks/service-subscription/internal/middleware"
	"github.com/widgetworks/service-subscription/internal/repository"
	"github.com/widgetworks/service-subscription/pkg/kafka"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-subscription")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-subscription",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	db, err := database.Connect(dbConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.AddressModel{},
			&repository.UserModel{},
			&repository.ProductModel{},
			&repository.SubscriptionModel{},
			&repository.TransactionModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize lifecycle event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaConfig.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, cfg.KafkaConfig.Topic, zapLogger)
	} else {
		zapLogger.Info("no kafka brokers configured, lifecycle events disabled")
	}

	// Initialize repositories
	userRepo := repository.NewGormUserRepository(db)
	addressRepo := repository.NewGormAddressRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	subRepo := repository.NewGormSubscriptionRepository(db)
	txLog := repository.NewGormTransactionLog(db)
	txRunner := repository.NewTxRunner(db)

	// Initialize application services
	subService := application.NewSubscriptionService(
		subRepo, userRepo, productRepo, addressRepo, txLog, txRunner, publisher, zapLogger,
	)
	productService := application.NewProductService(productRepo, zapLogger)

	// Start the expiration reaper loop
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	go func() {
		ticker := time.NewTicker(cfg.ReaperInterval)
		defer ticker.Stop()
		zapLogger.Info("expiration reaper started", zap.Duration("interval", cfg.ReaperInterval))
		for {
			select {
			case <-reaperCtx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(reaperCtx, cfg.ReaperInterval/2)
				if _, err := subService.ExpirationReaper(sweepCtx); err != nil {
					zapLogger.Error("expiration sweep failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()

	// Initialize HTTP handlers
	subHandler := handler.NewSubscriptionHandler(subService)
	productHandler := handler.NewProductHandler(productService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-subscription")
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	subHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-subscription...")

	// Stop the reaper loop
	reaperCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-subscription stopped")
}
