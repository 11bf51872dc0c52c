// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/domain/payment"
	"github.com/your-org/coursekit-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/coursekit-backend/internal/infrastructure/database/redis"
	"github.com/your-org/coursekit-backend/internal/interfaces/http"
	"github.com/your-org/coursekit-backend/internal/interfaces/http/routes"
	"github.com/your-org/coursekit-backend/internal/pkg/logger"
	"github.com/your-org/coursekit-backend/internal/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg)
	appLogger.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Connect to database
	db, err := postgres.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Health check
	if err := db.Health(); err != nil {
		appLogger.WithError(err).Fatal("Database health check failed")
	}

	if err := redisClient.Health(); err != nil {
		appLogger.WithError(err).Fatal("Redis health check failed")
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), appLogger)

	if err := migration.RunAutoMigrations(); err != nil {
		appLogger.WithError(err).Fatal("Database migration failed")
	}

	if err := migration.CreateIndexes(); err != nil {
		appLogger.WithError(err).Warn("Index creation failed")
	}

	// Seed initial data in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			appLogger.WithError(err).Warn("Data seeding failed")
		}
	}

	if cfg.Stripe.SecretKey == "" {
		appLogger.Warn("⚠️ STRIPE_SECRET_KEY not set, hosted payment calls will fail")
	}

	appLogger.Info("✅ All systems operational!")

	server := http.NewServer(cfg, routes.Dependencies{
		DB:       db.GetDB(),
		Redis:    redisClient.GetClient(),
		Logger:   appLogger,
		Metrics:  metrics.New(),
		Provider: payment.NewStripeProvider(&cfg.Stripe),
		Locker:   redis.NewLocker(redisClient.GetClient()),
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			appLogger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("👋 Shutting down gracefully...")

	// Give server 30 seconds to shutdown gracefully
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		appLogger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	appLogger.Info("✅ Server shutdown completed")
}
