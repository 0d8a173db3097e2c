// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/database"
	"github.com/saptechnologies/sap-backend/internal/geoip"
	"github.com/saptechnologies/sap-backend/internal/mailer"
	"github.com/saptechnologies/sap-backend/internal/middleware"
	"github.com/saptechnologies/sap-backend/internal/router"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
	"github.com/saptechnologies/sap-backend/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg)
	utils.SetDebugErrors(!cfg.IsProduction())
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if err := database.SeedInitialData(db, cfg.Admin); err != nil {
		logrus.WithError(err).Fatal("Failed to seed initial data")
	}

	appCache, err := cache.New(cfg.Redis, cfg.Cache)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize cache")
	}
	defer appCache.Close()

	m, err := mailer.New(cfg.Email)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize mailer")
	}
	logrus.WithField("provider", m.Name()).Info("Mailer ready")

	geo, err := geoip.Open(cfg.GeoIP.DatabasePath)
	if err != nil {
		// Votes are still recorded without a country
		logrus.WithError(err).Warn("GeoIP disabled")
		geo, _ = geoip.Open("")
	}
	defer geo.Close()

	svcs, err := services.New(db, cfg, appCache, m, geo)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize services")
	}

	bg := worker.New(svcs.Outbox, cfg.Outbox)
	if err := bg.Start(); err != nil {
		logrus.WithError(err).Fatal("Failed to start background worker")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sessions := middleware.NewSessionManager(cfg, appCache)
	r := router.Initialize(db, cfg, svcs, sessions)
	defer r.Close()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	bg.Stop()

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}
