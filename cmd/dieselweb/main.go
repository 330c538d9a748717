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

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/config"
	"diesel-manager-web/internal/api"
	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/db"
	"diesel-manager-web/internal/export"
	"diesel-manager-web/internal/form"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/logging"
	"diesel-manager-web/internal/session"
	"diesel-manager-web/internal/store"
)

func main() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to read .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithField("path", configPath).Info("configuration loaded")

	session.SetCookieSecurity(cfg.Server.CookieSecure)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Info("session database initialized")

	forms := form.NewRegistry(time.Duration(cfg.Server.FormTTLMinutes) * time.Minute)
	gw := gateway.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.HTTPProxy)
	handler := api.NewHandler(api.Deps{
		Config:   cfg,
		Sessions: session.NewManager(store.NewGormStore(gormDB)),
		Service:  backend.NewService(gw),
		Forms:    forms,
		PDF:      export.PDFRenderer{ChromiumPath: cfg.Export.ChromiumPath, Timeout: cfg.Export.PDFTimeout},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("backend", cfg.Backend.BaseURL).Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	forms.Close()
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server gracefully stopped")
}
