package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"database/sql"

	"github.com/Dan9191/pledge-service/internal/config"
	"github.com/Dan9191/pledge-service/internal/handler"
	"github.com/Dan9191/pledge-service/internal/integrations/callmebot"
	"github.com/Dan9191/pledge-service/internal/repository"
	"github.com/Dan9191/pledge-service/internal/scheduler"
	"github.com/Dan9191/pledge-service/internal/service"
	"github.com/Dan9191/pledge-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	svc := service.NewService(repo, logger, cfg.MemberCodePrefix)

	// Select the outbound messaging gateway
	var gateway scheduler.Gateway
	switch cfg.Gateway {
	case "smtp":
		gateway = email.NewSender(cfg, logger)
	default:
		gateway = callmebot.NewClient(cfg, logger)
	}

	// Start the reminder scheduler
	sched := scheduler.New(svc, gateway, logger, scheduler.Options{
		Period:  cfg.ReminderPeriod,
		Window:  cfg.ReminderWindow,
		Retries: cfg.SendRetries,
	})
	sched.Start()
	defer sched.Stop()

	// Setup router
	r := mux.NewRouter()
	h := handler.NewHandler(svc, sched, logger)
	h.Routes(r)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
