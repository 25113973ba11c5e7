package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"booking-core-backend/config"
	"booking-core-backend/internal/api"
	"booking-core-backend/internal/db"
	"booking-core-backend/internal/notification"
	"booking-core-backend/internal/reaper"
	"booking-core-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "booking-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; web push notifications are disabled")
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	var mailer notification.Mailer
	if m := notification.NewSMTPMailer(cfg.Notification.SMTP); m != nil {
		mailer = m
	} else {
		logger.Println("SMTP relay is not configured; calendar emails are disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Workers read through their own store handle; the pool is the Notifier of the one serving requests.
	workerPool := notification.NewWorkerPool(cfg.Notification, store.NewGormStore(gormDB), webpushOptions, mailer)
	appStore := store.NewGormStore(gormDB,
		store.WithNotifier(workerPool),
		store.WithHoldTTL(cfg.Booking.HoldTTL),
	)
	workerPool.Start(ctx)
	logger.Println("data store and notification workers initialized")

	if cfg.Reaper.Enabled {
		reaperSvc, err := reaper.New(appStore, cfg.Reaper.Schedule)
		if err != nil {
			logger.Fatalf("failed to initialize reaper: %v", err)
		}
		go reaperSvc.Run(ctx)
	} else {
		logger.Println("Reaper is disabled; expired holds will not be released.")
	}

	// Initialize router
	router := api.NewRouter(appStore, cfg, webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}
