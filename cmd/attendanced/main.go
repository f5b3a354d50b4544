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
	"github.com/joho/godotenv"

	"attendance-dashboard-backend/config"
	"attendance-dashboard-backend/internal/api"
	"attendance-dashboard-backend/internal/auth"
	"attendance-dashboard-backend/internal/db"
	"attendance-dashboard-backend/internal/mw"
	"attendance-dashboard-backend/internal/notification"
	"attendance-dashboard-backend/internal/source"
	"attendance-dashboard-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "attendance-backend ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("failed to read .env: %v", err)
	}

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

	if cfg.Auth.JWTSecret == "" {
		logger.Fatalf("auth.jwt_secret must be set (or AUTH_JWT_SECRET).")
	}
	if cfg.Purge.PasswordHash == "" {
		logger.Println("purge.password_hash is not set; bulk delete will reject every password.")
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

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	authManager, err := auth.NewManager(appStore, auth.Options{
		Secret:      []byte(cfg.Auth.JWTSecret),
		SessionTTL:  cfg.Auth.SessionTTL,
		WarningLead: cfg.Auth.WarningLead,
	})
	if err != nil {
		logger.Fatalf("failed to initialize auth: %v", err)
	}

	responses := mw.NewResponseCache(cfg.Server.CacheTTL())

	// A nil upstream keeps purges local.
	var upstream source.Upstream
	if cfg.Source.Enabled {
		upstream = source.NewClient(cfg.Source)
	}
	sourceSvc := source.NewService(cfg.Source, appStore, upstream)
	sourceSvc.OnChange(responses.Flush)
	go sourceSvc.Run(ctx)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}

		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		watcher := notification.NewExpiryWatcher(appStore, pool, cfg.Notifier.Interval)
		go watcher.Run(ctx)
	} else {
		logger.Println("VAPID keys are not configured; session expiry push warnings are disabled.")
	}

	// Initialize router
	handler := api.NewHandler(appStore, authManager, sourceSvc, cfg, webpushOptions)
	router := api.NewRouter(handler, cfg.Server, responses)
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

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
