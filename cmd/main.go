package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"roulette/internal/auth"
	"roulette/internal/config"
	"roulette/internal/events"
	"roulette/internal/gamehub"
	"roulette/internal/handlers"
	"roulette/internal/hashing"
	"roulette/internal/models"
	"roulette/internal/services"
	"roulette/internal/storage"
)

func main() {
	// 1. Load settings from .env and the environment
	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	defer logger.Init("roulette", cfg.Verbose, false, io.Discard).Close()

	// 2. Open the store
	var store storage.Store
	var badgerStore *storage.BadgerStore
	switch cfg.Storage {
	case "memory":
		store = storage.NewMemStore()
	default:
		badgerStore, err = storage.NewBadgerStore(cfg.DataDir)
		if err != nil {
			logger.Fatalf("Failed to open store in %s: %v", cfg.DataDir, err)
		}
		store = badgerStore
	}
	defer store.Close()

	// 3. Initialize the draw service
	hasher, err := hashing.ByName(cfg.Hash)
	if err != nil {
		logger.Fatalf("Failed to pick hash: %v", err)
	}
	hub := events.NewHub(64)
	drawService := services.NewDrawService(services.Config{
		Store:           store,
		Hasher:          hasher,
		Events:          events.Multi{events.LogSink{}, hub},
		Dial:            gamehub.HTTPDialer(cfg.HubTimeout),
		GameID:          models.Identity(cfg.GameID),
		MaxParticipants: cfg.MaxParticipants,
		Retention:       cfg.Retention,
	})

	// 4. Initialize the HTTP handler
	var tokens *auth.TokenIssuer
	if cfg.TokenSecret != "" {
		tokens = auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)
	} else {
		logger.Warning("ROULETTE_TOKEN_SECRET is not set, every caller is anonymous")
	}
	httpHandler := handlers.NewHTTPHandler(drawService, tokens, hub)

	// 5. Set up the Gin router
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := handlers.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.MetricsMiddleware(), limiter.Middleware(), httpHandler.CallerMiddleware())
	httpHandler.RegisterRoutes(r)

	// 6. Start the background janitor
	go func() {
		for {
			time.Sleep(cfg.GCInterval)
			if n := limiter.Cleanup(cfg.GCInterval); n > 0 {
				logger.Infof("Forgot %d idle rate limit clients.", n)
			}
			if badgerStore == nil {
				continue
			}
			rewrites, err := badgerStore.CollectGarbage(0.5)
			if err != nil {
				logger.Errorf("Value log GC failed: %v", err)
				continue
			}
			logger.Infof("Performed value log GC, %d rewrites.", rewrites)
		}
	}()

	// 7. Run the server until interrupted
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		logger.Infof("Server starting on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	logger.Info("Server stopped")
}
