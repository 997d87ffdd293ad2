package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/alerts"
	"github.com/dennisdiepolder/taskstream/internal/api"
	"github.com/dennisdiepolder/taskstream/internal/auth"
	"github.com/dennisdiepolder/taskstream/internal/cache"
	"github.com/dennisdiepolder/taskstream/internal/config"
	"github.com/dennisdiepolder/taskstream/internal/correlate"
	"github.com/dennisdiepolder/taskstream/internal/dispatch"
	"github.com/dennisdiepolder/taskstream/internal/ingestion"
	"github.com/dennisdiepolder/taskstream/internal/metrics"
	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/storage"
	"github.com/dennisdiepolder/taskstream/internal/store"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/dennisdiepolder/taskstream/internal/websocket"
	"github.com/dennisdiepolder/taskstream/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting taskstream server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archive for terminal records
	archive, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize archive store")
	}

	// Create WebSocket hub for the live segment feed
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// Event cache, correlation and derivation pipeline
	eventCache := cache.NewEventCache()
	correlator := correlate.New(eventCache, log.Logger)
	repo := repository.New(store.NewMemory[types.Segment](), store.NewMemory[types.AgentRecord](), log.Logger)
	repo.SetArchive(archive)
	repo.SetFeed(hub)
	dispatcher := dispatch.New(eventCache, correlator, repo, log.Logger)
	receiver := ingestion.NewReceiver(eventCache, dispatcher, log.Logger)

	// Sweep for sessions that never received their terminal event
	sweeper := alerts.NewStaleSweeper(repo, cfg.StaleAfter, cfg.SweepInterval, log.Logger)
	go sweeper.Run(ctx)

	// Read API handlers
	conversationsHandler := api.NewConversationsHandler(repo, log.Logger)
	agentsHandler := api.NewAgentsHandler(repo, archive, log.Logger)
	adminHandler := api.NewAdminHandler(eventCache, repo, archive, log.Logger)

	// Webhook signature validation
	validator := auth.NewSignatureValidator(cfg.AuthToken, cfg.SkipSignatureCheck, log.Logger)
	if cfg.SkipSignatureCheck {
		log.Warn().Msg("webhook signature validation disabled")
	}

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(metrics.Get().Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Webhook routes (signature auth)
	r.Group(func(r chi.Router) {
		r.Use(validator.Middleware)
		r.Post("/events", receiver.HandleBatch)
		r.Get("/events/stats", receiver.GetStats)
	})

	// Protected read API and live feed
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/ws", wsHandler.ServeHTTP)
		r.Route("/api", func(r chi.Router) {
			r.Get("/conversations", conversationsHandler.HandleList)
			r.Get("/agents", agentsHandler.HandleList)
			r.Get("/agents/{agentUUID}", agentsHandler.HandleGet)
			r.Get("/agents/{agentUUID}/segments", agentsHandler.HandleSegments)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(api.RequireAdmin)
			r.Post("/reset", adminHandler.ResetMemory)
			r.Post("/wipe-archive", adminHandler.WipeArchive)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"taskstream"}`)
}
