package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/access"
	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/broadcast"
	"github.com/classbeam/liveclass-server-go/internal/config"
	"github.com/classbeam/liveclass-server-go/internal/database"
	"github.com/classbeam/liveclass-server-go/internal/gateway"
	"github.com/classbeam/liveclass-server-go/internal/handler"
	"github.com/classbeam/liveclass-server-go/internal/jobs"
	"github.com/classbeam/liveclass-server-go/internal/middleware"
	"github.com/classbeam/liveclass-server-go/internal/redis"
	"github.com/classbeam/liveclass-server-go/internal/repository"
	"github.com/classbeam/liveclass-server-go/internal/room"
	"github.com/classbeam/liveclass-server-go/internal/service"
	"github.com/classbeam/liveclass-server-go/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	stateRepo := repository.NewSessionStateRepository(db.DB)
	transcriptRepo := repository.NewTranscriptRepository(db.DB)
	recordingRepo := repository.NewRecordingRepository(db.DB)
	slotRepo := repository.NewSlotRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	noteRepo := repository.NewNoteRepository(db.DB)

	var bridge broadcast.Bridge
	if cfg.BroadcastConfigured() {
		bridge = broadcast.NewYouTubeBridge(
			context.Background(), cfg.YTClientID, cfg.YTClientSecret, cfg.YTRefreshToken,
		)
		log.Info().Msg("broadcast provider configured")
	} else {
		log.Warn().Msg("broadcast provider not configured, scheduling disabled")
	}

	var cipher *util.SecretCipher
	if cfg.StreamKeyEncryptionKey != "" {
		cipher, err = util.NewSecretCipher(cfg.StreamKeyEncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid stream key encryption key")
		}
	}

	liveClassService := service.NewLiveClassService(
		db, sessionRepo, stateRepo, slotRepo, recordingRepo, bridge, cipher, cfg.BroadcastLeadTime(),
	)
	transcriptService := service.NewTranscriptService(transcriptRepo)
	gate := access.NewGate(slotRepo)
	registry := room.NewMemoryRegistry()

	verifier := auth.NewVerifier(cfg.JWTAccessSecret)

	gw := gateway.NewGateway(
		liveClassService, transcriptService, gate, registry, stateRepo, noteRepo, gateway.NewHub(),
	)
	wsHandler := gateway.NewHandler(gw, verifier, userRepo)

	authMiddleware := middleware.NewAuthMiddleware(verifier, userRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)

	liveClassHandler := handler.NewLiveClassHandler(liveClassService, transcriptService, gate, gw)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/live-classes", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", liveClassHandler.Routes())
	})

	// Websocket upgrades bypass the request timeout; connections are
	// long-lived and carry their own deadlines.
	r.Get("/ws/live", wsHandler.ServeWS)

	statusPoller := jobs.NewStatusPoller(liveClassService, config.StatusPollInterval)
	statusPoller.Start()
	defer statusPoller.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
