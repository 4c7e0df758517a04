package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/takeone/relay/internal/api"
	"github.com/takeone/relay/internal/auth"
	"github.com/takeone/relay/internal/config"
	"github.com/takeone/relay/internal/presence"
	"github.com/takeone/relay/internal/push"
	"github.com/takeone/relay/internal/ratelimit"
	"github.com/takeone/relay/internal/relay"
	"github.com/takeone/relay/internal/store"
)

func main() {
	godotenv.Load()

	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid redis URL")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	cancel()
	logger.Info().Msg("connected to redis")

	var (
		pendingStore store.PendingStore
		tokenStore   store.DeviceTokenStore
		storePinger  api.Pinger
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pg.Close()

		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}

		pendingStore = pg
		tokenStore = pg
		storePinger = pg
		logger.Info().Msg("connected to postgres")
	} else {
		if cfg.IsProduction() {
			logger.Fatal().Msg("DATABASE_URL is required in production")
		}
		mem := store.NewMemoryStore()
		pendingStore = mem
		tokenStore = mem
		logger.Warn().Msg("DATABASE_URL not set, pending messages held in memory only")
	}

	var sender push.Sender
	if cfg.FirebaseProjectID != "" && cfg.FirebaseCredentialsFile != "" {
		credentials, err := os.ReadFile(cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read firebase credentials")
		}
		fcm, err := push.NewFCMClient(cfg.FirebaseProjectID, credentials)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize FCM")
		}
		sender = fcm
		logger.Info().Str("project", cfg.FirebaseProjectID).Msg("push notifications enabled")
	} else {
		logger.Warn().Msg("firebase not configured, push notifications disabled")
	}

	presenceStore := presence.NewStore(rdb)
	trigger := push.NewTrigger(sender, tokenStore, logger)
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimitPerMinute)
	authenticator := auth.NewSessionClient(cfg.AuthServiceURL)

	engine := relay.NewEngine(presenceStore, pendingStore, trigger, limiter, int64(cfg.MessageMaxSize), logger)

	router := gin.New()
	handlers := api.NewHandlers(rdb, presenceStore, tokenStore, storePinger, logger)
	middleware := api.NewMiddleware(authenticator, logger)
	api.SetupRoutes(router, engine, handlers, middleware, authenticator, cfg.CORSOrigins, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("port", cfg.Port).Msg("relay server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}
