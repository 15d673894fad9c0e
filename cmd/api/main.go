package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shapeshift/internal/config"
	"shapeshift/internal/db"
	apihttp "shapeshift/internal/http"
	"shapeshift/internal/llm"
	"shapeshift/internal/repository"
	"shapeshift/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	chatRepo := repository.NewPgChatRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	var (
		settingsStore service.SettingsStore
		tokenStore    service.RefreshTokenStore
		authLimiter   service.RateLimiter
		sendLimiter   service.RateLimiter
		redisClient   *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			settingsStore = service.NewRedisSettingsStore(redisClient)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			authLimiter = service.NewRedisRateLimiter(redisClient, "auth", cfg.RateLimitWindow, cfg.RateLimitAuth)
			sendLimiter = service.NewRedisRateLimiter(redisClient, "send", cfg.RateLimitWindow, cfg.RateLimitSend)
		}
		cancel()
	}
	if settingsStore == nil {
		logger.Warn("settings are kept in memory and will not survive a restart")
		authLimiter = service.NewMemoryRateLimiter(cfg.RateLimitWindow, cfg.RateLimitAuth)
		sendLimiter = service.NewMemoryRateLimiter(cfg.RateLimitWindow, cfg.RateLimitSend)
	}

	jwtSvc := service.NewJWTServiceWithStore(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, tokenStore)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	completionClient := llm.NewOpenAIClient(cfg.ShapesBaseURL, logger)
	orchestrator := service.NewOrchestrator(completionClient, logger)
	settingsSvc := service.NewSettingsService(settingsStore, cfg.ShapesAppID, cfg.ShapesAPIKey)
	personaSvc := service.NewPersonaService(settingsSvc)
	persistence := service.NewChatPersistence(chatRepo, messageRepo, logger)
	conversationSvc := service.NewConversationService(orchestrator, persistence, settingsSvc, logger, cfg.FanoutLimit)
	exchanger := service.NewAuthExchanger(cfg.AuthExchangeURL, cfg.ShapesAppID, nil)
	renderer := service.NewRenderer(service.NewMediaClassifier(cfg.MediaHost), service.NewIconAssigner())

	autosaver := service.NewAutosaver(conversationSvc, cfg.AutosaveInterval, logger)
	autosaver.SetIdleTTL(cfg.ConversationTTL)
	go autosaver.Run(ctx)

	conversationHandler := apihttp.NewConversationHandler(logger, conversationSvc, personaSvc, renderer)
	router := apihttp.NewRouter(logger, jwtSvc, apihttp.Handlers{
		Auth:          apihttp.NewAuthHandler(logger, jwtSvc, exchanger, settingsSvc),
		Settings:      apihttp.NewSettingsHandler(logger, settingsSvc),
		Personas:      apihttp.NewPersonaHandler(logger, personaSvc, nil),
		Conversations: conversationHandler,
		Chats:         apihttp.NewChatHandler(logger, conversationSvc, conversationHandler),
		AuthLimiter:   authLimiter,
		SendLimiter:   sendLimiter,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
		saved := autosaver.SaveAll(shutdownCtx)
		logger.Info("final autosave", zap.Int("conversations", saved))
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	<-shutdownDone
}
