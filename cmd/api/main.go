package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"simple-gpt/internal/config"
	"simple-gpt/internal/db"
	"simple-gpt/internal/domain"
	apihttp "simple-gpt/internal/http"
	"simple-gpt/internal/llm"
	"simple-gpt/internal/repository"
	"simple-gpt/internal/service"
)

func main() {
	ctx := context.Background()

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

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	convRepo := repository.NewPgConversationRepository(pool)
	usageRepo := repository.NewPgUsageRepository(pool)
	subRepo := repository.NewPgSubscriptionRepository(pool)

	limits := planLimitsFromConfig(cfg)

	var anonUsage service.AnonymousUsage
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			anonUsage = service.NewRedisAnonymousUsage(redisClient)
		}
		cancel()
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, zap.NewStdLog(logger))
	tracker := service.NewUsageTracker(logger, subRepo, usageRepo, anonUsage, limits, domain.LimitOf(cfg.AnonymousRequestLimit))
	gateway := service.NewConversationGateway(logger, convRepo)
	retention := service.NewRetentionService(logger, convRepo, subRepo, limits)

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	verifier := service.NewIdentityVerifier(cfg.JWTSecret)

	convHandler := apihttp.NewConversationHandler(logger, gateway, retention)
	usageHandler := apihttp.NewUsageHandler(logger, tracker)
	chatHandler := apihttp.NewChatHandler(logger, llmClient, tracker)
	router := apihttp.NewRouter(logger, verifier, convHandler, usageHandler, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// planLimitsFromConfig arma la tabla de cuotas con los overrides de entorno.
func planLimitsFromConfig(cfg *config.Config) domain.PlanLimits {
	return domain.PlanLimits{
		domain.PlanFree: {
			DailyMessages: domain.ParseLimit(cfg.FreeDailyMessageLimit),
			HistoryDays:   domain.ParseLimit(cfg.FreeHistoryDays),
		},
		domain.PlanPro: {
			DailyMessages: domain.Unlimited(),
			HistoryDays:   domain.ParseLimit(cfg.ProHistoryDays),
		},
		domain.PlanPremium: {
			DailyMessages: domain.Unlimited(),
			HistoryDays:   domain.Unlimited(),
		},
	}
}
