package main

import (
	"context"
	"time"

	"outfitapi/config"
	"outfitapi/controllers"
	"outfitapi/dbhelper"
	"outfitapi/logger"
	"outfitapi/services"
	"outfitapi/tasks"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Logger = logger.New(cfg.Env)

	err = sentry.Init(sentry.ClientOptions{
		// Empty DSN disables reporting.
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Env,
		Release:          "outfitapi@1.0.0",
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sentry.Init")
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	ctx := context.Background()

	orchestrator := services.NewOrchestrator(cfg.OrchestratorOptions())
	if len(orchestrator.Providers()) == 0 {
		log.Warn().Msg("no AI provider keys configured, generation requests will fail with CONFIG_ERROR")
	} else {
		log.Info().Strs("providers", orchestrator.Providers()).Msg("AI providers configured")
	}

	imageSearch, err := services.NewImageSearchService(cfg.ImageSearchOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image search")
	}

	deps := controllers.Dependencies{
		Generator:   orchestrator,
		ImageSearch: imageSearch,
	}

	if cfg.RedisURL != "" {
		redisClient, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		deps.GenerateLimiter = services.NewRedisRateLimitStore(redisClient, "ratelimit:", cfg.RateLimitPerMinute, time.Minute)
		deps.ImageLimiter = services.NewRedisRateLimitStore(redisClient, "imagesearch:", cfg.ImageSearchPerMinute, time.Minute)
	} else {
		generateLimiter := services.NewMemoryRateLimitStore(services.MemoryRateLimitOptions{Limit: cfg.RateLimitPerMinute, Window: time.Minute})
		defer generateLimiter.Close()
		imageLimiter := services.NewMemoryRateLimitStore(services.MemoryRateLimitOptions{Limit: cfg.ImageSearchPerMinute, Window: time.Minute})
		defer imageLimiter.Close()
		deps.GenerateLimiter = generateLimiter
		deps.ImageLimiter = imageLimiter
	}

	if cfg.DB.Configured() {
		deps.DB = dbhelper.SetupDB(cfg.DB)
	}

	if cfg.R2Options().Configured() {
		awsService, err := services.NewAWSService(ctx, cfg.R2Options())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize AWS provider: S3")
		}
		urlCache, err := services.NewURLCacheService(awsService)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize URL cache service")
		}
		deps.URLCache = urlCache
	}

	if cfg.AsyncBrokerAddress != "" {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.AsyncBrokerAddress})
		defer asynqClient.Close()
		deps.Recorder = tasks.AsynqHistoryRecorder{Client: asynqClient}
	}

	e := controllers.SetupServer(deps)
	e.Debug = cfg.IsLocal()
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	log.Info().Str("port", cfg.Port).Msg("starting outfit api")
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
