package main

import (
	"context"
	"time"

	"outfitapi/config"
	"outfitapi/dbhelper"
	"outfitapi/logger"
	"outfitapi/services"
	"outfitapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

func runScheduler(cfg config.Config) {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.AsyncBrokerAddress}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	pruneTask, err := tasks.NewPruneHistoryTask(cfg.HistoryRetentionDays)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build prune task")
	}

	entries := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "30 3 * * *", // 3:30 AM daily
			task: pruneTask,
			desc: "Generation history pruning",
		},
	}

	for _, entry := range entries {
		entryID, err := scheduler.Register(entry.cron, entry.task, asynq.Queue(tasks.QueueHistory))
		if err != nil {
			log.Fatal().Err(err).Str("task", entry.desc).Msg("failed to register task")
		}
		log.Info().Str("task", entry.desc).Str("entry_id", entryID).Str("cron", entry.cron).Msg("registered task")
	}

	log.Info().Msg("starting scheduler")
	if err := scheduler.Run(); err != nil {
		log.Fatal().Err(err).Msg("scheduler failed")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log.Logger = logger.New(cfg.Env)

	if cfg.AsyncBrokerAddress == "" {
		log.Fatal().Msg("ASYNC_BROKER_ADDRESS is not set")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Env,
		Release:     "outfitapi-worker@1.0.0",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sentry.Init")
	}
	defer sentry.Flush(2 * time.Second)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.AsyncBrokerAddress},
		asynq.Config{Concurrency: 5, Queues: map[string]int{
			tasks.QueueHistory: 1,
		}},
	)

	var storage services.SnapshotStorageProvider
	if cfg.R2Options().Configured() {
		awsService, err := services.NewAWSService(context.Background(), cfg.R2Options())
		if err != nil {
			log.Fatal().Err(err).Msg("[Queue] failed to initialize AWS provider: S3")
		}
		storage = awsService
	} else {
		log.Warn().Msg("R2 is not configured, snapshots will not be uploaded")
	}

	db := dbhelper.SetupDB(cfg.DB)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRecordGeneration, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleRecordGenerationTask(ctx, t, db, storage)
	})
	mux.HandleFunc(tasks.TypePruneHistory, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandlePruneHistoryTask(ctx, t, db, cfg.HistoryRetentionDays)
	})

	go runScheduler(cfg)

	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
