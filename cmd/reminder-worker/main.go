package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/subsage-app/subsage-backend/internal/cron"
	"github.com/subsage-app/subsage-backend/internal/reminders"
	"github.com/subsage-app/subsage-backend/internal/subscriptions"
	"github.com/subsage-app/subsage-backend/pkg/config"
	"github.com/subsage-app/subsage-backend/pkg/db"
	"github.com/subsage-app/subsage-backend/pkg/logger"
	"github.com/subsage-app/subsage-backend/pkg/metrics"
	"github.com/subsage-app/subsage-backend/pkg/migrate"
	"github.com/subsage-app/subsage-backend/pkg/redis"
	"github.com/subsage-app/subsage-backend/pkg/resend"
)

const lockKeyFormat = "subsage:reminder-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reminder-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reminder-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reminder-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mailClient, err := resend.NewClient(cfg.Resend.APIKey, cfg.Resend.DefaultFrom)
	if err != nil {
		logg.Error(context.Background(), "failed to create resend client", err)
		os.Exit(1)
	}

	reminderService, err := reminders.NewService(reminders.ServiceParams{
		Logger:           logg,
		SubscriptionRepo: subscriptions.NewRepository(dbClient.DB()),
		Mailer:           mailClient,
		LeadDays:         cfg.Reminders.LeadDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reminders.NewJob(reminderService))
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reminders.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reminder worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reminder worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reminder worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
