package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/subsage-app/subsage-backend/api/routes"
	"github.com/subsage-app/subsage-backend/internal/checkout"
	"github.com/subsage-app/subsage-backend/internal/insights"
	"github.com/subsage-app/subsage-backend/internal/profiles"
	"github.com/subsage-app/subsage-backend/internal/reminders"
	"github.com/subsage-app/subsage-backend/internal/subscriptions"
	dodowebhook "github.com/subsage-app/subsage-backend/internal/webhooks/dodo"
	"github.com/subsage-app/subsage-backend/pkg/config"
	"github.com/subsage-app/subsage-backend/pkg/db"
	"github.com/subsage-app/subsage-backend/pkg/dodo"
	"github.com/subsage-app/subsage-backend/pkg/logger"
	"github.com/subsage-app/subsage-backend/pkg/migrate"
	"github.com/subsage-app/subsage-backend/pkg/redis"
	"github.com/subsage-app/subsage-backend/pkg/resend"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	profileService, err := profiles.NewService(profiles.ServiceParams{
		ProfileRepo: profiles.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create profile service", err)
		os.Exit(1)
	}

	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		SubscriptionRepo: subscriptionRepo,
		ProfileService:   profileService,
		FreeTierLimit:    cfg.Tiers.FreeSubscriptionLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	insightsService, err := insights.NewService(insights.ServiceParams{
		SubscriptionService: subscriptionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create insights service", err)
		os.Exit(1)
	}

	// Checkout stays offline until Dodo credentials are configured; the
	// billing endpoints report unavailable instead of failing startup.
	var checkoutService checkout.Service
	if cfg.Dodo.APIKey != "" {
		if cfg.Dodo.ProductID == "" || cfg.Dodo.ReturnURL == "" {
			logg.Error(context.Background(), "dodo api key set without product id and return url", nil)
			os.Exit(1)
		}
		dodoClient, err := dodo.NewClient(cfg.Dodo.APIKey, dodo.WithBaseURL(cfg.Dodo.BaseURL))
		if err != nil {
			logg.Error(context.Background(), "failed to create dodo client", err)
			os.Exit(1)
		}
		checkoutService, err = checkout.NewService(checkout.ServiceParams{
			Payments:       dodoClient,
			ProfileService: profileService,
			ProductID:      cfg.Dodo.ProductID,
			ReturnURL:      cfg.Dodo.ReturnURL,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create checkout service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "dodo api key not configured, billing endpoints disabled")
	}

	webhookService, err := dodowebhook.NewService(dodowebhook.ServiceParams{
		Logger:         logg,
		ProfileService: profileService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	var verifier *dodo.Verifier
	if cfg.Dodo.VerificationRequired() {
		verifier, err = dodo.NewVerifier(cfg.Dodo.WebhookSecret)
		if err != nil {
			logg.Error(context.Background(), "failed to create webhook verifier", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "webhook signature verification disabled")
	}

	var reminderService *reminders.Service
	if cfg.Resend.APIKey != "" {
		mailClient, err := resend.NewClient(cfg.Resend.APIKey, cfg.Resend.DefaultFrom)
		if err != nil {
			logg.Error(context.Background(), "failed to create resend client", err)
			os.Exit(1)
		}
		reminderService, err = reminders.NewService(reminders.ServiceParams{
			Logger:           logg,
			SubscriptionRepo: subscriptionRepo,
			Mailer:           mailClient,
			LeadDays:         cfg.Reminders.LeadDays,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create reminder service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "resend api key not configured, reminder trigger disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:              cfg,
			Logger:              logg,
			DB:                  dbClient,
			Redis:               redisClient,
			ProfileService:      profileService,
			SubscriptionService: subscriptionService,
			InsightsService:     insightsService,
			CheckoutService:     checkoutService,
			WebhookService:      webhookService,
			WebhookVerifier:     verifier,
			ReminderService:     reminderService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
