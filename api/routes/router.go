package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subsage-app/subsage-backend/api/controllers"
	webhookcontrollers "github.com/subsage-app/subsage-backend/api/controllers/webhooks"
	"github.com/subsage-app/subsage-backend/api/middleware"
	checkoutsvc "github.com/subsage-app/subsage-backend/internal/checkout"
	"github.com/subsage-app/subsage-backend/internal/insights"
	"github.com/subsage-app/subsage-backend/internal/profiles"
	"github.com/subsage-app/subsage-backend/internal/reminders"
	subscriptionsvc "github.com/subsage-app/subsage-backend/internal/subscriptions"
	dodowebhook "github.com/subsage-app/subsage-backend/internal/webhooks/dodo"
	"github.com/subsage-app/subsage-backend/pkg/config"
	"github.com/subsage-app/subsage-backend/pkg/db"
	"github.com/subsage-app/subsage-backend/pkg/dodo"
	"github.com/subsage-app/subsage-backend/pkg/logger"
	"github.com/subsage-app/subsage-backend/pkg/redis"
)

type Deps struct {
	Config              *config.Config
	Logger              *logger.Logger
	DB                  db.Pinger
	Redis               *redis.Client
	ProfileService      profiles.Service
	SubscriptionService subscriptionsvc.Service
	InsightsService     insights.Service
	CheckoutService     checkoutsvc.Service
	WebhookService      dodowebhook.Service
	WebhookVerifier     *dodo.Verifier
	ReminderService     *reminders.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/dodo", webhookcontrollers.DodoWebhook(deps.WebhookService, deps.WebhookVerifier, logg))
	})

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(middleware.ServiceToken(cfg.Reminders.TriggerToken, logg))
		r.Post("/billing-reminders", controllers.BillingRemindersTrigger(deps.ReminderService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionList(deps.SubscriptionService, logg))
			r.Post("/", controllers.SubscriptionCreate(deps.SubscriptionService, logg))
			r.Route("/{subscriptionId}", func(r chi.Router) {
				r.Get("/", controllers.SubscriptionGet(deps.SubscriptionService, logg))
				r.Patch("/", controllers.SubscriptionUpdate(deps.SubscriptionService, logg))
				r.Delete("/", controllers.SubscriptionDelete(deps.SubscriptionService, logg))
				r.Post("/mark-paid", controllers.SubscriptionMarkPaid(deps.SubscriptionService, logg))
			})
		})

		r.Get("/profile", controllers.ProfileGet(deps.ProfileService, logg))
		r.Get("/insights", controllers.InsightsSummary(deps.InsightsService, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Post("/checkout-session", controllers.BillingCheckoutSession(deps.CheckoutService, logg))
			r.Post("/customer-portal", controllers.BillingCustomerPortal(deps.CheckoutService, logg))
		})
	})

	return r
}
