package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsage-app/subsage-backend/api/middleware"
	"github.com/subsage-app/subsage-backend/api/responses"
	"github.com/subsage-app/subsage-backend/api/validators"
	"github.com/subsage-app/subsage-backend/internal/subscriptions"
	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

type createSubscriptionPayload struct {
	ServiceName     string          `json:"service_name" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	BillingCycle    string          `json:"billing_cycle" validate:"required"`
	NextBillingDate string          `json:"next_billing_date" validate:"required"`
	Category        *string         `json:"category"`
	PaymentMethod   *string         `json:"payment_method"`
	Notes           *string         `json:"notes"`
}

type updateSubscriptionPayload struct {
	ServiceName     *string          `json:"service_name"`
	Amount          *decimal.Decimal `json:"amount"`
	BillingCycle    *string          `json:"billing_cycle"`
	NextBillingDate *string          `json:"next_billing_date"`
	Category        *string          `json:"category"`
	PaymentMethod   *string          `json:"payment_method"`
	Notes           *string          `json:"notes"`
	IsActive        *bool            `json:"is_active"`
	IsFlagged       *bool            `json:"is_flagged"`
}

func authedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

func subscriptionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "subscriptionId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id")
	}
	return id, nil
}

func parseBillingDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "next billing date must be YYYY-MM-DD")
	}
	return parsed, nil
}

// SubscriptionList returns all of the user's tracked subscriptions.
func SubscriptionList(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		subs, err := svc.List(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subs)
	}
}

// SubscriptionGet returns one subscription by id.
func SubscriptionGet(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := subscriptionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Get(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

// SubscriptionCreate tracks a new recurring payment.
func SubscriptionCreate(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createSubscriptionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		nextDate, err := parseBillingDate(payload.NextBillingDate)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Create(ctx, userID, subscriptions.CreateInput{
			ServiceName:     payload.ServiceName,
			Amount:          payload.Amount,
			BillingCycle:    enums.BillingCycle(payload.BillingCycle),
			NextBillingDate: nextDate,
			Category:        payload.Category,
			PaymentMethod:   payload.PaymentMethod,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

// SubscriptionUpdate applies a partial update.
func SubscriptionUpdate(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := subscriptionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updateSubscriptionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := subscriptions.UpdateInput{
			ServiceName:   payload.ServiceName,
			Amount:        payload.Amount,
			Category:      payload.Category,
			PaymentMethod: payload.PaymentMethod,
			Notes:         payload.Notes,
			IsActive:      payload.IsActive,
			IsFlagged:     payload.IsFlagged,
		}
		if payload.BillingCycle != nil {
			cycle := enums.BillingCycle(*payload.BillingCycle)
			input.BillingCycle = &cycle
		}
		if payload.NextBillingDate != nil {
			nextDate, err := parseBillingDate(*payload.NextBillingDate)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			input.NextBillingDate = &nextDate
		}

		sub, err := svc.Update(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

// SubscriptionDelete removes a tracked subscription.
func SubscriptionDelete(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := subscriptionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Delete(ctx, userID, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// SubscriptionMarkPaid advances the next billing date by one cycle.
func SubscriptionMarkPaid(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := subscriptionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.MarkPaid(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}
