package controllers

import (
	"net/http"

	"github.com/subsage-app/subsage-backend/api/middleware"
	"github.com/subsage-app/subsage-backend/api/responses"
	"github.com/subsage-app/subsage-backend/internal/checkout"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

// BillingCheckoutSession opens a hosted checkout for the paid tier.
func BillingCheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "billing is not configured"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.CreateCheckoutSession(ctx, userID, middleware.UserEmailFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// BillingCustomerPortal links the user to their hosted billing portal.
func BillingCustomerPortal(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "billing is not configured"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.OpenCustomerPortal(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}
