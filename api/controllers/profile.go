package controllers

import (
	"net/http"

	"github.com/subsage-app/subsage-backend/api/middleware"
	"github.com/subsage-app/subsage-backend/api/responses"
	"github.com/subsage-app/subsage-backend/internal/profiles"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

// ProfileGet returns the user's billing profile, creating a free-tier
// profile on first access.
func ProfileGet(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		profile, err := svc.GetOrCreate(ctx, userID, middleware.UserEmailFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
