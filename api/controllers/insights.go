package controllers

import (
	"net/http"

	"github.com/subsage-app/subsage-backend/api/responses"
	"github.com/subsage-app/subsage-backend/internal/insights"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

// InsightsSummary returns the user's spending rollup.
func InsightsSummary(svc insights.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "insights service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		summary, err := svc.Summarize(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
