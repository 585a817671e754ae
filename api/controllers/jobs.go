package controllers

import (
	"net/http"

	"github.com/subsage-app/subsage-backend/api/responses"
	"github.com/subsage-app/subsage-backend/internal/reminders"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

// BillingRemindersTrigger runs one reminder pass on demand. The route
// is guarded by the service-token middleware; partial failures come
// back in the result body rather than failing the request.
func BillingRemindersTrigger(svc *reminders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "reminders are not configured"))
			return
		}

		result, err := svc.Execute(ctx)
		if err != nil && result.SentCount == 0 && len(result.Errors) == 0 {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
