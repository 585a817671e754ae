// Package webhooks holds HTTP handlers for payment-provider callbacks.
package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/subsage-app/subsage-backend/api/responses"
	dodowebhook "github.com/subsage-app/subsage-backend/internal/webhooks/dodo"
	"github.com/subsage-app/subsage-backend/pkg/dodo"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// DodoWebhook handles Dodo subscription lifecycle events. A nil
// verifier skips signature checks; that mode exists only for local
// development and is an explicit configuration opt-in.
func DodoWebhook(svc dodowebhook.Service, verifier *dodo.Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if verifier != nil {
			err := verifier.Verify(
				payload,
				r.Header.Get(dodo.HeaderWebhookID),
				r.Header.Get(dodo.HeaderWebhookTimestamp),
				r.Header.Get(dodo.HeaderWebhookSignature),
			)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature rejected"))
				return
			}
		}

		var event dodowebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		// Processing failures are logged but still acknowledged. The
		// provider redelivers on non-2xx, and the tier transitions are
		// idempotent, so redelivery is the recovery mechanism we want
		// only for transport failures, not handler bugs.
		if err := svc.HandleEvent(ctx, event); err != nil && logg != nil {
			eventCtx := logg.WithField(ctx, "event_type", event.Type)
			logg.Error(eventCtx, "webhook event processing failed", err)
		}

		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
