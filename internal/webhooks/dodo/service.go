// Package dodo processes subscription lifecycle events from the Dodo
// Payments webhook.
package dodo

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/subsage-app/subsage-backend/internal/profiles"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
	"github.com/subsage-app/subsage-backend/pkg/logger"
)

// Event types Dodo delivers for subscriptions and payments.
// Renewed and failed carry no tier transition: a renewal changes
// nothing for an already-pro user, and a failed renewal may be
// retried by the provider before an on_hold lands.
const (
	EventSubscriptionActive    = "subscription.active"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionExpired   = "subscription.expired"
	EventSubscriptionOnHold    = "subscription.on_hold"
	EventSubscriptionFailed    = "subscription.failed"
	EventPaymentSucceeded      = "payment.succeeded"
	EventPaymentFailed         = "payment.failed"
)

// Event is the envelope Dodo posts to the webhook endpoint.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SubscriptionData is the payload carried by subscription.* events.
type SubscriptionData struct {
	SubscriptionID string            `json:"subscription_id"`
	CustomerID     string            `json:"customer_id"`
	Customer       *customerBlock    `json:"customer,omitempty"`
	Metadata       map[string]string `json:"metadata"`
}

type customerBlock struct {
	CustomerID string `json:"customer_id"`
}

// customerID prefers the nested customer block, falling back to the
// top-level field; Dodo has shipped both shapes.
func (d SubscriptionData) customerID() string {
	if d.Customer != nil && d.Customer.CustomerID != "" {
		return d.Customer.CustomerID
	}
	return d.CustomerID
}

type tierAction int

const (
	actionNone tierAction = iota
	actionActivatePro
	actionDowngrade
	actionLogOnly
)

// actionFor maps an event type to the tier transition it triggers.
// Unknown event types are acknowledged and ignored.
func actionFor(eventType string) tierAction {
	switch eventType {
	case EventSubscriptionActive, EventSubscriptionCreated:
		return actionActivatePro
	case EventSubscriptionCancelled, EventSubscriptionExpired, EventSubscriptionOnHold:
		return actionDowngrade
	case EventPaymentSucceeded, EventPaymentFailed:
		return actionLogOnly
	default:
		return actionNone
	}
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Logger         *logger.Logger
	ProfileService profiles.Service
}

// Service applies webhook events to user billing profiles.
type Service interface {
	// HandleEvent applies one event. Events that carry no usable user
	// reference are logged and skipped without error; the endpoint
	// acknowledges them so the provider does not redeliver forever.
	HandleEvent(ctx context.Context, event Event) error
}

type service struct {
	logg           *logger.Logger
	profileService profiles.Service
}

// NewService builds a webhook service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.ProfileService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile service is required")
	}
	return &service{
		logg:           params.Logger,
		profileService: params.ProfileService,
	}, nil
}

func (s *service) HandleEvent(ctx context.Context, event Event) error {
	ctx = s.logg.WithField(ctx, "event_type", event.Type)

	action := actionFor(event.Type)
	switch action {
	case actionNone:
		s.logg.Info(ctx, "ignoring unhandled webhook event")
		return nil
	case actionLogOnly:
		s.logg.Info(ctx, "payment event acknowledged")
		return nil
	}

	var data SubscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription data")
	}

	userID, ok := s.userIDFrom(ctx, data)
	if !ok {
		// Nothing to apply the transition to. Skip rather than fail so
		// the provider stops redelivering an event we can never use.
		return nil
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	switch action {
	case actionActivatePro:
		if err := s.profileService.ActivatePro(ctx, userID, data.customerID(), data.SubscriptionID); err != nil {
			return err
		}
		s.logg.Info(ctx, "profile upgraded to pro")
	case actionDowngrade:
		if err := s.profileService.Downgrade(ctx, userID); err != nil {
			return err
		}
		s.logg.Info(ctx, "profile downgraded to free")
	}
	return nil
}

func (s *service) userIDFrom(ctx context.Context, data SubscriptionData) (uuid.UUID, bool) {
	raw, ok := data.Metadata["user_id"]
	if !ok || raw == "" {
		s.logg.Warn(ctx, "webhook event missing user_id metadata; skipping")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		s.logg.Warn(ctx, "webhook event carries malformed user_id; skipping")
		return uuid.Nil, false
	}
	return userID, true
}
