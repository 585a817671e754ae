// Package checkout bridges user upgrades to the Dodo Payments hosted
// checkout and customer portal.
package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/subsage-app/subsage-backend/internal/profiles"
	"github.com/subsage-app/subsage-backend/pkg/dodo"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

// defaultBillingCountry pre-fills the hosted checkout's address form.
const defaultBillingCountry = "IN"

// displayName derives a customer name from the email's local part.
func displayName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

type paymentsClient interface {
	CreateCheckoutSession(ctx context.Context, req dodo.CheckoutSessionRequest) (*dodo.CheckoutSession, error)
	CreateCustomerPortalSession(ctx context.Context, customerID, returnURL string) (*dodo.PortalSession, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Payments       paymentsClient
	ProfileService profiles.Service
	// ProductID is the Dodo product granting the paid tier.
	ProductID string
	// ReturnURL is where the hosted pages send the user afterwards.
	ReturnURL string
}

// CheckoutSession is the URL pair returned to the frontend.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PortalSession points the user at their hosted billing portal.
type PortalSession struct {
	PortalURL string `json:"portal_url"`
}

// Service exposes the upgrade and billing-management flows.
type Service interface {
	// CreateCheckoutSession opens a hosted checkout for the paid tier.
	// The user id rides along as metadata so the webhook can attribute
	// the resulting subscription.
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, email string) (*CheckoutSession, error)
	// OpenCustomerPortal returns a portal link for users with a
	// recorded payment-provider customer.
	OpenCustomerPortal(ctx context.Context, userID uuid.UUID) (*PortalSession, error)
}

type service struct {
	payments       paymentsClient
	profileService profiles.Service
	productID      string
	returnURL      string
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payments client is required")
	}
	if params.ProfileService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile service is required")
	}
	return &service{
		payments:       params.Payments,
		profileService: params.ProfileService,
		productID:      strings.TrimSpace(params.ProductID),
		returnURL:      strings.TrimSpace(params.ReturnURL),
	}, nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, email string) (*CheckoutSession, error) {
	if userID == uuid.Nil || strings.TrimSpace(email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if s.productID == "" || s.returnURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payment product not configured")
	}

	session, err := s.payments.CreateCheckoutSession(ctx, dodo.CheckoutSessionRequest{
		// Address fields are collected on the hosted page; only the
		// country default is pre-filled.
		Billing: dodo.Billing{Country: defaultBillingCountry},
		Customer: dodo.Customer{
			Email: email,
			Name:  displayName(email),
		},
		ProductCart: []dodo.ProductCartItem{
			{ProductID: s.productID, Quantity: 1},
		},
		PaymentLink: true,
		ReturnURL:   s.returnURL,
		Metadata:    map[string]string{"user_id": userID.String()},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
	}, nil
}

func (s *service) OpenCustomerPortal(ctx context.Context, userID uuid.UUID) (*PortalSession, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}

	profile, err := s.profileService.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.DodoCustomerID == nil || strings.TrimSpace(*profile.DodoCustomerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}

	session, err := s.payments.CreateCustomerPortalSession(ctx, *profile.DodoCustomerID, s.returnURL)
	if err != nil {
		return nil, err
	}
	return &PortalSession{PortalURL: session.PortalURL}, nil
}
