package subscriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/subsage-app/subsage-backend/internal/billingcycle"
	"github.com/subsage-app/subsage-backend/internal/profiles"
	"github.com/subsage-app/subsage-backend/pkg/db/models"
	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	SubscriptionRepo *Repository
	ProfileService   profiles.Service
	// FreeTierLimit caps active subscriptions for free-tier users.
	FreeTierLimit int
}

// CreateInput carries the fields accepted when tracking a new subscription.
type CreateInput struct {
	ServiceName     string
	Amount          decimal.Decimal
	BillingCycle    enums.BillingCycle
	NextBillingDate time.Time
	Category        *string
	PaymentMethod   *string
	Notes           *string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	ServiceName     *string
	Amount          *decimal.Decimal
	BillingCycle    *enums.BillingCycle
	NextBillingDate *time.Time
	Category        *string
	PaymentMethod   *string
	Notes           *string
	IsActive        *bool
	IsFlagged       *bool
}

// Service exposes business rules for tracked subscriptions.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
	// Create persists a new subscription after the tier admission check:
	// free-tier users are capped at FreeTierLimit active subscriptions.
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Subscription, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*models.Subscription, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// MarkPaid rolls the subscription forward one billing cycle from its
	// current next billing date.
	MarkPaid(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
}

type service struct {
	subscriptionRepo *Repository
	profileService   profiles.Service
	freeTierLimit    int
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription repo is required")
	}
	if params.ProfileService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile service is required")
	}
	if params.FreeTierLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free tier limit must be positive")
	}
	return &service{
		subscriptionRepo: params.SubscriptionRepo,
		profileService:   params.ProfileService,
		freeTierLimit:    params.FreeTierLimit,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	subs, err := s.subscriptionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and subscription id are required")
	}
	sub, err := s.subscriptionRepo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.ServiceName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service name is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if !input.BillingCycle.IsValid() {
		return nil, billingcycle.ErrInvalidCycle
	}
	if input.NextBillingDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "next billing date is required")
	}

	if err := s.checkAdmission(ctx, userID); err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:          userID,
		ServiceName:     strings.TrimSpace(input.ServiceName),
		Amount:          input.Amount,
		BillingCycle:    input.BillingCycle,
		NextBillingDate: input.NextBillingDate,
		Category:        input.Category,
		PaymentMethod:   input.PaymentMethod,
		Notes:           input.Notes,
		IsActive:        true,
	}
	if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	return sub, nil
}

// canAddSubscription is the admission rule: free-tier users hold at
// most limit subscriptions, counting inactive rows; pro is uncapped.
func canAddSubscription(tier enums.SubscriptionTier, count int64, limit int) bool {
	if tier == enums.SubscriptionTierPro {
		return true
	}
	return count < int64(limit)
}

// checkAdmission enforces the free-tier cap. The count and the insert
// are separate statements, so two racing creates can both pass; the cap
// is a product limit, not a billing invariant, and the next create
// corrects it.
func (s *service) checkAdmission(ctx context.Context, userID uuid.UUID) error {
	profile, err := s.profileService.Get(ctx, userID)
	if err != nil {
		return err
	}

	count, err := s.subscriptionRepo.CountByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count subscriptions")
	}
	if !canAddSubscription(profile.SubscriptionTier, count, s.freeTierLimit) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "free tier subscription limit reached").
			WithDetails(map[string]any{"limit": s.freeTierLimit})
	}
	return nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*models.Subscription, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and subscription id are required")
	}

	updates := map[string]any{}
	if input.ServiceName != nil {
		trimmed := strings.TrimSpace(*input.ServiceName)
		if trimmed == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "service name cannot be empty")
		}
		updates["service_name"] = trimmed
	}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
		}
		updates["amount"] = *input.Amount
	}
	if input.BillingCycle != nil {
		if !input.BillingCycle.IsValid() {
			return nil, billingcycle.ErrInvalidCycle
		}
		updates["billing_cycle"] = *input.BillingCycle
	}
	if input.NextBillingDate != nil {
		if input.NextBillingDate.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "next billing date cannot be empty")
		}
		updates["next_billing_date"] = *input.NextBillingDate
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.PaymentMethod != nil {
		updates["payment_method"] = *input.PaymentMethod
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.IsFlagged != nil {
		updates["is_flagged"] = *input.IsFlagged
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.subscriptionRepo.Update(ctx, userID, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return s.Get(ctx, userID, id)
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and subscription id are required")
	}
	if err := s.subscriptionRepo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "subscription not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete subscription")
	}
	return nil
}

func (s *service) MarkPaid(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	next, err := billingcycle.Next(sub.NextBillingDate, sub.BillingCycle)
	if err != nil {
		return nil, err
	}

	if err := s.subscriptionRepo.Update(ctx, userID, id, map[string]any{
		"next_billing_date": next,
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "roll billing date")
	}

	sub.NextBillingDate = next
	return sub, nil
}
