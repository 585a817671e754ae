package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subsage-app/subsage-backend/pkg/db"
	"github.com/subsage-app/subsage-backend/pkg/db/models"
	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

// ServiceParams groups dependencies for the profile service.
type ServiceParams struct {
	ProfileRepo *Repository
}

// Service exposes business rules for user billing profiles.
type Service interface {
	// GetOrCreate returns the profile for the user, creating a free-tier
	// profile on first access.
	GetOrCreate(ctx context.Context, userID uuid.UUID, email string) (*models.Profile, error)
	// Get returns the profile or a not-found error.
	Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	// ActivatePro upgrades the user to the paid tier and records the
	// payment-provider customer and subscription identifiers.
	ActivatePro(ctx context.Context, userID uuid.UUID, customerID, subscriptionID string) error
	// Downgrade moves the user back to the free tier, keeping provider
	// identifiers so the customer portal remains reachable.
	Downgrade(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	profileRepo *Repository
}

// NewService builds a profile service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.ProfileRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile repo is required")
	}
	return &service{profileRepo: params.ProfileRepo}, nil
}

func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID, email string) (*models.Profile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	fresh := &models.Profile{
		UserID:           userID,
		Email:            email,
		SubscriptionTier: enums.SubscriptionTierFree,
	}
	if err := s.profileRepo.Create(ctx, fresh); err != nil {
		// A concurrent first request may have won the insert; fall
		// through to the re-read below.
		if !db.IsUniqueViolation(err, "profiles_user_id_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
		}
	}

	// Re-read in case a concurrent request won the insert.
	profile, err = s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile after create")
	}
	return profile, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return profile, nil
}

func (s *service) ActivatePro(ctx context.Context, userID uuid.UUID, customerID, subscriptionID string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.profileRepo.SetPro(ctx, userID, customerID, subscriptionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "profile not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate pro tier")
	}
	return nil
}

func (s *service) Downgrade(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.profileRepo.SetFree(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "profile not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "downgrade tier")
	}
	return nil
}
