package profiles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/subsage-app/subsage-backend/internal/repo"
	"github.com/subsage-app/subsage-backend/pkg/db/models"
	"github.com/subsage-app/subsage-backend/pkg/enums"
)

// Repository encapsulates profile persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs a profile repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByUserID loads the profile for a user.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB(ctx).
		Where("user_id = ?", userID).
		First(&profile).
		Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Create inserts a new profile, generating the id when unset. Duplicate
// user ids are ignored so concurrent first requests converge on one row.
func (r *Repository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if profile.SubscriptionTier == "" {
		profile.SubscriptionTier = enums.SubscriptionTierFree
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(profile).
		Error
}

// SetPro upgrades the user, recording the payment-provider identifiers.
func (r *Repository) SetPro(ctx context.Context, userID uuid.UUID, customerID, subscriptionID string) error {
	return r.updateTier(ctx, userID, map[string]any{
		"subscription_tier":    enums.SubscriptionTierPro,
		"dodo_customer_id":     customerID,
		"dodo_subscription_id": subscriptionID,
	})
}

// SetFree downgrades the user. Provider identifiers are kept so the
// customer-portal link keeps working after a cancellation.
func (r *Repository) SetFree(ctx context.Context, userID uuid.UUID) error {
	return r.updateTier(ctx, userID, map[string]any{
		"subscription_tier": enums.SubscriptionTierFree,
	})
}

func (r *Repository) updateTier(ctx context.Context, userID uuid.UUID, updates map[string]any) error {
	result := r.DB(ctx).
		Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
