package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/subsage-app/subsage-backend/internal/repo"
	"github.com/subsage-app/subsage-backend/pkg/db/models"
)

// Repository encapsulates subscription persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs a subscription repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListByUser returns every subscription a user owns, soonest billing
// date first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("next_billing_date ASC").
		Order("id ASC").
		Find(&subs).
		Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// FindByID loads a subscription scoped to its owner. Other users' rows
// behave as if they do not exist.
func (r *Repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&sub).
		Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create inserts a subscription, generating the id when unset.
func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.DB(ctx).Create(sub).Error
}

// Update applies a partial column update scoped to the owner.
func (r *Repository) Update(ctx context.Context, userID, id uuid.UUID, updates map[string]any) error {
	result := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a subscription scoped to the owner.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.DB(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Subscription{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByUser counts all of the user's subscriptions, active or not.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Count(&count).
		Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DueSubscription pairs a billing row with its owner's contact email
// for the reminder job.
type DueSubscription struct {
	ID              uuid.UUID       `gorm:"column:id"`
	UserID          uuid.UUID       `gorm:"column:user_id"`
	ServiceName     string          `gorm:"column:service_name"`
	Amount          decimal.Decimal `gorm:"column:amount"`
	NextBillingDate time.Time       `gorm:"column:next_billing_date"`
	Email           string          `gorm:"column:email"`
}

// ListDueOn returns the active subscriptions whose next billing date
// falls on the given calendar date, joined with the owner's email.
func (r *Repository) ListDueOn(ctx context.Context, date time.Time) ([]DueSubscription, error) {
	day := date.Format("2006-01-02")

	var due []DueSubscription
	if err := r.DB(ctx).
		Table("subscriptions s").
		Select("s.id, s.user_id, s.service_name, s.amount, s.next_billing_date, p.email").
		Joins("JOIN profiles p ON p.user_id = s.user_id").
		Where("s.is_active = ? AND DATE(s.next_billing_date) = ?", true, day).
		Order("s.user_id ASC").
		Order("s.service_name ASC").
		Scan(&due).
		Error; err != nil {
		return nil, err
	}
	return due, nil
}
