package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/subsage-app/subsage-backend/pkg/enums"
)

// Profile holds per-user billing state. SubscriptionTier is authoritative only
// through the payments webhook path; nothing else writes it.
type Profile struct {
	ID                 uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	Email              string                 `gorm:"column:email;not null" json:"email"`
	SubscriptionTier   enums.SubscriptionTier `gorm:"column:subscription_tier;type:subscription_tier;not null;default:'free'" json:"subscription_tier"`
	DodoCustomerID     *string                `gorm:"column:dodo_customer_id" json:"dodo_customer_id,omitempty"`
	DodoSubscriptionID *string                `gorm:"column:dodo_subscription_id" json:"dodo_subscription_id,omitempty"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
