package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsage-app/subsage-backend/pkg/enums"
)

// Subscription is one recurring payment a user tracks. NextBillingDate is a
// calendar date (UTC midnight); no timezone arithmetic is performed on it.
type Subscription struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ServiceName     string             `gorm:"column:service_name;not null" json:"service_name"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	BillingCycle    enums.BillingCycle `gorm:"column:billing_cycle;type:billing_cycle;not null" json:"billing_cycle"`
	NextBillingDate time.Time          `gorm:"column:next_billing_date;type:date;not null;index" json:"next_billing_date"`
	Category        *string            `gorm:"column:category" json:"category,omitempty"`
	PaymentMethod   *string            `gorm:"column:payment_method" json:"payment_method,omitempty"`
	Notes           *string            `gorm:"column:notes" json:"notes,omitempty"`
	IsActive        bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsFlagged       bool               `gorm:"column:is_flagged;not null;default:false" json:"is_flagged"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
