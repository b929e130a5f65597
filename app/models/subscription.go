package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
)

// Subscription lifecycle statuses. EXPIRED is terminal; a record is never
// deleted, only a fresh activation event may flip it back to ACTIVE.
const (
	SubscriptionStatusPending = "PENDING"
	SubscriptionStatusActive  = "ACTIVE"
	SubscriptionStatusExpired = "EXPIRED"
)

const (
	PlanTypeFree    = "FREE"
	PlanTypePremium = "PREMIUM"
)

// Subscription mirrors the billing provider's subscription state for one
// provider customer. The provider customer id is the correlation key for
// inbound webhook events and is unique and immutable once assigned.
type Subscription struct {
	ID                   string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID               uint       `gorm:"index" json:"user_id"`
	RevenueCatCustomerID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_rc_customer" json:"revenuecat_customer_id"`
	Status               string     `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	PlanType             string     `gorm:"type:varchar(32);not null;default:'FREE'" json:"plan_type"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsEntitled reports whether the subscription currently grants paid access.
// A subscription marked for cancellation stays entitled until it expires.
func (s *Subscription) IsEntitled() bool {
	return s.Status == SubscriptionStatusActive
}
