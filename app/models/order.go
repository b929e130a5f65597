package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

// Order is a checked-out cart. Inventory for its items has already been
// reserved through the ledger by the time the order row exists.
type Order struct {
	ID            string      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID        uint        `gorm:"not null;index" json:"user_id"`
	Status        string      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SubtotalCents int64       `gorm:"not null" json:"subtotal_cents"`
	ShippingCents int64       `gorm:"not null;default:0" json:"shipping_cents"`
	TotalCents    int64       `gorm:"not null" json:"total_cents"`
	Currency      string      `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Items         []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt     time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderItem is a priced snapshot of one cart line at checkout time.
type OrderItem struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrderID        string `gorm:"type:char(36);not null;index" json:"order_id"`
	ProductID      string `gorm:"type:char(36);not null;index" json:"product_id"`
	ProductName    string `gorm:"type:varchar(200);not null" json:"product_name"`
	Quantity       int    `gorm:"not null" json:"quantity"`
	UnitPriceCents int64  `gorm:"not null" json:"unit_price_cents"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
