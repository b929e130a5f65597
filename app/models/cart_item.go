package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// CartItem is one product line in a user's cart. Carts do not reserve
// inventory; availability is checked again at checkout.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_cart_items_user_product,priority:1" json:"user_id"`
	ProductID string    `gorm:"type:char(36);not null;uniqueIndex:ux_cart_items_user_product,priority:2" json:"product_id" validate:"required,uuid4"`
	Product   Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int       `gorm:"not null" json:"quantity" validate:"gt=0,lte=99"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ci *CartItem) Validate() error {
	v := validator.New()

	return v.Struct(ci)
}
