package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog item with its available-quantity counter. The counter
// is only ever written through the inventory ledger, which clamps it at zero.
type Product struct {
	ID                string         `gorm:"type:char(36);primaryKey" json:"id"`
	Name              string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=2,max=200"`
	Description       string         `gorm:"type:text" json:"description" validate:"max=5000"`
	Category          string         `gorm:"type:varchar(100);index" json:"category" validate:"max=100"`
	PriceCents        int64          `gorm:"not null" json:"price_cents" validate:"gte=0"`
	Currency          string         `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency" validate:"len=3"`
	InventoryQuantity int            `gorm:"not null;default:0" json:"inventory_quantity" validate:"gte=0"`
	IsActive          bool           `gorm:"default:true;index" json:"is_active"`
	Materials         string         `gorm:"type:varchar(255)" json:"materials"`
	IsCustomizable    bool           `gorm:"default:false" json:"is_customizable"`
	ViewCount         uint64         `gorm:"default:0" json:"view_count"`
	Images            []ProductImage `gorm:"foreignKey:ProductID" json:"images,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProductImage stores gallery images for a product.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID string    `gorm:"type:char(36);not null;index" json:"product_id"`
	URL       string    `gorm:"type:varchar(500);not null" json:"url" validate:"required,max=500"`
	AltText   string    `gorm:"type:varchar(255)" json:"alt_text"`
	SortOrder int       `gorm:"default:0" json:"sort_order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Product) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// InStock reports whether the product has available inventory.
func (p *Product) InStock() bool {
	return p.InventoryQuantity > 0
}
