package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/markora/shopcore/app/models"
)

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository creates a new cart repository instance
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetItemsByUserID(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *cartRepository) GetItem(userID uint, productID string) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) UpsertItem(item *models.CartItem) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "product_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity",
			"updated_at",
		}),
	}).Create(item).Error; err != nil {
		return err
	}

	return r.db.Where("user_id = ? AND product_id = ?", item.UserID, item.ProductID).
		First(item).Error
}

func (r *cartRepository) RemoveItem(userID uint, productID string) error {
	return r.db.Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{}).Error
}

func (r *cartRepository) ClearByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
