package repository

import (
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
)

// ProductRepository defines the interface for product-related database operations
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id string) (*models.Product, error)
	Update(product *models.Product) error
	Delete(id string) error
	List(offset, limit int) ([]models.Product, error)
	ListActive(offset, limit int) ([]models.Product, error)
	Count() (int64, error)
	Search(query string) ([]models.Product, error)
}

// CartRepository defines the interface for cart-related database operations
type CartRepository interface {
	GetItemsByUserID(userID uint) ([]models.CartItem, error)
	GetItem(userID uint, productID string) (*models.CartItem, error)
	UpsertItem(item *models.CartItem) error
	RemoveItem(userID uint, productID string) error
	ClearByUserID(userID uint) error
}

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Order, error)
	UpdateStatus(id string, status string) error
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	LinkRevenueCatCustomer(userID uint, customerID string) error
}

// Repositories groups all repository implementations
type Repositories struct {
	Product ProductRepository
	Cart    CartRepository
	Order   OrderRepository
	User    UserRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Product: NewProductRepository(db),
		Cart:    NewCartRepository(db),
		Order:   NewOrderRepository(db),
		User:    NewUserRepository(db),
	}
}
