// Package inventory owns the per-product available-quantity counter.
package inventory

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/keylock"
	"github.com/markora/shopcore/internal/pkg/notify"
)

// ErrProductNotFound is returned for deltas against unknown product ids.
var ErrProductNotFound = errors.New("product not found")

// ErrInsufficientStock is returned by Reserve when the available quantity
// is below the requested amount. Nothing is written in that case.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository provides the quantity reads and writes behind the ledger.
type Repository interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	SetQuantity(ctx context.Context, productID string, quantity int) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("inventory_quantity", quantity).Error
}

// Ledger applies signed deltas to product quantities. The read-modify-write
// for one product is serialized through a key lock; the resulting quantity
// is clamped at zero, so oversized negative deltas truncate silently.
// Callers that need reject-if-insufficient semantics use Reserve, which
// checks availability under the same lock.
type Ledger struct {
	repo       Repository
	publisher  notify.Publisher
	locks      *keylock.Striped
	onLowStock func(productID string, quantity int)
	lowStockAt int
}

// NewLedger creates a ledger from an injected repository and publisher.
func NewLedger(repo Repository, publisher notify.Publisher) *Ledger {
	return &Ledger{
		repo:      repo,
		publisher: publisher,
		locks:     keylock.New(),
	}
}

// NewLedgerFromDB creates a ledger from a GORM DB handle.
func NewLedgerFromDB(db *gorm.DB, publisher notify.Publisher) *Ledger {
	return NewLedger(NewRepository(db), publisher)
}

// SetLowStockAlert installs a callback invoked after a negative delta
// leaves the quantity at or below the threshold.
func (l *Ledger) SetLowStockAlert(threshold int, fn func(productID string, quantity int)) {
	l.lowStockAt = threshold
	l.onLowStock = fn
}

// ApplyDelta adjusts the available quantity by a signed delta and returns
// the new quantity. On success a change notification is published on the
// product's topic, fire-and-forget: publish failures are logged, never
// surfaced, and do not roll back the write.
func (l *Ledger) ApplyDelta(ctx context.Context, productID string, delta int) (int, error) {
	unlock := l.locks.Lock(productID)
	defer unlock()

	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}

	newQuantity := product.InventoryQuantity + delta
	if newQuantity < 0 {
		newQuantity = 0
	}

	return newQuantity, l.write(ctx, productID, newQuantity, delta)
}

// Reserve decrements the available quantity by qty only when at least qty
// is on hand, returning the remaining quantity. The availability check and
// the write happen under the product's lock, so concurrent reservations
// cannot oversell. On ErrInsufficientStock the returned quantity is the
// amount that was available at decision time.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, errors.New("reserve quantity must be positive")
	}

	unlock := l.locks.Lock(productID)
	defer unlock()

	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}

	if product.InventoryQuantity < qty {
		return product.InventoryQuantity, ErrInsufficientStock
	}

	newQuantity := product.InventoryQuantity - qty
	return newQuantity, l.write(ctx, productID, newQuantity, -qty)
}

// write persists the new quantity, publishes the change and fires the low
// stock hook. Callers must hold the product's lock.
func (l *Ledger) write(ctx context.Context, productID string, newQuantity, delta int) error {
	if err := l.repo.SetQuantity(ctx, productID, newQuantity); err != nil {
		return err
	}

	update := notify.NewInventoryUpdate(productID, newQuantity)
	if err := l.publisher.Publish(ctx, notify.ProductInventoryTopic(productID), update); err != nil {
		log.Warnf("[Inventory] Publish failed for product %s: %v", productID, err)
	}

	if delta < 0 && l.onLowStock != nil && newQuantity <= l.lowStockAt {
		l.onLowStock(productID, newQuantity)
	}

	return nil
}

// Quantity returns the current available quantity for a product.
func (l *Ledger) Quantity(ctx context.Context, productID string) (int, error) {
	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	return product.InventoryQuantity, nil
}
