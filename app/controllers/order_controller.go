package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/app/repository"
	"github.com/markora/shopcore/internal/pkg/database"
	"github.com/markora/shopcore/internal/pkg/entitlements"
	"github.com/markora/shopcore/internal/pkg/env"
	"github.com/markora/shopcore/internal/pkg/inventory"
	"github.com/markora/shopcore/internal/pkg/jobqueue"
	"github.com/markora/shopcore/internal/pkg/middleware"
	"github.com/markora/shopcore/internal/pkg/subscription"
)

// HandleCheckout turns the user's cart into an order. The ledger clamps at
// zero instead of rejecting, so strict reservation lives here: every line
// is availability-checked first and only then reserved with a negative
// delta. Premium subscribers get free shipping.
func HandleCheckout(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	repos := repository.GetGlobalRepositories()

	items, err := repos.Cart.GetItemsByUserID(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Cart lookup failed"})
	}
	if len(items) == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Cart is empty"})
	}

	// Reject-if-insufficient before touching the ledger.
	for _, item := range items {
		product, err := repos.Product.GetByID(item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": fmt.Sprintf("Product %s is no longer available", item.ProductID)})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product lookup failed"})
		}
		if !product.IsActive || product.InventoryQuantity < item.Quantity {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "insufficient_stock",
				"message": fmt.Sprintf("Only %d of %q available", product.InventoryQuantity, product.Name),
			})
		}
	}

	ledger := GetLedger()
	order := &models.Order{
		UserID:   user.ID,
		Status:   models.OrderStatusPending,
		Currency: env.GetEnv("SHOP_CURRENCY", "EUR"),
	}

	// Reserve stock line by line. The availability check above does not
	// hold any lock, so a concurrent checkout can still win the race;
	// Reserve re-checks under the product's ledger lock and rejects
	// instead of clamping.
	var reserved []models.CartItem
	for _, item := range items {
		product, err := repos.Product.GetByID(item.ProductID)
		if err != nil {
			rollbackReservations(c, reserved)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product lookup failed"})
		}

		available, err := ledger.Reserve(c.UserContext(), item.ProductID, item.Quantity)
		if err != nil {
			rollbackReservations(c, reserved)
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error":   "insufficient_stock",
					"message": fmt.Sprintf("Only %d of %q available", available, product.Name),
				})
			}
			if errors.Is(err, inventory.ErrProductNotFound) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": fmt.Sprintf("Product %s is no longer available", item.ProductID)})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Stock reservation failed"})
		}
		reserved = append(reserved, item)

		order.Items = append(order.Items, models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
		})
		order.SubtotalCents += product.PriceCents * int64(item.Quantity)
	}

	plan := effectivePlan(c, user.ID)
	flatRate := int64(env.GetEnvInt("SHIPPING_FLAT_RATE_CENTS", 490))
	order.ShippingCents = entitlements.ShippingCents(plan, flatRate)
	order.TotalCents = order.SubtotalCents + order.ShippingCents

	if err := repos.Order.Create(order); err != nil {
		rollbackReservations(c, reserved)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Order creation failed"})
	}

	if err := repos.Cart.ClearByUserID(user.ID); err != nil {
		log.Warnf("[Order] Failed to clear cart for user %d: %v", user.ID, err)
	}

	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeOrderConfirmation, map[string]interface{}{
		"order_id": order.ID,
	}); err != nil {
		log.Warnf("[Order] Failed to enqueue confirmation mail for order %s: %v", order.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders returns the authenticated user's orders, newest first.
func HandleListOrders(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", defaultPageSize)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	orders, err := repository.GetGlobalFactory().GetOrderRepository().GetByUserID(user.ID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Order lookup failed"})
	}
	return c.JSON(fiber.Map{"orders": orders, "offset": offset, "limit": limit})
}

func rollbackReservations(c *fiber.Ctx, reserved []models.CartItem) {
	ledger := GetLedger()
	for _, item := range reserved {
		if _, err := ledger.ApplyDelta(c.UserContext(), item.ProductID, item.Quantity); err != nil {
			log.Errorf("[Order] Failed to release %d of product %s: %v", item.Quantity, item.ProductID, err)
		}
	}
}

func effectivePlan(c *fiber.Ctx, userID uint) entitlements.Plan {
	sub, err := subscription.NewRepository(database.GetDB()).GetByUserID(c.UserContext(), userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Order] Subscription lookup failed for user %d: %v", userID, err)
		}
		return entitlements.PlanFree
	}
	return entitlements.PlanForSubscription(sub)
}
