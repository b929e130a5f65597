package controllers

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/markora/shopcore/internal/pkg/cache"
	"github.com/markora/shopcore/internal/pkg/database"
	"github.com/markora/shopcore/internal/pkg/inventory"
	"github.com/markora/shopcore/internal/pkg/notify"
)

var (
	ledger     *inventory.Ledger
	ledgerOnce sync.Once
)

// InitializeInventoryController wires the inventory ledger used by the
// inventory endpoints. Passing nil builds the default ledger on the shared
// DB handle and Redis publisher.
func InitializeInventoryController(l *inventory.Ledger) {
	ledgerOnce.Do(func() {
		if l == nil {
			l = inventory.NewLedgerFromDB(database.GetDB(), notify.NewRedisPublisher(cache.GetClient()))
		}
		ledger = l
	})
}

// GetLedger returns the shared inventory ledger.
func GetLedger() *inventory.Ledger {
	if ledger == nil {
		panic("Inventory controller not initialized. Call InitializeInventoryController first.")
	}
	return ledger
}

type adjustInventoryRequest struct {
	Delta int `json:"delta"`
}

// HandleAdjustInventory applies a signed delta to a product's available
// quantity (admin only). The response carries the clamped new quantity.
func HandleAdjustInventory(c *fiber.Ctx) error {
	productID := c.Params("id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "product id missing"})
	}

	var req adjustInventoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}
	if req.Delta == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "delta must be non-zero"})
	}

	newQuantity, err := GetLedger().ApplyDelta(c.UserContext(), productID, req.Delta)
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Inventory update failed"})
	}

	update := notify.NewInventoryUpdate(productID, newQuantity)
	return c.Status(fiber.StatusOK).JSON(update)
}

// HandleGetInventory returns the current availability for a product.
func HandleGetInventory(c *fiber.Ctx) error {
	productID := c.Params("id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "product id missing"})
	}

	quantity, err := GetLedger().Quantity(c.UserContext(), productID)
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Inventory lookup failed"})
	}

	return c.Status(fiber.StatusOK).JSON(notify.NewInventoryUpdate(productID, quantity))
}
