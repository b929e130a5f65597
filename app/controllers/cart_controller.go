package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/app/repository"
	"github.com/markora/shopcore/internal/pkg/middleware"
)

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// HandleGetCart returns the authenticated user's cart items.
func HandleGetCart(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	repo := repository.GetGlobalFactory().GetCartRepository()

	items, err := repo.GetItemsByUserID(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Cart lookup failed"})
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

// HandleAddCartItem puts a product into the cart or replaces the quantity
// of an existing line. The cart never reserves inventory; availability is
// re-checked at checkout.
func HandleAddCartItem(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	item := &models.CartItem{
		UserID:    user.ID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := item.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	productRepo := repository.GetGlobalFactory().GetProductRepository()
	product, err := productRepo.GetByID(req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product lookup failed"})
	}
	if !product.IsActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Product is not available"})
	}

	cartRepo := repository.GetGlobalFactory().GetCartRepository()
	if err := cartRepo.UpsertItem(item); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Cart update failed"})
	}

	return c.Status(fiber.StatusOK).JSON(item)
}

// HandleRemoveCartItem removes one product line from the cart.
func HandleRemoveCartItem(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	productID := c.Params("productId")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "product id missing"})
	}

	repo := repository.GetGlobalFactory().GetCartRepository()
	if err := repo.RemoveItem(user.ID, productID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Cart update failed"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
