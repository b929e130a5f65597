package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/app/repository"
	counter "github.com/markora/shopcore/internal/pkg/metrics/counter"
)

const defaultPageSize = 20
const maxPageSize = 100

// HandleListProducts returns the active catalog, paginated.
func HandleListProducts(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", defaultPageSize)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	repo := repository.GetGlobalFactory().GetProductRepository()

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		products, err := repo.Search(query)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product search failed"})
		}
		return c.JSON(fiber.Map{"products": products, "count": len(products)})
	}

	products, err := repo.ListActive(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product listing failed"})
	}
	return c.JSON(fiber.Map{"products": products, "offset": offset, "limit": limit})
}

// HandleGetProduct returns a single product by id.
func HandleGetProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	repo := repository.GetGlobalFactory().GetProductRepository()

	product, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product lookup failed"})
	}

	if err := counter.AddProductView(product.ID); err != nil {
		log.Warnf("[Product] View counter failed for %s: %v", product.ID, err)
	}

	return c.JSON(product)
}

// HandleCreateProduct creates a catalog item (admin only).
func HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	if err := product.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	if err := repo.Create(&product); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product creation failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct updates catalog fields (admin only). The inventory
// quantity is deliberately not writable here; it belongs to the ledger.
func HandleUpdateProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	repo := repository.GetGlobalFactory().GetProductRepository()

	product, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product lookup failed"})
	}

	var in models.Product
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	product.Name = in.Name
	product.Description = in.Description
	product.Category = in.Category
	product.PriceCents = in.PriceCents
	product.Currency = in.Currency
	product.IsActive = in.IsActive
	product.Materials = in.Materials
	product.IsCustomizable = in.IsCustomizable

	if err := product.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repo.Update(product); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Product update failed"})
	}

	return c.JSON(product)
}
