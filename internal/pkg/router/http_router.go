package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/markora/shopcore/app/controllers"
	"github.com/markora/shopcore/app/repository"
	"github.com/markora/shopcore/internal/pkg/database"
	"github.com/markora/shopcore/internal/pkg/env"
	"github.com/markora/shopcore/internal/pkg/jobqueue"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Initialize the global repository factory
	repository.InitializeFactory(database.GetDB())

	// Initialize the inventory ledger with the default DB-backed repository
	// and Redis publisher
	controllers.InitializeInventoryController(nil)

	// One subscription service per process so webhook deliveries for the
	// same customer serialize on its key lock
	controllers.InitializeWebhookController(nil)

	// Restock alerts go through the job queue so the HTTP path never waits
	// on SMTP
	threshold := env.GetEnvInt("LOW_STOCK_THRESHOLD", 3)
	controllers.GetLedger().SetLowStockAlert(threshold, func(productID string, quantity int) {
		_, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeLowStockAlert, map[string]interface{}{
			"product_id": productID,
			"quantity":   quantity,
		})
		if err != nil {
			log.Errorf("[Router] Failed to enqueue low stock alert for %s: %v", productID, err)
		}
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
