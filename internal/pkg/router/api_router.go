package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/markora/shopcore/app/controllers"
	"github.com/markora/shopcore/internal/pkg/cache"
	"github.com/markora/shopcore/internal/pkg/constants"
	"github.com/markora/shopcore/internal/pkg/env"
	"github.com/markora/shopcore/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Billing webhooks are authenticated by signature, not API key
	v1.Post(constants.WebhookRevenueCatRoute, controllers.HandleRevenueCatWebhook)

	// Public catalog
	v1.Get(constants.ProductsRoute, controllers.HandleListProducts)
	v1.Get(constants.ProductsRoute+"/:id", controllers.HandleGetProduct)
	v1.Get(constants.ProductsRoute+"/:id/inventory", controllers.HandleGetInventory)

	// Authenticated shopper routes
	auth := v1.Group("", middleware.APIKeyAuthMiddleware())
	auth.Get(constants.CartRoute, controllers.HandleGetCart)
	auth.Post(constants.CartRoute+"/items", controllers.HandleAddCartItem)
	auth.Delete(constants.CartRoute+"/items/:productId", controllers.HandleRemoveCartItem)
	auth.Post(constants.OrdersRoute, controllers.HandleCheckout)
	auth.Get(constants.OrdersRoute, controllers.HandleListOrders)

	// Admin routes
	admin := v1.Group("/admin", middleware.APIKeyAuthMiddleware(), middleware.RequireAdmin())
	admin.Post(constants.ProductsRoute, controllers.HandleCreateProduct)
	admin.Put(constants.ProductsRoute+"/:id", controllers.HandleUpdateProduct)
	admin.Post(constants.ProductsRoute+"/:id/inventory", controllers.HandleAdjustInventory)
	admin.Get("/stats", controllers.HandleAdminStats)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Uses database 1 (cache uses DB 0).
func newLimiterStorage() *redisstorage.Storage {
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
