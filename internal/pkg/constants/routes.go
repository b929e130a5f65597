package constants

// Static route constants
const (
	APIBasePath = "/api/v1"

	WebhookRevenueCatRoute = "/webhooks/revenuecat"
	ProductsRoute          = "/products"
	CartRoute              = "/cart"
	OrdersRoute            = "/orders"
)
