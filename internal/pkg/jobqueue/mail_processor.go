package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/database"
	"github.com/markora/shopcore/internal/pkg/env"
	"github.com/markora/shopcore/internal/pkg/mail"
)

// processOrderConfirmationJob sends the confirmation email for a freshly
// checked-out order.
func (q *Queue) processOrderConfirmationJob(_ context.Context, job *Job) error {
	var payload OrderConfirmationPayload
	if err := job.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid order confirmation payload: %w", err)
	}

	db := database.GetDB()

	var order models.Order
	if err := db.Preload("Items").First(&order, "id = ?", payload.OrderID).Error; err != nil {
		return fmt.Errorf("failed to load order %s: %w", payload.OrderID, err)
	}

	var user models.User
	if err := db.First(&user, order.UserID).Error; err != nil {
		return fmt.Errorf("failed to load user %d for order %s: %w", order.UserID, order.ID, err)
	}

	subject := fmt.Sprintf("Order confirmation %s", order.ID)
	body := buildOrderConfirmationBody(&order, &user)

	if err := mail.SendMail(user.Email, subject, body); err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			log.Warnf("[JobQueue] No SMTP relay, skipping order confirmation for %s", order.ID)
			return nil
		}
		return fmt.Errorf("failed to send order confirmation for %s: %w", order.ID, err)
	}

	log.Infof("[JobQueue] Order confirmation sent for order %s to %s", order.ID, user.Email)
	return nil
}

func buildOrderConfirmationBody(order *models.Order, user *models.User) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<h2>Thank you for your order, %s!</h2>", user.Name))
	sb.WriteString(fmt.Sprintf("<p>Your order <strong>%s</strong> has been received.</p>", order.ID))
	sb.WriteString("<table border=\"0\" cellpadding=\"4\">")
	sb.WriteString("<tr><th align=\"left\">Item</th><th align=\"right\">Qty</th><th align=\"right\">Price</th></tr>")
	for _, item := range order.Items {
		sb.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td align=\"right\">%d</td><td align=\"right\">%s</td></tr>",
			item.ProductName, item.Quantity, formatCents(item.UnitPriceCents*int64(item.Quantity), order.Currency),
		))
	}
	sb.WriteString(fmt.Sprintf("<tr><td>Shipping</td><td></td><td align=\"right\">%s</td></tr>", formatCents(order.ShippingCents, order.Currency)))
	sb.WriteString(fmt.Sprintf("<tr><td><strong>Total</strong></td><td></td><td align=\"right\"><strong>%s</strong></td></tr>", formatCents(order.TotalCents, order.Currency)))
	sb.WriteString("</table>")

	return sb.String()
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

// processLowStockAlertJob notifies the shop owner that a product is running
// low so it can be restocked.
func (q *Queue) processLowStockAlertJob(_ context.Context, job *Job) error {
	var payload LowStockAlertPayload
	if err := job.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid low stock alert payload: %w", err)
	}

	adminEmail := env.GetEnv("ADMIN_EMAIL", "")
	if adminEmail == "" {
		log.Warn("[JobQueue] ADMIN_EMAIL not set, skipping low stock alert")
		return nil
	}

	var product models.Product
	if err := database.GetDB().First(&product, "id = ?", payload.ProductID).Error; err != nil {
		return fmt.Errorf("failed to load product %s: %w", payload.ProductID, err)
	}

	subject := fmt.Sprintf("Low stock: %s", product.Name)
	body := fmt.Sprintf(
		"<p>Product <strong>%s</strong> (%s) is down to <strong>%d</strong> units.</p>",
		product.Name, product.ID, payload.Quantity,
	)

	if err := mail.SendMail(adminEmail, subject, body); err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			log.Warnf("[JobQueue] No SMTP relay, skipping low stock alert for %s", product.ID)
			return nil
		}
		return fmt.Errorf("failed to send low stock alert for %s: %w", product.ID, err)
	}

	log.Infof("[JobQueue] Low stock alert sent for product %s (quantity %d)", product.ID, payload.Quantity)
	return nil
}
