package controllers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/database"
	"github.com/markora/shopcore/internal/pkg/env"
	"github.com/markora/shopcore/internal/pkg/subscription"
)

var (
	subscriptionService *subscription.Service
	subscriptionOnce    sync.Once
)

// InitializeWebhookController wires the subscription service used by the
// webhook endpoint. Passing nil builds the default service on the shared DB
// handle. The service must be a process-wide singleton: its per-customer
// lock only serializes deliveries that go through the same instance.
func InitializeWebhookController(s *subscription.Service) {
	subscriptionOnce.Do(func() {
		if s == nil {
			s = subscription.NewServiceFromDB(database.GetDB())
		}
		subscriptionService = s
	})
}

// GetSubscriptionService returns the shared subscription service.
func GetSubscriptionService() *subscription.Service {
	if subscriptionService == nil {
		panic("Webhook controller not initialized. Call InitializeWebhookController first.")
	}
	return subscriptionService
}

// HandleRevenueCatWebhook is the intake for billing provider callbacks.
// Signature verification fails closed before anything is dispatched; the
// raw delivery is persisted for audit either way. Unknown event types are
// acknowledged as no-ops so provider schema evolution never causes retry
// storms, while storage failures return 500 and rely on provider redelivery.
func HandleRevenueCatWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-RevenueCat-Signature"))
	secret := env.GetEnv("REVENUECAT_WEBHOOK_SECRET", "")

	svc := GetSubscriptionService()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := subscription.VerifyWebhookSignature(rawBody, signature, secret)

	envelope, decodeErr := subscription.DecodeEnvelope(rawBody)
	eventType := ""
	eventID := ""
	if envelope != nil {
		eventType = envelope.Type
		eventID = envelope.EventID
	}

	stored, err := svc.RecordWebhookEvent(ctx, subscription.WebhookEventInput{
		Provider:        models.WebhookProviderRevenueCat,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Errorf("[Webhook] Failed to persist delivery: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, subscription.ErrBadSignature)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	if decodeErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, decodeErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	var processErr error
	switch envelope.Kind {
	case subscription.EventKindInitialPurchase, subscription.EventKindRenewal, subscription.EventKindUncancellation:
		_, processErr = svc.Activate(ctx, envelope.AppUserID, envelope.PurchasedAt, envelope.ExpiresAt)
	case subscription.EventKindCancellation:
		processErr = svc.MarkForCancellation(ctx, envelope.AppUserID)
	case subscription.EventKindExpiration:
		processErr = svc.Expire(ctx, envelope.AppUserID)
	default:
		log.Infof("[Webhook] Ignoring unhandled event type %q for customer %s", envelope.Type, envelope.AppUserID)
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	_ = svc.MarkWebhookProcessed(ctx, stored.ID, processErr)
	if processErr != nil {
		log.Errorf("[Webhook] Processing %s for customer %s failed: %v", envelope.Type, envelope.AppUserID, processErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_update_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
