package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/subscription"
)

// stubSubscriptionRepository is an in-memory subscription.Repository for
// handler tests.
type stubSubscriptionRepository struct {
	mu            sync.Mutex
	subsByCust    map[string]*models.Subscription
	webhookEvents []*models.WebhookEvent
}

func (r *stubSubscriptionRepository) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subsByCust = make(map[string]*models.Subscription)
	r.webhookEvents = nil
}

func (r *stubSubscriptionRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subsByCust[customerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *stubSubscriptionRepository) GetByUserID(ctx context.Context, userID uint) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == "" {
		sub.ID = "sub-test"
	}
	cp := *sub
	r.subsByCust[sub.RevenueCatCustomerID] = &cp
	return nil
}

func (r *stubSubscriptionRepository) FindUserIDByCustomerID(ctx context.Context, customerID string) (uint, error) {
	return 0, gorm.ErrRecordNotFound
}

func (r *stubSubscriptionRepository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint(len(r.webhookEvents) + 1)
	r.webhookEvents = append(r.webhookEvents, event)
	return nil
}

func (r *stubSubscriptionRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.webhookEvents {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

const webhookTestSecret = "whsec_test"

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body, signature string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/webhooks/revenuecat", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-RevenueCat-Signature", signature)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp.StatusCode, parsed
}

func TestHandleRevenueCatWebhook(t *testing.T) {
	t.Setenv("REVENUECAT_WEBHOOK_SECRET", webhookTestSecret)

	repo := &stubSubscriptionRepository{}
	repo.reset()
	svc := subscription.NewService(repo)
	InitializeWebhookController(svc)

	app := fiber.New()
	app.Post("/api/v1/webhooks/revenuecat", HandleRevenueCatWebhook)

	t.Run("initialized once per process", func(t *testing.T) {
		// A later initialization attempt must not replace the shared
		// service; the per-customer lock only works on one instance.
		InitializeWebhookController(subscription.NewService(&stubSubscriptionRepository{}))
		assert.Same(t, svc, GetSubscriptionService())
		assert.Same(t, GetSubscriptionService(), GetSubscriptionService())
	})

	t.Run("activation event creates active subscription", func(t *testing.T) {
		repo.reset()
		body := `{"api_version":"1.0","event":{"id":"evt_1","type":"INITIAL_PURCHASE","app_user_id":"cus_1","purchased_at_ms":1000,"expiration_at_ms":2000}}`

		status, parsed := postWebhook(t, app, body, signWebhookBody([]byte(body)))
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, parsed["ok"])

		sub, err := repo.GetByCustomerID(context.Background(), "cus_1")
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

		require.Len(t, repo.webhookEvents, 1)
		assert.True(t, repo.webhookEvents[0].SignatureValid)
		assert.NotNil(t, repo.webhookEvents[0].ProcessedAt)
	})

	t.Run("unhandled event type is acknowledged without mutation", func(t *testing.T) {
		repo.reset()
		body := `{"api_version":"1.0","event":{"id":"evt_2","type":"TRANSFER","app_user_id":"cus_1"}}`

		status, parsed := postWebhook(t, app, body, signWebhookBody([]byte(body)))
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, parsed["ignored"])

		// Acked so the provider does not retry, but nothing changed
		assert.Empty(t, repo.subsByCust)
		require.Len(t, repo.webhookEvents, 1)
		assert.NotNil(t, repo.webhookEvents[0].ProcessedAt)
	})

	t.Run("bad signature rejected before dispatch", func(t *testing.T) {
		repo.reset()
		body := `{"api_version":"1.0","event":{"id":"evt_3","type":"INITIAL_PURCHASE","app_user_id":"cus_1","purchased_at_ms":1000,"expiration_at_ms":2000}}`

		status, parsed := postWebhook(t, app, body, signWebhookBody([]byte("tampered")))
		require.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, "invalid_signature", parsed["error"])

		// The delivery is still audited, but no lifecycle handler ran
		assert.Empty(t, repo.subsByCust)
		require.Len(t, repo.webhookEvents, 1)
		assert.False(t, repo.webhookEvents[0].SignatureValid)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		repo.reset()
		body := `{"api_version":"1.0","event":{"id":"evt_4","type":"RENEWAL","app_user_id":"cus_1","purchased_at_ms":1000,"expiration_at_ms":2000}}`

		status, parsed := postWebhook(t, app, body, "")
		require.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, "invalid_signature", parsed["error"])
		assert.Empty(t, repo.subsByCust)
	})

	t.Run("malformed payload with valid signature", func(t *testing.T) {
		repo.reset()
		body := `{"api_version":"1.0","event":{"id":"evt_5","type":"INITIAL_PURCHASE"}}`

		status, parsed := postWebhook(t, app, body, signWebhookBody([]byte(body)))
		require.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "invalid_payload", parsed["error"])

		assert.Empty(t, repo.subsByCust)
		require.Len(t, repo.webhookEvents, 1)
		assert.NotEmpty(t, repo.webhookEvents[0].ProcessingError)
	})

	t.Run("cancellation for unknown customer acked", func(t *testing.T) {
		repo.reset()
		body := `{"api_version":"1.0","event":{"id":"evt_6","type":"CANCELLATION","app_user_id":"cus_ghost"}}`

		status, parsed := postWebhook(t, app, body, signWebhookBody([]byte(body)))
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, parsed["ok"])
		assert.Empty(t, repo.subsByCust)
	})
}
