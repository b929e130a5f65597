package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/keylock"
)

// Service interprets billing webhook events and drives the subscription
// state machine: PENDING -> ACTIVE -> (ACTIVE + cancel flag) -> EXPIRED.
// All writes for one provider customer id are serialized through a key lock
// so concurrent deliveries for the same customer cannot lose updates.
// Different customer ids proceed in parallel. The lock only serializes
// callers that share the same Service instance, so the process must hold a
// single Service per store.
type Service struct {
	repo  Repository
	locks *keylock.Striped
}

// NewService creates a subscription service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		locks: keylock.New(),
	}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Activate applies INITIAL_PURCHASE / RENEWAL / UNCANCELLATION semantics:
// the record is created on first sight of the customer id, set to ACTIVE
// with the event's period bounds, and the cancel flag is cleared. The plan
// type is left untouched; entitlements derive from status, not plan.
// Replaying the same event yields the same record (idempotent).
func (s *Service) Activate(ctx context.Context, customerID string, periodStart, periodEnd time.Time) (*models.Subscription, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("customer id is required")
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	sub, err := s.repo.GetByCustomerID(ctx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = s.newSubscription(ctx, customerID)
	} else if err != nil {
		return nil, err
	}

	sub.Status = models.SubscriptionStatusActive
	sub.CurrentPeriodStart = &periodStart
	sub.CurrentPeriodEnd = &periodEnd
	sub.CancelAtPeriodEnd = false

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	log.Infof("[Subscription] Activated subscription for customer %s (period end %s)", customerID, periodEnd.Format(time.RFC3339))
	return sub, nil
}

// MarkForCancellation sets the cancel-at-period-end flag. The status is not
// touched; the subscription stays ACTIVE until the provider sends the
// EXPIRATION event at period end. Unknown customer ids are a no-op.
func (s *Service) MarkForCancellation(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return errors.New("customer id is required")
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	sub, err := s.repo.GetByCustomerID(ctx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[Subscription] Cancellation for unknown customer %s ignored", customerID)
		return nil
	}
	if err != nil {
		return err
	}

	sub.CancelAtPeriodEnd = true
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return err
	}
	log.Infof("[Subscription] Marked subscription for cancellation: %s", customerID)
	return nil
}

// Expire sets the terminal EXPIRED status. The cancel flag is deliberately
// left as-is for audit. Unknown customer ids are a no-op.
func (s *Service) Expire(ctx context.Context, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return errors.New("customer id is required")
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	sub, err := s.repo.GetByCustomerID(ctx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[Subscription] Expiration for unknown customer %s ignored", customerID)
		return nil
	}
	if err != nil {
		return err
	}

	sub.Status = models.SubscriptionStatusExpired
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return err
	}
	log.Infof("[Subscription] Expired subscription: %s", customerID)
	return nil
}

// RecordWebhookEvent persists one audit row per delivery. Deliveries are
// intentionally not deduplicated here: the lifecycle handlers are idempotent
// and provider retries must be reprocessed after transient failures.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (*models.WebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, errors.New("provider is required")
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: strings.TrimSpace(in.ProviderEventID),
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	if err := s.repo.CreateWebhookEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// MarkWebhookProcessed marks an audit row as processed and stores an
// optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

// newSubscription builds the initial record for a first-seen customer id.
// The owning user is resolved through the linked revenue_cat_customer_id on
// the users table; when no linkage exists yet the record is created unowned
// (user id 0) and picked up by account reconciliation once the user links.
func (s *Service) newSubscription(ctx context.Context, customerID string) *models.Subscription {
	userID, err := s.repo.FindUserIDByCustomerID(ctx, customerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Subscription] User linkage lookup failed for customer %s: %v", customerID, err)
		} else {
			log.Warnf("[Subscription] No linked user for customer %s, creating unowned record", customerID)
		}
		userID = 0
	}

	return &models.Subscription{
		UserID:               userID,
		RevenueCatCustomerID: customerID,
		Status:               models.SubscriptionStatusPending,
		PlanType:             models.PlanTypeFree,
	}
}
