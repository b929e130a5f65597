package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/markora/shopcore/app/models"
)

// fakeRepository is an in-memory Repository for service tests.
type fakeRepository struct {
	mu            sync.Mutex
	subsByCust    map[string]*models.Subscription
	userLinks     map[string]uint
	webhookEvents []*models.WebhookEvent
	nextSubID     int
	upsertCalls   int
	lastCtx       context.Context
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		subsByCust: make(map[string]*models.Subscription),
		userLinks:  make(map[string]uint),
	}
}

func (r *fakeRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCtx = ctx
	sub, ok := r.subsByCust[customerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeRepository) GetByUserID(ctx context.Context, userID uint) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCtx = ctx
	for _, sub := range r.subsByCust {
		if sub.UserID == userID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCtx = ctx
	r.upsertCalls++
	if existing, ok := r.subsByCust[sub.RevenueCatCustomerID]; ok {
		sub.ID = existing.ID
	} else if sub.ID == "" {
		r.nextSubID++
		sub.ID = "sub-" + string(rune('a'+r.nextSubID-1))
	}
	cp := *sub
	r.subsByCust[sub.RevenueCatCustomerID] = &cp
	return nil
}

func (r *fakeRepository) FindUserIDByCustomerID(ctx context.Context, customerID string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCtx = ctx
	if id, ok := r.userLinks[customerID]; ok {
		return id, nil
	}
	return 0, gorm.ErrRecordNotFound
}

func (r *fakeRepository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCtx = ctx
	event.ID = uint(len(r.webhookEvents) + 1)
	r.webhookEvents = append(r.webhookEvents, event)
	return nil
}

func (r *fakeRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCtx = ctx
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

func periodBounds() (time.Time, time.Time) {
	return time.UnixMilli(1000).UTC(), time.UnixMilli(2000).UTC()
}

func TestService_Activate_CreatesOnFirstSight(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	sub, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, start, *sub.CurrentPeriodStart)
	assert.Equal(t, end, *sub.CurrentPeriodEnd)
	assert.False(t, sub.CancelAtPeriodEnd)
	// No linked user yet: record is created unowned
	assert.Equal(t, uint(0), sub.UserID)
}

func TestService_Activate_LeavesPlanTypeUntouched(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	// First sight creates with the free default; activation must not
	// promote the plan. Entitlements derive from status.
	sub, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)
	assert.Equal(t, models.PlanTypeFree, sub.PlanType)

	// A pre-existing plan assignment survives renewals unchanged.
	repo.subsByCust["cus_2"] = &models.Subscription{
		ID:                   "sub-x",
		RevenueCatCustomerID: "cus_2",
		Status:               models.SubscriptionStatusActive,
		PlanType:             models.PlanTypePremium,
	}
	sub, err = svc.Activate(context.Background(), "cus_2", start, end)
	require.NoError(t, err)
	assert.Equal(t, models.PlanTypePremium, sub.PlanType)
}

func TestService_Activate_ResolvesLinkedUser(t *testing.T) {
	repo := newFakeRepository()
	repo.userLinks["cus_linked"] = 42
	svc := NewService(repo)
	start, end := periodBounds()

	sub, err := svc.Activate(context.Background(), "cus_linked", start, end)
	require.NoError(t, err)
	assert.Equal(t, uint(42), sub.UserID)
}

func TestService_Activate_IsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	first, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)

	// Provider redelivery of the same event
	second, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, *first.CurrentPeriodEnd, *second.CurrentPeriodEnd)
	assert.Len(t, repo.subsByCust, 1)
}

func TestService_Activate_RequiresCustomerID(t *testing.T) {
	svc := NewService(newFakeRepository())
	start, end := periodBounds()

	_, err := svc.Activate(context.Background(), "   ", start, end)
	assert.Error(t, err)
}

func TestService_Activate_PropagatesContext(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "delivery-7")

	_, err := svc.Activate(ctx, "cus_1", start, end)
	require.NoError(t, err)
	require.NotNil(t, repo.lastCtx)
	assert.Equal(t, "delivery-7", repo.lastCtx.Value(ctxKey{}))
}

func TestService_MarkForCancellation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	_, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)

	require.NoError(t, svc.MarkForCancellation(context.Background(), "cus_1"))

	sub, err := repo.GetByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	// Still active until the provider sends EXPIRATION
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestService_MarkForCancellation_UnknownCustomerIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	require.NoError(t, svc.MarkForCancellation(context.Background(), "cus_ghost"))
	assert.Empty(t, repo.subsByCust)
	assert.Zero(t, repo.upsertCalls)
}

func TestService_Expire(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	_, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)
	require.NoError(t, svc.MarkForCancellation(context.Background(), "cus_1"))
	require.NoError(t, svc.Expire(context.Background(), "cus_1"))

	sub, err := repo.GetByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, sub.Status)
	// The cancel flag survives expiry for audit
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestService_Expire_UnknownCustomerIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	require.NoError(t, svc.Expire(context.Background(), "cus_ghost"))
	assert.Empty(t, repo.subsByCust)
	assert.Zero(t, repo.upsertCalls)
}

func TestService_ReactivationAfterExpiry(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	_, err := svc.Activate(context.Background(), "cus_1", start, end)
	require.NoError(t, err)
	require.NoError(t, svc.MarkForCancellation(context.Background(), "cus_1"))
	require.NoError(t, svc.Expire(context.Background(), "cus_1"))

	newStart := end
	newEnd := end.Add(30 * 24 * time.Hour)
	sub, err := svc.Activate(context.Background(), "cus_1", newStart, newEnd)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, newEnd, *sub.CurrentPeriodEnd)
	// Re-activation clears the stale cancel flag
	assert.False(t, sub.CancelAtPeriodEnd)
}

func TestService_ConcurrentActivations_SameCustomer(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	start, end := periodBounds()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Activate(context.Background(), "cus_1", start, end)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Serialized per customer id: exactly one record, never duplicated
	assert.Len(t, repo.subsByCust, 1)
	sub, err := repo.GetByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestService_ConcurrentCancellationAndRenewal_NoLostUpdate(t *testing.T) {
	// A CANCELLATION and a RENEWAL for the same customer can be delivered
	// at the same time. Both must go through the same service so its key
	// lock serializes them: whichever lands second sees the other's write,
	// and the renewal's period end is never reverted.
	start, end := periodBounds()
	renewedEnd := end.Add(30 * 24 * time.Hour)

	for i := 0; i < 50; i++ {
		repo := newFakeRepository()
		svc := NewService(repo)

		_, err := svc.Activate(context.Background(), "cus_1", start, end)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.MarkForCancellation(context.Background(), "cus_1"))
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Activate(context.Background(), "cus_1", end, renewedEnd)
			assert.NoError(t, err)
		}()
		wg.Wait()

		sub, err := repo.GetByCustomerID(context.Background(), "cus_1")
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
		require.NotNil(t, sub.CurrentPeriodEnd)
		// The renewal's period end must survive regardless of ordering;
		// only the cancel flag depends on which write lands last.
		assert.Equal(t, renewedEnd, *sub.CurrentPeriodEnd)
	}
}

func TestService_RecordWebhookEvent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	ev, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        " RevenueCat ",
		ProviderEventID: "evt_1",
		EventType:       "RENEWAL",
		PayloadJSON:     `{}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "revenuecat", ev.Provider)
	assert.Equal(t, "evt_1", ev.ProviderEventID)
	assert.True(t, ev.SignatureValid)
	assert.NotZero(t, ev.ID)
}

func TestService_RecordWebhookEvent_NoDeduplication(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	in := WebhookEventInput{Provider: "revenuecat", ProviderEventID: "evt_1", EventType: "RENEWAL"}
	_, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)

	// Provider retries get their own audit rows and are reprocessed
	assert.Len(t, repo.webhookEvents, 2)
}

func TestService_MarkWebhookProcessed(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	ev, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:  "revenuecat",
		EventType: "EXPIRATION",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), ev.ID, nil))
	stored := repo.webhookEvents[0]
	require.NotNil(t, stored.ProcessedAt)
	assert.Empty(t, stored.ProcessingError)

	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), ev.ID, ErrMalformedPayload))
	assert.Equal(t, ErrMalformedPayload.Error(), repo.webhookEvents[0].ProcessingError)
}
