package subscription

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyEventType(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		expected  EventKind
	}{
		{"Initial Purchase", "INITIAL_PURCHASE", EventKindInitialPurchase},
		{"Renewal", "RENEWAL", EventKindRenewal},
		{"Uncancellation", "UNCANCELLATION", EventKindUncancellation},
		{"Cancellation", "CANCELLATION", EventKindCancellation},
		{"Expiration", "EXPIRATION", EventKindExpiration},
		{"Lowercase", "renewal", EventKindRenewal},
		{"Surrounding whitespace", "  EXPIRATION  ", EventKindExpiration},
		{"Unlisted provider type", "TRANSFER", EventKindUnknown},
		{"Another unlisted type", "BILLING_ISSUE", EventKindUnknown},
		{"Empty", "", EventKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyEventType(tt.eventType))
		})
	}
}

func TestEventKind_IsActivation(t *testing.T) {
	assert.True(t, EventKindInitialPurchase.IsActivation())
	assert.True(t, EventKindRenewal.IsActivation())
	assert.True(t, EventKindUncancellation.IsActivation())
	assert.False(t, EventKindCancellation.IsActivation())
	assert.False(t, EventKindExpiration.IsActivation())
	assert.False(t, EventKindUnknown.IsActivation())
}

func TestDecodeEnvelope_ActivationEvent(t *testing.T) {
	body := []byte(`{
		"api_version": "1.0",
		"event": {
			"id": "evt_123",
			"type": "INITIAL_PURCHASE",
			"app_user_id": "cus_1",
			"purchased_at_ms": 1000,
			"expiration_at_ms": 2000
		}
	}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", env.EventID)
	assert.Equal(t, "INITIAL_PURCHASE", env.Type)
	assert.Equal(t, EventKindInitialPurchase, env.Kind)
	assert.Equal(t, "cus_1", env.AppUserID)
	assert.Equal(t, time.UnixMilli(1000).UTC(), env.PurchasedAt)
	assert.Equal(t, time.UnixMilli(2000).UTC(), env.ExpiresAt)
}

func TestDecodeEnvelope_UnknownTypeSkipsTimestampChecks(t *testing.T) {
	// A transfer event carries no period bounds; decoding must still succeed
	// so the handler can acknowledge it as a no-op.
	body := []byte(`{"event": {"type": "TRANSFER", "app_user_id": "cus_2"}}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, EventKindUnknown, env.Kind)
	assert.True(t, env.PurchasedAt.IsZero())
	assert.True(t, env.ExpiresAt.IsZero())
}

func TestDecodeEnvelope_CancellationNeedsNoTimestamps(t *testing.T) {
	body := []byte(`{"event": {"type": "CANCELLATION", "app_user_id": "cus_3"}}`)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, EventKindCancellation, env.Kind)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Invalid JSON", `{"event": {`},
		{"Missing type", `{"event": {"app_user_id": "cus_1"}}`},
		{"Missing app_user_id", `{"event": {"type": "RENEWAL"}}`},
		{"Blank app_user_id", `{"event": {"type": "RENEWAL", "app_user_id": "   "}}`},
		{"Activation missing purchased_at_ms", `{"event": {"type": "RENEWAL", "app_user_id": "cus_1", "expiration_at_ms": 2000}}`},
		{"Activation missing expiration_at_ms", `{"event": {"type": "RENEWAL", "app_user_id": "cus_1", "purchased_at_ms": 1000}}`},
		{"Empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPayload))
		})
	}
}
