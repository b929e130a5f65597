package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformedPayload marks webhook bodies that cannot be parsed or
	// that are missing required fields. Rejected before dispatch.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrBadSignature marks deliveries whose signature did not verify
	// against the shared webhook secret. Rejected before dispatch.
	ErrBadSignature = errors.New("invalid webhook signature")
)

// EventKind is the closed classification of provider webhook event types.
// Unlisted provider types map to EventKindUnknown, which handlers must
// acknowledge as an explicit no-op so new provider types never break intake.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindInitialPurchase
	EventKindRenewal
	EventKindUncancellation
	EventKindCancellation
	EventKindExpiration
)

func (k EventKind) String() string {
	switch k {
	case EventKindInitialPurchase:
		return "INITIAL_PURCHASE"
	case EventKindRenewal:
		return "RENEWAL"
	case EventKindUncancellation:
		return "UNCANCELLATION"
	case EventKindCancellation:
		return "CANCELLATION"
	case EventKindExpiration:
		return "EXPIRATION"
	default:
		return "UNKNOWN"
	}
}

// IsActivation reports whether the event re-activates or extends a
// subscription period.
func (k EventKind) IsActivation() bool {
	switch k {
	case EventKindInitialPurchase, EventKindRenewal, EventKindUncancellation:
		return true
	default:
		return false
	}
}

// ClassifyEventType maps a provider event type tag to its kind.
func ClassifyEventType(eventType string) EventKind {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "INITIAL_PURCHASE":
		return EventKindInitialPurchase
	case "RENEWAL":
		return EventKindRenewal
	case "UNCANCELLATION":
		return EventKindUncancellation
	case "CANCELLATION":
		return EventKindCancellation
	case "EXPIRATION":
		return EventKindExpiration
	default:
		return EventKindUnknown
	}
}

// Envelope is the decoded webhook event. It is transient: decoded once at
// the boundary, dispatched, never persisted (the raw payload goes to the
// audit table instead).
type Envelope struct {
	EventID     string
	Type        string
	Kind        EventKind
	AppUserID   string
	PurchasedAt time.Time
	ExpiresAt   time.Time
}

type rawEnvelope struct {
	APIVersion string `json:"api_version"`
	Event      struct {
		ID             string `json:"id"`
		Type           string `json:"type"`
		AppUserID      string `json:"app_user_id"`
		PurchasedAtMs  int64  `json:"purchased_at_ms"`
		ExpirationAtMs int64  `json:"expiration_at_ms"`
	} `json:"event"`
}

// DecodeEnvelope parses a raw webhook body into a typed envelope. The event
// type and the correlation id (app_user_id) are always required; activation
// events additionally require both period timestamps.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	eventType := strings.TrimSpace(raw.Event.Type)
	appUserID := strings.TrimSpace(raw.Event.AppUserID)
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event.type", ErrMalformedPayload)
	}
	if appUserID == "" {
		return nil, fmt.Errorf("%w: missing event.app_user_id", ErrMalformedPayload)
	}

	env := &Envelope{
		EventID:   strings.TrimSpace(raw.Event.ID),
		Type:      eventType,
		Kind:      ClassifyEventType(eventType),
		AppUserID: appUserID,
	}

	if env.Kind.IsActivation() {
		if raw.Event.PurchasedAtMs <= 0 {
			return nil, fmt.Errorf("%w: missing event.purchased_at_ms", ErrMalformedPayload)
		}
		if raw.Event.ExpirationAtMs <= 0 {
			return nil, fmt.Errorf("%w: missing event.expiration_at_ms", ErrMalformedPayload)
		}
		env.PurchasedAt = time.UnixMilli(raw.Event.PurchasedAtMs).UTC()
		env.ExpiresAt = time.UnixMilli(raw.Event.ExpirationAtMs).UTC()
	}

	return env, nil
}

// WebhookEventInput is the normalized input for webhook audit persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
