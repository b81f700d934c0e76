package billing

import "time"

// EventType is the normalized billing event type. Provider implementations
// map their own event names onto these; anything else becomes
// EventUnhandled and is acknowledged as a no-op for forward compatibility.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentFailed       EventType = "payment_failed"
	EventUnhandled           EventType = "unhandled"
)

// Event is a normalized, signature-verified billing event. It is transient:
// received, applied or rejected, then discarded. Events carry absolute state
// rather than deltas, which is what makes reapplying them idempotent.
type Event struct {
	Type          EventType
	ProviderEvent string // original provider event name, for logs

	SubscriptionID string
	CustomerID     string
	UserID         string // only set on checkout completion (from metadata)
	PriceID        string
	Status         Status
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}
