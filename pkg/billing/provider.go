package billing

import (
	"context"

	"github.com/google/uuid"
)

// Provider defines the minimal interface for payment provider integrations.
// The provider handles all payment complexity through hosted checkouts and
// customer portals; this core only initiates sessions and consumes signed
// webhook events. Implementations use the official provider SDK and absorb
// provider-specific quirks internally.
type Provider interface {
	// CreateCustomer creates a billing customer for the user and returns
	// the provider's customer ID. Called once per user, before the first
	// checkout session.
	CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error)

	// CreateCheckoutSession creates a hosted checkout session for a
	// subscription purchase. The session must carry the user ID as metadata
	// so the completion event can be reconciled to an account.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CreatePortalSession returns a temporary link to the customer portal
	// where users can update payment methods, cancel, or change plans.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)

	// ParseWebhook verifies the event signature and normalizes the payload.
	// A verification failure must be reported as ErrWebhookVerificationFailed
	// so the transport can reject the delivery without state change.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	CustomerID string // provider customer ID, already ensured to exist
	UserID     uuid.UUID
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// PortalSession represents a customer portal session.
type PortalSession struct {
	URL string
}
