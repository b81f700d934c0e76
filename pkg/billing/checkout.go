package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// CheckoutService initiates hosted checkout and portal sessions. It ensures
// a record with a provider customer ID exists before a checkout session is
// created, but never changes plan or status itself — that only happens
// through the Reconciler once the provider confirms payment.
type CheckoutService struct {
	store    Store
	provider Provider
	catalog  *Catalog
	log      *slog.Logger
}

// NewCheckoutService creates a CheckoutService. Panics on nil dependencies
// to fail fast during initialization.
func NewCheckoutService(store Store, provider Provider, catalog *Catalog, log *slog.Logger) *CheckoutService {
	if store == nil {
		panic("billing: Store is required")
	}
	if provider == nil {
		panic("billing: Provider is required")
	}
	if catalog == nil {
		panic("billing: Catalog is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &CheckoutService{store: store, provider: provider, catalog: catalog, log: log}
}

// CheckoutParams identifies the user and price for a new checkout session.
type CheckoutParams struct {
	UserID     uuid.UUID
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession ensures the user has a billing customer and opens a
// hosted checkout session for the given price.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	if p.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	if p.Email == "" {
		return nil, ErrMissingUserEmail
	}
	if p.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if !s.catalog.KnownPrice(p.PriceID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPrice, p.PriceID)
	}

	customerID, err := s.ensureCustomer(ctx, p.UserID, p.Email)
	if err != nil {
		return nil, err
	}

	return s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: customerID,
		UserID:     p.UserID,
		Email:      p.Email,
		PriceID:    p.PriceID,
		SuccessURL: p.SuccessURL,
		CancelURL:  p.CancelURL,
	})
}

// CreatePortalSession opens a customer portal session for an existing
// billing customer.
func (s *CheckoutService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	if customerID == "" {
		return nil, ErrMissingCustomerID
	}
	return s.provider.CreatePortalSession(ctx, customerID, returnURL)
}

// ensureCustomer resolves the user's provider customer ID, creating the
// customer (and bootstrapping a free record) on first contact. Only the
// customer ID is patched in; plan and status stay untouched.
func (s *CheckoutService) ensureCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	rec, err := GetOrDefault(ctx, s.store, userID)
	if err != nil {
		return "", err
	}
	if rec.CustomerID != "" {
		return rec.CustomerID, nil
	}

	customerID, err := s.provider.CreateCustomer(ctx, userID, email)
	if err != nil {
		return "", fmt.Errorf("failed to create billing customer: %w", err)
	}

	if _, err := s.store.UpsertByUser(ctx, userID, Patch{CustomerID: ptr(customerID)}); err != nil {
		return "", err
	}

	s.log.InfoContext(ctx, "billing customer created",
		slog.String("user_id", userID.String()),
		slog.String("customer_id", customerID))
	return customerID, nil
}
