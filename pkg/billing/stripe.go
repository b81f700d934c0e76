package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe billing provider.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements Provider for Stripe. API calls go through
// function fields so tests can run without network access.
type StripeProvider struct {
	config StripeConfig

	createCustomer  func(params *stripe.CustomerParams) (*stripe.Customer, error)
	createCheckout  func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortal    func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	getSubscription func(id string) (*stripe.Subscription, error)
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if config.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}

	stripe.Key = config.SecretKey

	return &StripeProvider{
		config:         config,
		createCustomer: customer.New,
		createCheckout: checkoutsession.New,
		createPortal:   portalsession.New,
		getSubscription: func(id string) (*stripe.Subscription, error) {
			return stripesub.Get(id, nil)
		},
	}, nil
}

// CreateCustomer creates a Stripe customer tagged with the user ID.
func (p *StripeProvider) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	cust, err := p.createCustomer(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a hosted subscription checkout session.
// The user ID rides along as metadata on both the session and the resulting
// subscription so completion events can be reconciled to an account.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(req.CustomerID),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id": req.UserID.String(),
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": req.UserID.String(),
			},
		},
	}
	params.Context = ctx

	sess, err := p.createCheckout(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession returns a link to the Stripe billing portal.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(customerID),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	params.Context = ctx

	sess, err := p.createPortal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe portal session: %w", err)
	}
	if sess.URL == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalSession{URL: sess.URL}, nil
}

// stripeCheckoutSession is a minimal representation of a checkout.session
// event payload.
type stripeCheckoutSession struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// stripeSubscription is a minimal representation of a customer.subscription
// event payload. Billing period fields moved from the subscription to its
// items in newer Stripe API versions; both locations are decoded.
type stripeSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// firstPriceID returns the price ID from the first subscription item.
func (s *stripeSubscription) firstPriceID() string {
	for _, item := range s.Items.Data {
		if priceID := strings.TrimSpace(item.Price.ID); priceID != "" {
			return priceID
		}
	}
	return ""
}

func (s *stripeSubscription) period() (start, end *time.Time) {
	if len(s.Items.Data) > 0 && s.Items.Data[0].CurrentPeriodEnd > 0 {
		return unixTime(s.Items.Data[0].CurrentPeriodStart), unixTime(s.Items.Data[0].CurrentPeriodEnd)
	}
	return unixTime(s.CurrentPeriodStart), unixTime(s.CurrentPeriodEnd)
}

// stripeInvoice is a minimal representation of an invoice event payload.
// The subscription reference moved under parent.subscription_details in
// newer API versions.
type stripeInvoice struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i *stripeInvoice) subscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	return i.Parent.SubscriptionDetails.Subscription
}

// ParseWebhook verifies the Stripe signature and normalizes the event.
// Checkout completions carry only a subscription reference, so the
// subscription is fetched to resolve price, status, and billing period —
// matching what the dashboard-side checkout flow stores.
func (p *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		if sess.Mode != "subscription" || sess.Subscription == "" {
			// One-time payments have no subscription state to reconcile.
			return &Event{Type: EventUnhandled, ProviderEvent: string(event.Type)}, nil
		}

		sub, err := p.getSubscription(sess.Subscription)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve subscription %s: %w", sess.Subscription, err)
		}

		ev := &Event{
			Type:           EventCheckoutCompleted,
			ProviderEvent:  string(event.Type),
			SubscriptionID: sess.Subscription,
			CustomerID:     sess.Customer,
			UserID:         sess.Metadata["user_id"],
			Status:         mapStripeStatus(string(sub.Status)),
		}
		if len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			if item.Price != nil {
				ev.PriceID = item.Price.ID
			}
			ev.PeriodStart = unixTime(item.CurrentPeriodStart)
			ev.PeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
		return ev, nil

	case "customer.subscription.updated":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		start, end := sub.period()
		return &Event{
			Type:           EventSubscriptionUpdated,
			ProviderEvent:  string(event.Type),
			SubscriptionID: sub.ID,
			CustomerID:     sub.Customer,
			PriceID:        sub.firstPriceID(),
			Status:         mapStripeStatus(sub.Status),
			PeriodStart:    start,
			PeriodEnd:      end,
		}, nil

	case "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		return &Event{
			Type:           EventSubscriptionDeleted,
			ProviderEvent:  string(event.Type),
			SubscriptionID: sub.ID,
			CustomerID:     sub.Customer,
		}, nil

	case "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		return &Event{
			Type:           EventPaymentFailed,
			ProviderEvent:  string(event.Type),
			SubscriptionID: inv.subscriptionID(),
		}, nil

	default:
		return &Event{Type: EventUnhandled, ProviderEvent: string(event.Type)}, nil
	}
}

// mapStripeStatus maps a Stripe subscription status to the internal Status.
// Unknown statuses fail closed as unpaid.
func mapStripeStatus(status string) Status {
	switch strings.ToLower(status) {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusUnpaid
	}
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
