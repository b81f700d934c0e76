package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle. Kept behind the same
// interface as Stripe so deployments can switch processors by config.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a new Paddle billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

// CreateCustomer creates a Paddle customer tagged with the user ID.
func (p *PaddleProvider) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	cust, err := p.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
		CustomData: paddle.CustomData{
			"user_id": userID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create paddle customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a Paddle transaction with a hosted checkout.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(req.CustomerID),
		CustomData: paddle.CustomData{
			"user_id": req.UserID.String(),
		},
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	if transaction.Checkout == nil || transaction.Checkout.URL == nil || *transaction.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{SessionID: transaction.ID, URL: *transaction.Checkout.URL}, nil
}

// CreatePortalSession returns a link to Paddle's customer portal.
func (p *PaddleProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	portalSession, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx,
		&paddle.CreateCustomerPortalSessionRequest{
			CustomerID: customerID,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle customer portal session: %w", err)
	}
	if portalSession.URLs.General.Overview == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalSession{URL: portalSession.URLs.General.Overview}, nil
}

// ParseWebhook validates the Paddle signature and normalizes the event.
// Paddle payloads are duck-typed maps; extraction is by field presence and
// missing fields surface later as reconciler domain errors.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var paddleEvent struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	return normalizePaddleEvent(paddleEvent.EventType, paddleEvent.Data), nil
}

// normalizePaddleEvent maps a Paddle event onto the internal tagged union.
func normalizePaddleEvent(eventType string, data map[string]any) *Event {
	ev := &Event{ProviderEvent: eventType}

	switch eventType {
	case "transaction.completed":
		ev.Type = EventCheckoutCompleted
		ev.SubscriptionID = stringField(data, "subscription_id")
		ev.CustomerID = stringField(data, "customer_id")
		ev.Status = StatusActive
		if custom, ok := data["custom_data"].(map[string]any); ok {
			ev.UserID = stringField(custom, "user_id")
		}
		ev.PriceID = paddleFirstPriceID(data)
		ev.PeriodStart, ev.PeriodEnd = paddlePeriod(data, "billing_period")
		if ev.SubscriptionID == "" {
			// One-time purchase; nothing to reconcile.
			ev.Type = EventUnhandled
		}

	case "subscription.updated", "subscription.activated", "subscription.resumed":
		ev.Type = EventSubscriptionUpdated
		ev.SubscriptionID = stringField(data, "id")
		ev.CustomerID = stringField(data, "customer_id")
		ev.Status = mapPaddleStatus(stringField(data, "status"))
		ev.PriceID = paddleFirstPriceID(data)
		ev.PeriodStart, ev.PeriodEnd = paddlePeriod(data, "current_billing_period")

	case "subscription.canceled":
		ev.Type = EventSubscriptionDeleted
		ev.SubscriptionID = stringField(data, "id")
		ev.CustomerID = stringField(data, "customer_id")

	case "transaction.payment_failed":
		ev.Type = EventPaymentFailed
		ev.SubscriptionID = stringField(data, "subscription_id")

	default:
		ev.Type = EventUnhandled
	}

	return ev
}

// mapPaddleStatus maps a Paddle subscription status to the internal Status.
// Unknown statuses fail closed as unpaid.
func mapPaddleStatus(status string) Status {
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

func paddleFirstPriceID(data map[string]any) string {
	items, ok := data["items"].([]any)
	if !ok {
		return ""
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if price, ok := item["price"].(map[string]any); ok {
			if id := stringField(price, "id"); id != "" {
				return id
			}
		}
		if id := stringField(item, "price_id"); id != "" {
			return id
		}
	}
	return ""
}

func paddlePeriod(data map[string]any, key string) (start, end *time.Time) {
	period, ok := data[key].(map[string]any)
	if !ok {
		return nil, nil
	}
	return rfc3339Time(stringField(period, "starts_at")), rfc3339Time(stringField(period, "ends_at"))
}

func rfc3339Time(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
