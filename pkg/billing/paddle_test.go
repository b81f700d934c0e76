package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paddleData(t *testing.T, raw string) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return data
}

func TestNormalizePaddleEvent_TransactionCompleted(t *testing.T) {
	t.Parallel()

	data := paddleData(t, `{
		"id": "txn_1",
		"subscription_id": "sub_1",
		"customer_id": "ctm_1",
		"custom_data": {"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		"items": [{"price": {"id": "pri_pro"}}],
		"billing_period": {"starts_at": "2026-02-01T00:00:00Z", "ends_at": "2026-03-01T00:00:00Z"}
	}`)

	ev := normalizePaddleEvent("transaction.completed", data)

	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	assert.Equal(t, "ctm_1", ev.CustomerID)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", ev.UserID)
	assert.Equal(t, "pri_pro", ev.PriceID)
	assert.Equal(t, StatusActive, ev.Status)
	require.NotNil(t, ev.PeriodEnd)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *ev.PeriodEnd)
}

func TestNormalizePaddleEvent_OneTimePurchase(t *testing.T) {
	t.Parallel()

	data := paddleData(t, `{"id": "txn_2", "customer_id": "ctm_2"}`)

	ev := normalizePaddleEvent("transaction.completed", data)
	assert.Equal(t, EventUnhandled, ev.Type)
}

func TestNormalizePaddleEvent_SubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	data := paddleData(t, `{
		"id": "sub_3",
		"customer_id": "ctm_3",
		"status": "past_due",
		"items": [{"price_id": "pri_team"}],
		"current_billing_period": {"starts_at": "2026-02-01T00:00:00Z", "ends_at": "2026-03-01T00:00:00Z"}
	}`)

	for _, eventType := range []string{"subscription.updated", "subscription.activated", "subscription.resumed"} {
		ev := normalizePaddleEvent(eventType, data)
		assert.Equal(t, EventSubscriptionUpdated, ev.Type, eventType)
		assert.Equal(t, "sub_3", ev.SubscriptionID)
		assert.Equal(t, "pri_team", ev.PriceID)
		assert.Equal(t, StatusPastDue, ev.Status)
		require.NotNil(t, ev.PeriodStart)
	}

	ev := normalizePaddleEvent("subscription.canceled", data)
	assert.Equal(t, EventSubscriptionDeleted, ev.Type)
	assert.Equal(t, "sub_3", ev.SubscriptionID)
}

func TestNormalizePaddleEvent_PaymentFailed(t *testing.T) {
	t.Parallel()

	ev := normalizePaddleEvent("transaction.payment_failed",
		paddleData(t, `{"subscription_id": "sub_4"}`))
	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "sub_4", ev.SubscriptionID)
}

func TestNormalizePaddleEvent_Unhandled(t *testing.T) {
	t.Parallel()

	ev := normalizePaddleEvent("address.created", paddleData(t, `{"id": "add_1"}`))
	assert.Equal(t, EventUnhandled, ev.Type)
	assert.Equal(t, "address.created", ev.ProviderEvent)
}

func TestMapPaddleStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]Status{
		"active":   StatusActive,
		"trialing": StatusTrialing,
		"past_due": StatusPastDue,
		"canceled": StatusCanceled,
		"paused":   StatusUnpaid,
		"":         StatusUnpaid,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapPaddleStatus(in), "status %q", in)
	}
}
