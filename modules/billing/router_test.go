package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingmodule "github.com/extensionpro/extensionpro/modules/billing"
	"github.com/extensionpro/extensionpro/pkg/billing"
	"github.com/extensionpro/extensionpro/pkg/identity"
	"github.com/extensionpro/extensionpro/pkg/jwt"
)

const testJWTSecret = "module-test-secret-of-enough-len"

// stubProvider implements billing.Provider with overridable behavior per test.
type stubProvider struct {
	parseWebhook   func(ctx context.Context, payload []byte, signature string) (*billing.Event, error)
	createCustomer func(ctx context.Context, userID uuid.UUID, email string) (string, error)
	createCheckout func(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	createPortal   func(ctx context.Context, customerID, returnURL string) (*billing.PortalSession, error)
}

func (s *stubProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
	return s.parseWebhook(ctx, payload, signature)
}

func (s *stubProvider) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	if s.createCustomer == nil {
		return "cus_stub", nil
	}
	return s.createCustomer(ctx, userID, email)
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	return s.createCheckout(ctx, req)
}

func (s *stubProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*billing.PortalSession, error) {
	return s.createPortal(ctx, customerID, returnURL)
}

type testEnv struct {
	store    billing.Store
	provider *stubProvider
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := billing.DefaultCatalog(map[string]billing.Plan{
		"price_pro_monthly":  billing.PlanPro,
		"price_team_monthly": billing.PlanTeam,
	})
	require.NoError(t, err)

	store := billing.NewMemoryStore()
	provider := &stubProvider{}
	log := slog.New(slog.DiscardHandler)

	verifier, err := identity.NewTokenVerifier(identity.Config{JWTSecret: testJWTSecret})
	require.NoError(t, err)

	handler := billingmodule.NewHandler(
		billingmodule.Config{AppURL: "https://app.example.com"},
		store,
		catalog,
		provider,
		billing.NewReconciler(store, catalog, log),
		billing.NewCheckoutService(store, provider, catalog, log),
		verifier,
		log,
	)

	return &testEnv{store: store, provider: provider, router: handler.Router()}
}

func (e *testEnv) accessToken(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()
	svc, err := jwt.New([]byte(testJWTSecret))
	require.NoError(t, err)
	token, err := svc.Generate(struct {
		jwt.StandardClaims
		Email string `json:"email"`
	}{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID.String(),
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Email: email,
	})
	require.NoError(t, err)
	return token
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	post := func(env *testEnv, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{}`))
		if signature != "" {
			req.Header.Set("Stripe-Signature", signature)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := post(env, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.provider.parseWebhook = func(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
			return nil, billing.ErrWebhookVerificationFailed
		}

		rec := post(env, "t=1,v1=bad")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("normalization fetch failure is retryable", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.provider.parseWebhook = func(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
			return nil, errors.New("subscription fetch timed out")
		}

		rec := post(env, "t=1,v1=good")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("domain error is acknowledged as unprocessable", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.provider.parseWebhook = func(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
			return &billing.Event{
				Type:           billing.EventCheckoutCompleted,
				ProviderEvent:  "checkout.session.completed",
				SubscriptionID: "sub_1",
				PriceID:        "price_pro_monthly",
			}, nil
		}

		rec := post(env, "t=1,v1=good")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("processed event", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		userID := uuid.New()
		env.provider.parseWebhook = func(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
			return &billing.Event{
				Type:           billing.EventCheckoutCompleted,
				ProviderEvent:  "checkout.session.completed",
				SubscriptionID: "sub_1",
				CustomerID:     "cus_1",
				UserID:         userID.String(),
				PriceID:        "price_pro_monthly",
				Status:         billing.StatusActive,
			}, nil
		}

		rec := post(env, "t=1,v1=good")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received": true}`, rec.Body.String())

		got, err := env.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanPro, got.Plan)
	})

	t.Run("unhandled event type is acknowledged", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.provider.parseWebhook = func(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
			return &billing.Event{Type: billing.EventUnhandled, ProviderEvent: "customer.created"}, nil
		}

		rec := post(env, "t=1,v1=good")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestValidateSubscription(t *testing.T) {
	t.Parallel()

	get := func(env *testEnv, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/extension/subscription/validate", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := get(env, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["valid"])
	})

	t.Run("invalid token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := get(env, "not.a.token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("user without record gets free plan", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		userID := uuid.New()
		rec := get(env, env.accessToken(t, userID, "user@example.com"))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Valid  bool   `json:"valid"`
			Plan   string `json:"plan"`
			Status string `json:"status"`
			UserID string `json:"user_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Valid)
		assert.Equal(t, "free", body.Plan)
		assert.Equal(t, "active", body.Status)
		assert.Equal(t, userID.String(), body.UserID)
	})

	t.Run("active pro subscription", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		userID := uuid.New()
		end := time.Now().UTC().Add(20 * 24 * time.Hour)
		plan := billing.PlanPro
		status := billing.StatusActive
		_, err := env.store.UpsertByUser(context.Background(), userID, billing.Patch{
			Plan:      &plan,
			Status:    &status,
			PeriodEnd: &end,
		})
		require.NoError(t, err)

		rec := get(env, env.accessToken(t, userID, "user@example.com"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

		var body struct {
			Valid       bool             `json:"valid"`
			Plan        string           `json:"plan"`
			Features    []string         `json:"features"`
			UsageQuotas map[string]int64 `json:"usage_quotas"`
			ExpiresAt   *time.Time       `json:"expires_at"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Valid)
		assert.Equal(t, "pro", body.Plan)
		assert.Contains(t, body.Features, "ai_analysis")
		assert.Equal(t, int64(-1), body.UsageQuotas["ai_analyses"])
		require.NotNil(t, body.ExpiresAt)
	})

	t.Run("expired subscription is demoted in the response", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		userID := uuid.New()
		end := time.Now().UTC().Add(-time.Hour)
		plan := billing.PlanPro
		status := billing.StatusActive
		_, err := env.store.UpsertByUser(context.Background(), userID, billing.Patch{
			Plan:      &plan,
			Status:    &status,
			PeriodEnd: &end,
		})
		require.NoError(t, err)

		rec := get(env, env.accessToken(t, userID, "user@example.com"))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Valid        bool   `json:"valid"`
			Plan         string `json:"plan"`
			OriginalPlan string `json:"original_plan"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Valid)
		assert.Equal(t, "free", body.Plan)
		assert.Equal(t, "pro", body.OriginalPlan)
	})

	t.Run("preflight", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodOptions, "/extension/subscription/validate", nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})
}

func TestAuthStatus(t *testing.T) {
	t.Parallel()

	t.Run("unauthenticated is not an error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodGet, "/extension/auth/status", nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"authenticated": false}`, rec.Body.String())
	})

	t.Run("authenticated with subscription summary", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		userID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/extension/auth/status", nil)
		req.Header.Set("Authorization", "Bearer "+env.accessToken(t, userID, "user@example.com"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Authenticated bool `json:"authenticated"`
			User          struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"user"`
			Subscription struct {
				Plan  string `json:"plan"`
				Valid bool   `json:"valid"`
			} `json:"subscription"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Authenticated)
		assert.Equal(t, userID.String(), body.User.ID)
		assert.Equal(t, "user@example.com", body.User.Email)
		assert.Equal(t, "free", body.Subscription.Plan)
		assert.True(t, body.Subscription.Valid)
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Parallel()

	post := func(env *testEnv, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/billing/checkout-session", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("happy path with default redirect URLs", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		userID := uuid.New()

		var captured billing.CheckoutRequest
		env.provider.createCheckout = func(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
			captured = req
			return &billing.CheckoutSession{SessionID: "cs_1", URL: "https://checkout.test/cs_1"}, nil
		}

		rec := post(env, `{
			"priceId": "price_pro_monthly",
			"userId": "`+userID.String()+`",
			"userEmail": "user@example.com"
		}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"sessionId": "cs_1", "url": "https://checkout.test/cs_1"}`, rec.Body.String())

		assert.Equal(t, "https://app.example.com/dashboard?success=true", captured.SuccessURL)
		assert.Equal(t, "https://app.example.com/pricing?canceled=true", captured.CancelURL)
		assert.Equal(t, "cus_stub", captured.CustomerID)
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := post(env, `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed user ID", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := post(env, `{"priceId": "price_pro_monthly", "userId": "nope", "userEmail": "u@e.com"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown price", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := post(env, `{
			"priceId": "price_unknown",
			"userId": "`+uuid.NewString()+`",
			"userEmail": "user@example.com"
		}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := post(env, `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreatePortalSession(t *testing.T) {
	t.Parallel()

	post := func(env *testEnv, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/billing/portal-session", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("happy path with default return URL", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		var capturedReturn string
		env.provider.createPortal = func(ctx context.Context, customerID, returnURL string) (*billing.PortalSession, error) {
			capturedReturn = returnURL
			return &billing.PortalSession{URL: "https://portal.test/p_1"}, nil
		}

		rec := post(env, `{"customerId": "cus_1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"url": "https://portal.test/p_1"}`, rec.Body.String())
		assert.Equal(t, "https://app.example.com/settings", capturedReturn)
	})

	t.Run("missing customer ID", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := post(env, `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
