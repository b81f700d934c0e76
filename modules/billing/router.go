// Package billing exposes the billing and extension-facing HTTP API:
// webhook ingestion, checkout/portal session creation, and entitlement
// validation for the browser extension.
package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/extensionpro/extensionpro/pkg/billing"
	"github.com/extensionpro/extensionpro/pkg/identity"
)

// Config holds the module's request-handling settings.
type Config struct {
	// AppURL is the public site URL used for default checkout/portal
	// redirect targets.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:3000"`
}

// Handler carries the wired dependencies for the billing HTTP surface.
type Handler struct {
	cfg        Config
	store      billing.Store
	catalog    *billing.Catalog
	provider   billing.Provider
	reconciler *billing.Reconciler
	checkout   *billing.CheckoutService
	verifier   identity.Verifier
	log        *slog.Logger
}

// NewHandler creates the billing HTTP handler. Panics on nil dependencies
// to fail fast during initialization.
func NewHandler(
	cfg Config,
	store billing.Store,
	catalog *billing.Catalog,
	provider billing.Provider,
	reconciler *billing.Reconciler,
	checkout *billing.CheckoutService,
	verifier identity.Verifier,
	log *slog.Logger,
) *Handler {
	if store == nil || catalog == nil || provider == nil || reconciler == nil || checkout == nil || verifier == nil {
		panic("billing handler: all dependencies are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:        cfg,
		store:      store,
		catalog:    catalog,
		provider:   provider,
		reconciler: reconciler,
		checkout:   checkout,
		verifier:   verifier,
		log:        log,
	}
}

// Router mounts the module's routes. Extension endpoints carry permissive
// CORS headers since the browser extension calls them cross-origin.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/billing", func(r chi.Router) {
		r.Post("/webhook", h.Webhook)
		r.Post("/checkout-session", h.CreateCheckoutSession)
		r.Post("/portal-session", h.CreatePortalSession)
	})

	r.Route("/extension", func(r chi.Router) {
		r.Use(extensionCORS)
		r.Get("/subscription/validate", h.ValidateSubscription)
		r.Get("/auth/status", h.AuthStatus)
	})

	return r
}

// extensionCORS answers preflight requests and marks extension responses as
// callable from any origin. The endpoints are read-only and bearer-token
// authenticated, so the open origin is safe.
func extensionCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
