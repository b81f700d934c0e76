package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/extensionpro/extensionpro/core"
	"github.com/extensionpro/extensionpro/pkg/billing"
)

type checkoutSessionRequest struct {
	PriceID    string `json:"priceId"`
	UserID     string `json:"userId"`
	UserEmail  string `json:"userEmail"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type checkoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCheckoutSession opens a hosted checkout session for a plan
// purchase. The subscription record itself is only updated once the
// provider confirms payment through the webhook.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	verr := core.ValidationError{}
	if req.PriceID == "" {
		verr.Add("priceId", "price ID is required")
	}
	if req.UserID == "" {
		verr.Add("userId", "user ID is required")
	}
	if req.UserEmail == "" {
		verr.Add("userEmail", "user email is required")
	}
	if len(verr) > 0 {
		core.Render(w, r, core.JSONError(verr))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		verr.Add("userId", "user ID must be a valid UUID")
		core.Render(w, r, core.JSONError(verr))
		return
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = h.cfg.AppURL + "/dashboard?success=true"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = h.cfg.AppURL + "/pricing?canceled=true"
	}

	sess, err := h.checkout.CreateCheckoutSession(r.Context(), billing.CheckoutParams{
		UserID:     userID,
		Email:      req.UserEmail,
		PriceID:    req.PriceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPrice) {
			verr.Add("priceId", "unknown price ID")
			core.Render(w, r, core.JSONError(verr))
			return
		}
		h.log.ErrorContext(r.Context(), "checkout session creation failed",
			slog.String("user_id", req.UserID),
			slog.Any("error", err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	core.Render(w, r, core.JSON(checkoutSessionResponse{SessionID: sess.SessionID, URL: sess.URL}))
}

type portalSessionRequest struct {
	CustomerID string `json:"customerId"`
	ReturnURL  string `json:"returnUrl"`
}

type portalSessionResponse struct {
	URL string `json:"url"`
}

// CreatePortalSession opens a hosted customer portal session.
func (h *Handler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var req portalSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if req.CustomerID == "" {
		verr := core.ValidationError{}
		verr.Add("customerId", "customer ID is required")
		core.Render(w, r, core.JSONError(verr))
		return
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = h.cfg.AppURL + "/settings"
	}

	sess, err := h.checkout.CreatePortalSession(r.Context(), req.CustomerID, returnURL)
	if err != nil {
		h.log.ErrorContext(r.Context(), "portal session creation failed",
			slog.String("customer_id", req.CustomerID),
			slog.Any("error", err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	core.Render(w, r, core.JSON(portalSessionResponse{URL: sess.URL}))
}
