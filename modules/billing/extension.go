package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/extensionpro/extensionpro/core"
	"github.com/extensionpro/extensionpro/pkg/billing"
	"github.com/extensionpro/extensionpro/pkg/identity"
)

type validateResponse struct {
	Valid        bool                        `json:"valid"`
	Plan         billing.Plan                `json:"plan"`
	OriginalPlan billing.Plan                `json:"original_plan"`
	Status       billing.Status              `json:"status"`
	Features     []billing.Feature           `json:"features"`
	UsageQuotas  map[billing.Operation]int64 `json:"usage_quotas"`
	ExpiresAt    *time.Time                  `json:"expires_at"`
	UserID       string                      `json:"user_id"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

type validateErrorResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

// ValidateSubscription answers the extension's entitlement check. The
// decision is computed fresh on every call: billing periods lapse without
// a webhook firing, so nothing here may be cached.
func (h *Handler) ValidateSubscription(w http.ResponseWriter, r *http.Request) {
	token := identity.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if token == "" {
		core.Render(w, r, core.JSONWithStatus(http.StatusUnauthorized,
			validateErrorResponse{Valid: false, Error: "missing authorization token"}))
		return
	}

	id, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		h.log.WarnContext(r.Context(), "token verification failed", slog.Any("error", err))
		core.Render(w, r, core.JSONWithStatus(http.StatusUnauthorized,
			validateErrorResponse{Valid: false, Error: "invalid or expired token"}))
		return
	}

	record, err := billing.GetOrDefault(r.Context(), h.store, id.UserID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "subscription lookup failed",
			slog.String("user_id", id.UserID.String()),
			slog.Any("error", err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	decision := billing.Evaluate(h.catalog, record, time.Now().UTC())

	core.Render(w, r, core.JSON(validateResponse{
		Valid:        decision.Valid,
		Plan:         decision.EffectivePlan,
		OriginalPlan: decision.OriginalPlan,
		Status:       decision.Status,
		Features:     decision.Features,
		UsageQuotas:  decision.Quotas,
		ExpiresAt:    decision.ExpiresAt,
		UserID:       id.UserID.String(),
		CheckedAt:    decision.CheckedAt,
	}))
}

type authStatusUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authStatusSubscription struct {
	Plan   billing.Plan   `json:"plan"`
	Status billing.Status `json:"status"`
	Valid  bool           `json:"valid"`
}

type authStatusResponse struct {
	Authenticated bool                    `json:"authenticated"`
	User          *authStatusUser         `json:"user,omitempty"`
	Subscription  *authStatusSubscription `json:"subscription,omitempty"`
}

// AuthStatus reports whether the caller's token is valid and, if so, a
// compact subscription summary. Unlike ValidateSubscription it never
// returns 401: an unauthenticated caller gets a 200 with
// authenticated=false so the extension can render a signed-out state
// without treating it as an error.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	token := identity.FromAuthorizationHeader(r.Header.Get("Authorization"))
	if token == "" {
		core.Render(w, r, core.JSON(authStatusResponse{Authenticated: false}))
		return
	}

	id, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		core.Render(w, r, core.JSON(authStatusResponse{Authenticated: false}))
		return
	}

	record, err := billing.GetOrDefault(r.Context(), h.store, id.UserID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "subscription lookup failed",
			slog.String("user_id", id.UserID.String()),
			slog.Any("error", err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	decision := billing.Evaluate(h.catalog, record, time.Now().UTC())

	core.Render(w, r, core.JSON(authStatusResponse{
		Authenticated: true,
		User:          &authStatusUser{ID: id.UserID.String(), Email: id.Email},
		Subscription: &authStatusSubscription{
			Plan:   decision.EffectivePlan,
			Status: decision.Status,
			Valid:  decision.Valid,
		},
	}))
}
