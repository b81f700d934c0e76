package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/extensionpro/extensionpro/core"
	"github.com/extensionpro/extensionpro/pkg/billing"
)

const webhookBodyLimit = 1 << 20 // 1 MiB

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// Webhook ingests signed billing-provider events. The response status
// communicates retry-worthiness to the provider:
//
//   - 400: bad signature or malformed payload — no state change, the
//     provider retries per its own policy.
//   - 422: domain reference error (missing user reference, unknown price,
//     orphan subscription) — acknowledged as unprocessable; redelivery
//     cannot help without manual data correction.
//   - 500: store failure — retryable, safe because reconciliation is
//     idempotent.
//   - 200: processed, possibly as a no-op.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		core.Render(w, r, core.JSONError(core.NewHTTPError(http.StatusBadRequest, "unreadable_payload")))
		return
	}

	signature := providerSignature(r)
	if signature == "" {
		core.Render(w, r, core.JSONError(core.NewHTTPError(http.StatusBadRequest, "missing_signature")))
		return
	}

	ev, err := h.provider.ParseWebhook(r.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrWebhookVerificationFailed) || errors.Is(err, billing.ErrMalformedEvent) {
			h.log.WarnContext(r.Context(), "webhook rejected", slog.Any("error", err))
			core.Render(w, r, core.JSONError(core.NewHTTPError(http.StatusBadRequest, "invalid_signature")))
			return
		}
		// Normalization needed provider data it could not fetch; let the
		// provider redeliver.
		h.log.ErrorContext(r.Context(), "webhook normalization failed", slog.Any("error", err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	if err := h.reconciler.Apply(r.Context(), ev); err != nil {
		if billing.IsDomainError(err) {
			h.log.ErrorContext(r.Context(), "webhook unprocessable",
				slog.String("provider_event", ev.ProviderEvent),
				slog.Any("error", err))
			core.Render(w, r, core.JSONError(core.NewHTTPError(http.StatusUnprocessableEntity, "unprocessable_event")))
			return
		}
		h.log.ErrorContext(r.Context(), "webhook reconciliation failed",
			slog.String("provider_event", ev.ProviderEvent),
			slog.Any("error", err))
		core.Render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	core.Render(w, r, core.JSON(webhookReceivedResponse{Received: true}))
}

// providerSignature extracts the signature header regardless of which
// provider delivered the event.
func providerSignature(r *http.Request) string {
	if sig := r.Header.Get("Stripe-Signature"); sig != "" {
		return sig
	}
	return r.Header.Get("Paddle-Signature")
}
