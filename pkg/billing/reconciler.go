package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Reconciler applies verified billing events to the record store, keeping
// the local subscription state in agreement with the provider. Every
// handler is idempotent: reapplying the same event yields the same record.
//
// No ordering is assumed or enforced beyond last-write-wins; an older
// update arriving after a newer one overwrites it with stale state. That
// matches provider delivery semantics (unordered, at-least-once) and is
// acceptable while all updates carry absolute state.
type Reconciler struct {
	store   Store
	catalog *Catalog
	log     *slog.Logger
}

// NewReconciler creates a Reconciler. Panics on nil dependencies to fail
// fast during initialization.
func NewReconciler(store Store, catalog *Catalog, log *slog.Logger) *Reconciler {
	if store == nil {
		panic("billing: Store is required")
	}
	if catalog == nil {
		panic("billing: Catalog is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, catalog: catalog, log: log}
}

// Apply routes a normalized event to its handler. Unhandled event types are
// acknowledged as no-ops, never errors.
func (r *Reconciler) Apply(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case EventCheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, ev)
	case EventSubscriptionUpdated:
		return r.applySubscriptionUpdated(ctx, ev)
	case EventSubscriptionDeleted:
		return r.applySubscriptionDeleted(ctx, ev)
	case EventPaymentFailed:
		return r.applyPaymentFailed(ctx, ev)
	default:
		r.log.InfoContext(ctx, "billing event ignored",
			slog.String("provider_event", ev.ProviderEvent))
		return nil
	}
}

// applyCheckoutCompleted records a completed paid checkout. The event must
// carry the user reference set in checkout metadata; without it the record
// cannot be attributed to an account and the event is unprocessable.
func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, ev *Event) error {
	if ev.UserID == "" {
		return fmt.Errorf("%w: checkout session %s has no user_id metadata",
			ErrMissingUserReference, ev.SubscriptionID)
	}
	userID, err := uuid.Parse(ev.UserID)
	if err != nil {
		return fmt.Errorf("%w: invalid user_id %q", ErrMissingUserReference, ev.UserID)
	}

	plan, err := r.catalog.PlanForPrice(ev.PriceID)
	if err != nil {
		return err
	}

	rec, err := r.store.UpsertByUser(ctx, userID, Patch{
		CustomerID:     ptr(ev.CustomerID),
		SubscriptionID: ptr(ev.SubscriptionID),
		Plan:           ptr(plan),
		Status:         ptr(ev.Status),
		PeriodStart:    ev.PeriodStart,
		PeriodEnd:      ev.PeriodEnd,
	})
	if err != nil {
		return err
	}

	r.log.InfoContext(ctx, "checkout reconciled",
		slog.String("user_id", rec.UserID.String()),
		slog.String("subscription_id", rec.SubscriptionID),
		slog.String("plan", string(rec.Plan)))
	return nil
}

// applySubscriptionUpdated re-derives plan and period state for a known
// subscription. A subscription never seen through a checkout completion is
// an orphan; no synthetic record is created for it.
func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, ev *Event) error {
	plan, err := r.catalog.PlanForPrice(ev.PriceID)
	if err != nil {
		return err
	}

	rec, err := r.store.UpsertBySubscriptionID(ctx, ev.SubscriptionID, Patch{
		Plan:        ptr(plan),
		Status:      ptr(ev.Status),
		PeriodStart: ev.PeriodStart,
		PeriodEnd:   ev.PeriodEnd,
	})
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrOrphanSubscription, ev.SubscriptionID)
		}
		return err
	}

	r.log.InfoContext(ctx, "subscription update reconciled",
		slog.String("user_id", rec.UserID.String()),
		slog.String("subscription_id", ev.SubscriptionID),
		slog.String("plan", string(rec.Plan)),
		slog.String("status", string(rec.Status)))
	return nil
}

// applySubscriptionDeleted demotes the record to free/canceled. Period
// fields are left untouched as a historical trace of the paid period.
func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, ev *Event) error {
	rec, err := r.store.UpsertBySubscriptionID(ctx, ev.SubscriptionID, Patch{
		Plan:   ptr(PlanFree),
		Status: ptr(StatusCanceled),
	})
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrOrphanSubscription, ev.SubscriptionID)
		}
		return err
	}

	r.log.InfoContext(ctx, "subscription deletion reconciled",
		slog.String("user_id", rec.UserID.String()),
		slog.String("subscription_id", ev.SubscriptionID))
	return nil
}

// applyPaymentFailed flags the record past_due without touching the plan.
// Actual access loss is governed by the evaluator's period-expiry check,
// which gives the user the remainder of the paid period as a grace window.
func (r *Reconciler) applyPaymentFailed(ctx context.Context, ev *Event) error {
	if ev.SubscriptionID == "" {
		// One-off payments carry no subscription reference; nothing to reconcile.
		r.log.InfoContext(ctx, "payment failure without subscription reference ignored",
			slog.String("provider_event", ev.ProviderEvent))
		return nil
	}

	rec, err := r.store.UpsertBySubscriptionID(ctx, ev.SubscriptionID, Patch{
		Status: ptr(StatusPastDue),
	})
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrOrphanSubscription, ev.SubscriptionID)
		}
		return err
	}

	r.log.WarnContext(ctx, "payment failure reconciled",
		slog.String("user_id", rec.UserID.String()),
		slog.String("subscription_id", ev.SubscriptionID))
	return nil
}
