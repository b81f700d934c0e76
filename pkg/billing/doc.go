// Package billing keeps the local subscription state consistent with the
// payment processor and derives feature entitlements from it.
//
// The processor delivers signed webhook events unordered and at least once.
// A Provider implementation (Stripe or Paddle) verifies and normalizes each
// delivery into an Event, and the Reconciler applies it to the Store with
// idempotent absolute-state upserts. Entitlement checks never consult the
// processor: Evaluate derives a point-in-time Decision from the stored
// Record, the Catalog, and the current clock.
//
// Typical wiring:
//
//	catalog, _ := billing.DefaultCatalog(map[string]billing.Plan{
//		"price_1ABCpro": billing.PlanPro,
//	})
//	provider, _ := billing.NewStripeProvider(stripeCfg)
//	store := pgstore.New(pool)
//
//	reconciler := billing.NewReconciler(store, catalog, log)
//	checkout := billing.NewCheckoutService(store, provider, catalog, log)
//
//	// webhook handler
//	ev, err := provider.ParseWebhook(ctx, payload, signature)
//	if err == nil {
//		err = reconciler.Apply(ctx, ev)
//	}
//
//	// entitlement check
//	rec, _ := billing.GetOrDefault(ctx, store, userID)
//	decision := billing.Evaluate(catalog, rec, time.Now().UTC())
//
// Decisions must be computed fresh on every authorization check: billing
// periods expire without any event being delivered.
package billing
