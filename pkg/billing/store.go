package billing

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for subscription record persistence.
// UserID serves as the primary key; the provider subscription ID is a
// secondary lookup key for events that carry no user reference.
//
// Implementations must apply each upsert with row-level atomicity so that
// concurrent reconciliations for the same key never interleave partial
// field updates.
type Store interface {
	// Get retrieves a record by user ID.
	// Returns ErrRecordNotFound if no record exists.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)

	// UpsertByUser creates the record if absent (bootstrapped as free/active)
	// and merges the patch, stamping UpdatedAt.
	UpsertByUser(ctx context.Context, userID uuid.UUID, patch Patch) (*Record, error)

	// UpsertBySubscriptionID merges the patch into the record holding the
	// given provider subscription ID. Returns ErrRecordNotFound if no record
	// references that subscription; no synthetic record is created.
	UpsertBySubscriptionID(ctx context.Context, subscriptionID string, patch Patch) (*Record, error)

	// FindByCustomerID retrieves a record by provider customer ID.
	// Returns ErrRecordNotFound if no record references that customer.
	FindByCustomerID(ctx context.Context, customerID string) (*Record, error)
}

// GetOrDefault resolves a user's record, substituting the implicit free
// record when none is stored. Entitlement checks go through this helper so
// the evaluator sees a uniform input.
func GetOrDefault(ctx context.Context, store Store, userID uuid.UUID) (*Record, error) {
	rec, err := store.Get(ctx, userID)
	switch {
	case err == nil:
		return rec, nil
	case IsNotFound(err):
		return FreeRecord(userID), nil
	default:
		return nil, err
	}
}
