package billing

import (
	"time"

	"github.com/google/uuid"
)

// Record is the durable per-user subscription state. Each user has at most
// one record; absence of a record is equivalent to an implicit free/active
// record (see FreeRecord).
//
// Records are mutated only through the Store upsert operations, never by
// direct field writes, so concurrent reconciliations for the same key
// serialize through the store.
type Record struct {
	UserID         uuid.UUID // primary key
	CustomerID     string    // provider customer ID (cus_xxx); empty until first checkout intent
	SubscriptionID string    // provider subscription ID; empty for free-tier records
	Plan           Plan
	Status         Status
	PeriodStart    *time.Time // paid period bounds; nil for free-tier records
	PeriodEnd      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time // last reconciliation; last-write-wins tie-break
}

// FreeRecord returns the implicit record for a user without a stored one.
// Evaluating it yields the same decision as evaluating an absent record,
// so callers never special-case "not found".
func FreeRecord(userID uuid.UUID) *Record {
	return &Record{
		UserID: userID,
		Plan:   PlanFree,
		Status: StatusActive,
	}
}

// IsPaid reports whether the record nominally holds a paid plan.
func (r *Record) IsPaid() bool {
	return r.Plan != PlanFree
}

// Patch is a partial record update applied by the Store upsert operations.
// Nil fields are left untouched; the store stamps UpdatedAt itself.
type Patch struct {
	CustomerID     *string
	SubscriptionID *string
	Plan           *Plan
	Status         *Status
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

func (p Patch) apply(r *Record) {
	if p.CustomerID != nil {
		r.CustomerID = *p.CustomerID
	}
	if p.SubscriptionID != nil {
		r.SubscriptionID = *p.SubscriptionID
	}
	if p.Plan != nil {
		r.Plan = *p.Plan
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.PeriodStart != nil {
		t := *p.PeriodStart
		r.PeriodStart = &t
	}
	if p.PeriodEnd != nil {
		t := *p.PeriodEnd
		r.PeriodEnd = &t
	}
}

func ptr[T any](v T) *T { return &v }
