package billing

import (
	"time"

	"github.com/google/uuid"
)

// Decision is a point-in-time entitlement decision. EffectivePlan is the
// plan actually granted after validity checks and may be downgraded from
// OriginalPlan, which is kept for audit/UI.
type Decision struct {
	Valid         bool
	EffectivePlan Plan
	OriginalPlan  Plan
	Status        Status
	Features      []Feature
	Quotas        map[Operation]int64
	ExpiresAt     *time.Time
	UserID        uuid.UUID
	CheckedAt     time.Time
}

// Evaluate derives the entitlement decision from a subscription record and
// the current time. It is pure and must be called fresh on every
// authorization check: periods expire without any event being delivered,
// so a cached decision can outlive its own validity.
//
// A nil record is the implicit free/active record. A non-active record only
// counts as valid when it was already free; any non-active paid record is
// invalid and demoted. An active record past its period end is likewise
// invalid and demoted. The period check is strict: now equal to the period
// end is not yet expired.
func Evaluate(catalog *Catalog, record *Record, now time.Time) Decision {
	d := Decision{
		Valid:         true,
		EffectivePlan: PlanFree,
		OriginalPlan:  PlanFree,
		Status:        StatusActive,
		CheckedAt:     now,
	}

	if record != nil {
		d.UserID = record.UserID
		d.OriginalPlan = record.Plan
		d.Status = record.Status
		d.EffectivePlan = record.Plan
		d.ExpiresAt = record.PeriodEnd

		periodExpired := record.PeriodEnd != nil && now.After(*record.PeriodEnd)

		switch {
		case record.Status != StatusActive:
			d.EffectivePlan = PlanFree
			d.Valid = record.Plan == PlanFree
		case periodExpired:
			d.EffectivePlan = PlanFree
			d.Valid = false
		}
	}

	ent := catalog.Resolve(d.EffectivePlan)
	d.Features = ent.Features
	d.Quotas = ent.Quotas
	return d
}
