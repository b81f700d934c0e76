package billing

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Entitlements describes what a plan grants: its feature set and the usage
// quotas for metered operations (-1 unlimited, 0 disallowed, n bounded).
type Entitlements struct {
	Features []Feature
	Quotas   map[Operation]int64
}

func (e Entitlements) clone() Entitlements {
	return Entitlements{
		Features: slices.Clone(e.Features),
		Quotas:   maps.Clone(e.Quotas),
	}
}

// Catalog is the static mapping from plan to entitlements plus the binding
// of provider price IDs to plans. It is built once at startup and never
// mutated afterwards.
type Catalog struct {
	plans  map[Plan]Entitlements
	prices map[string]Plan
}

// NewCatalog builds a catalog from plan entitlements and price bindings.
// The free plan entry is required since it is the fallback for every
// unknown or demoted plan.
func NewCatalog(plans map[Plan]Entitlements, prices map[string]Plan) (*Catalog, error) {
	if _, ok := plans[PlanFree]; !ok {
		return nil, errors.Join(ErrInvalidCatalog, errors.New("free plan entry is required"))
	}
	for priceID, plan := range prices {
		if priceID == "" {
			return nil, errors.Join(ErrInvalidCatalog, errors.New("empty price ID binding"))
		}
		if _, ok := plans[plan]; !ok {
			return nil, errors.Join(ErrInvalidCatalog,
				fmt.Errorf("price %s bound to unknown plan %s", priceID, plan))
		}
	}

	c := &Catalog{
		plans:  make(map[Plan]Entitlements, len(plans)),
		prices: maps.Clone(prices),
	}
	for plan, ent := range plans {
		c.plans[plan] = ent.clone()
	}
	if c.prices == nil {
		c.prices = make(map[string]Plan)
	}
	return c, nil
}

// Resolve returns the entitlements for a plan. Unknown plans fall back to
// the free entry; resolution never fails.
func (c *Catalog) Resolve(plan Plan) Entitlements {
	if ent, ok := c.plans[plan]; ok {
		return ent.clone()
	}
	return c.plans[PlanFree].clone()
}

// PlanForPrice maps a provider price ID to a plan. The match is exact:
// an unknown price returns ErrUnknownPrice rather than defaulting to free,
// since silently mapping a paid purchase to the free plan would under-report
// it.
func (c *Catalog) PlanForPrice(priceID string) (Plan, error) {
	plan, ok := c.prices[priceID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrice, priceID)
	}
	return plan, nil
}

// KnownPrice reports whether a price ID is bound to a plan.
func (c *Catalog) KnownPrice(priceID string) bool {
	_, ok := c.prices[priceID]
	return ok
}

// DefaultCatalog returns the compiled-in product catalog. Price bindings are
// deployment-specific and supplied separately (env or YAML file).
func DefaultCatalog(prices map[string]Plan) (*Catalog, error) {
	return NewCatalog(map[Plan]Entitlements{
		PlanFree: {
			Features: []Feature{},
			Quotas: map[Operation]int64{
				OperationAIAnalyses:      0,
				OperationExports:         0,
				OperationBatchOperations: 0,
			},
		},
		PlanPro: {
			Features: []Feature{
				FeatureAIAnalysis,
				FeatureAdvancedColors,
				FeatureFontAnalysis,
				FeatureUsageHistory,
				FeaturePremiumExports,
			},
			Quotas: map[Operation]int64{
				OperationAIAnalyses:      Unlimited,
				OperationExports:         Unlimited,
				OperationBatchOperations: 10,
			},
		},
		PlanTeam: {
			Features: []Feature{
				FeatureAIAnalysis,
				FeatureAdvancedColors,
				FeatureFontAnalysis,
				FeatureUsageHistory,
				FeaturePremiumExports,
				FeatureBatchProcessing,
				FeatureAPIAccess,
				FeatureTeamCollaboration,
			},
			Quotas: map[Operation]int64{
				OperationAIAnalyses:      Unlimited,
				OperationExports:         Unlimited,
				OperationBatchOperations: Unlimited,
			},
		},
	}, prices)
}
