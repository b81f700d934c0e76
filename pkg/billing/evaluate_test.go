package billing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensionpro/extensionpro/pkg/billing"
)

func testCatalog(t *testing.T) *billing.Catalog {
	t.Helper()
	catalog, err := billing.DefaultCatalog(map[string]billing.Plan{
		"price_pro_monthly":  billing.PlanPro,
		"price_team_monthly": billing.PlanTeam,
	})
	require.NoError(t, err)
	return catalog
}

func TestEvaluate_NilRecord(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()

	d := billing.Evaluate(catalog, nil, now)

	assert.True(t, d.Valid)
	assert.Equal(t, billing.PlanFree, d.EffectivePlan)
	assert.Equal(t, billing.PlanFree, d.OriginalPlan)
	assert.Equal(t, billing.StatusActive, d.Status)
	assert.Empty(t, d.Features)
	assert.Equal(t, now, d.CheckedAt)
	assert.Nil(t, d.ExpiresAt)
}

func TestEvaluate_NilRecordMatchesFreeRecord(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()
	userID := uuid.New()

	fromNil := billing.Evaluate(catalog, nil, now)
	fromFree := billing.Evaluate(catalog, billing.FreeRecord(userID), now)

	assert.Equal(t, fromNil.Valid, fromFree.Valid)
	assert.Equal(t, fromNil.EffectivePlan, fromFree.EffectivePlan)
	assert.Equal(t, fromNil.Status, fromFree.Status)
	assert.Equal(t, fromNil.Features, fromFree.Features)
	assert.Equal(t, fromNil.Quotas, fromFree.Quotas)
}

func TestEvaluate_ActivePaidPlan(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()
	periodEnd := now.Add(20 * 24 * time.Hour)

	rec := &billing.Record{
		UserID:         uuid.New(),
		SubscriptionID: "sub_123",
		Plan:           billing.PlanPro,
		Status:         billing.StatusActive,
		PeriodEnd:      &periodEnd,
	}

	d := billing.Evaluate(catalog, rec, now)

	assert.True(t, d.Valid)
	assert.Equal(t, billing.PlanPro, d.EffectivePlan)
	assert.Equal(t, billing.PlanPro, d.OriginalPlan)
	assert.Contains(t, d.Features, billing.FeatureAIAnalysis)
	assert.Equal(t, billing.Unlimited, d.Quotas[billing.OperationAIAnalyses])
	require.NotNil(t, d.ExpiresAt)
	assert.Equal(t, periodEnd, *d.ExpiresAt)
}

func TestEvaluate_ExpiredPeriodDemotes(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()
	periodEnd := now.Add(-time.Hour)

	rec := &billing.Record{
		UserID:    uuid.New(),
		Plan:      billing.PlanPro,
		Status:    billing.StatusActive,
		PeriodEnd: &periodEnd,
	}

	d := billing.Evaluate(catalog, rec, now)

	assert.False(t, d.Valid)
	assert.Equal(t, billing.PlanFree, d.EffectivePlan)
	assert.Equal(t, billing.PlanPro, d.OriginalPlan)
	assert.Empty(t, d.Features)
	assert.Equal(t, int64(0), d.Quotas[billing.OperationAIAnalyses])
}

func TestEvaluate_PeriodEndBoundary(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	periodEnd := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &billing.Record{
		UserID:    uuid.New(),
		Plan:      billing.PlanPro,
		Status:    billing.StatusActive,
		PeriodEnd: &periodEnd,
	}

	t.Run("exactly at period end is still valid", func(t *testing.T) {
		t.Parallel()
		d := billing.Evaluate(catalog, rec, periodEnd)
		assert.True(t, d.Valid)
		assert.Equal(t, billing.PlanPro, d.EffectivePlan)
	})

	t.Run("one nanosecond past is expired", func(t *testing.T) {
		t.Parallel()
		d := billing.Evaluate(catalog, rec, periodEnd.Add(time.Nanosecond))
		assert.False(t, d.Valid)
		assert.Equal(t, billing.PlanFree, d.EffectivePlan)
	})
}

func TestEvaluate_NonActiveStatuses(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()
	periodEnd := now.Add(10 * 24 * time.Hour)

	for _, status := range []billing.Status{
		billing.StatusTrialing,
		billing.StatusPastDue,
		billing.StatusCanceled,
		billing.StatusUnpaid,
	} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			rec := &billing.Record{
				UserID:    uuid.New(),
				Plan:      billing.PlanPro,
				Status:    status,
				PeriodEnd: &periodEnd,
			}

			d := billing.Evaluate(catalog, rec, now)

			assert.False(t, d.Valid, "paid plan with non-active status must be invalid")
			assert.Equal(t, billing.PlanFree, d.EffectivePlan)
			assert.Equal(t, billing.PlanPro, d.OriginalPlan)
			assert.Equal(t, status, d.Status)
		})
	}
}

func TestEvaluate_NonActiveFreeStaysValid(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()

	rec := &billing.Record{
		UserID: uuid.New(),
		Plan:   billing.PlanFree,
		Status: billing.StatusCanceled,
	}

	d := billing.Evaluate(catalog, rec, now)

	assert.True(t, d.Valid, "canceled free record still grants free access")
	assert.Equal(t, billing.PlanFree, d.EffectivePlan)
}

func TestEvaluate_NilPeriodEndNeverExpires(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	now := time.Now().UTC()

	rec := &billing.Record{
		UserID: uuid.New(),
		Plan:   billing.PlanTeam,
		Status: billing.StatusActive,
	}

	d := billing.Evaluate(catalog, rec, now)

	assert.True(t, d.Valid)
	assert.Equal(t, billing.PlanTeam, d.EffectivePlan)
	assert.Equal(t, billing.Unlimited, d.Quotas[billing.OperationBatchOperations])
}
