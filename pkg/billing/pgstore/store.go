// Package pgstore provides the postgres-backed billing record store.
//
// Every upsert is a single conditional statement, so concurrent
// reconciliations for the same key serialize on the row without an explicit
// transaction. Nil patch fields pass through as SQL NULLs and COALESCE keeps
// the stored value.
package pgstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/extensionpro/extensionpro/pkg/billing"
)

// Store implements billing.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a postgres-backed billing store.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pgxpool.Pool is required")
	}
	return &Store{pool: pool}
}

const recordColumns = `user_id, customer_id, subscription_id, plan_name, status,
	current_period_start, current_period_end, created_at, updated_at`

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*billing.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	return scanRecord(row)
}

func (s *Store) UpsertByUser(ctx context.Context, userID uuid.UUID, patch billing.Patch) (*billing.Record, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, customer_id, subscription_id, plan_name, status,
			current_period_start, current_period_end)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, 'free'), COALESCE($5, 'active'), $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			customer_id          = COALESCE($2, subscriptions.customer_id),
			subscription_id      = COALESCE($3, subscriptions.subscription_id),
			plan_name            = COALESCE($4, subscriptions.plan_name),
			status               = COALESCE($5, subscriptions.status),
			current_period_start = COALESCE($6, subscriptions.current_period_start),
			current_period_end   = COALESCE($7, subscriptions.current_period_end),
			updated_at           = now()
		RETURNING `+recordColumns,
		userID, patch.CustomerID, patch.SubscriptionID,
		planArg(patch.Plan), statusArg(patch.Status),
		patch.PeriodStart, patch.PeriodEnd)
	return scanRecord(row)
}

func (s *Store) UpsertBySubscriptionID(ctx context.Context, subscriptionID string, patch billing.Patch) (*billing.Record, error) {
	if subscriptionID == "" {
		return nil, billing.ErrRecordNotFound
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE subscriptions SET
			customer_id          = COALESCE($2, customer_id),
			subscription_id      = COALESCE($3, subscription_id),
			plan_name            = COALESCE($4, plan_name),
			status               = COALESCE($5, status),
			current_period_start = COALESCE($6, current_period_start),
			current_period_end   = COALESCE($7, current_period_end),
			updated_at           = now()
		WHERE subscription_id = $1
		RETURNING `+recordColumns,
		subscriptionID, patch.CustomerID, patch.SubscriptionID,
		planArg(patch.Plan), statusArg(patch.Status),
		patch.PeriodStart, patch.PeriodEnd)
	return scanRecord(row)
}

func (s *Store) FindByCustomerID(ctx context.Context, customerID string) (*billing.Record, error) {
	if customerID == "" {
		return nil, billing.ErrRecordNotFound
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscriptions WHERE customer_id = $1`, customerID)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (*billing.Record, error) {
	var (
		rec  billing.Record
		plan string
		st   string
	)
	err := row.Scan(&rec.UserID, &rec.CustomerID, &rec.SubscriptionID, &plan, &st,
		&rec.PeriodStart, &rec.PeriodEnd, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrRecordNotFound
		}
		return nil, err
	}
	rec.Plan = billing.Plan(plan)
	rec.Status = billing.Status(st)
	normalizeTimes(&rec)
	return &rec, nil
}

// planArg and statusArg widen the typed patch fields to *string so pgx maps
// nil to SQL NULL.
func planArg(p *billing.Plan) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func statusArg(st *billing.Status) *string {
	if st == nil {
		return nil
	}
	s := string(*st)
	return &s
}

func normalizeTimes(rec *billing.Record) {
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.PeriodStart != nil {
		t := rec.PeriodStart.UTC()
		rec.PeriodStart = &t
	}
	if rec.PeriodEnd != nil {
		t := rec.PeriodEnd.UTC()
		rec.PeriodEnd = &t
	}
}

var _ billing.Store = (*Store)(nil)
