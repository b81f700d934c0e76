package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store for tests and sandbox deployments.
// A single mutex serializes all writes, which trivially satisfies the
// per-key atomicity the Store contract requires.
type memoryStore struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]*Record
	now    func() time.Time
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		byUser: make(map[uuid.UUID]*Record),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byUser[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryStore) UpsertByUser(ctx context.Context, userID uuid.UUID, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byUser[userID]
	if !ok {
		rec = FreeRecord(userID)
		rec.CreatedAt = s.now()
		s.byUser[userID] = rec
	}
	patch.apply(rec)
	rec.UpdatedAt = s.now()

	cp := *rec
	return &cp, nil
}

func (s *memoryStore) UpsertBySubscriptionID(ctx context.Context, subscriptionID string, patch Patch) (*Record, error) {
	if subscriptionID == "" {
		return nil, ErrRecordNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.byUser {
		if rec.SubscriptionID == subscriptionID {
			patch.apply(rec)
			rec.UpdatedAt = s.now()
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *memoryStore) FindByCustomerID(ctx context.Context, customerID string) (*Record, error) {
	if customerID == "" {
		return nil, ErrRecordNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.byUser {
		if rec.CustomerID == customerID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}
