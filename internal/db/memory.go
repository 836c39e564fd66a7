package db

import (
	"context"
	"sync"
	"time"

	"nourish/internal/billing"
	"nourish/internal/types"
)

// MemoryUserStore is an in-memory billing.UserStore. It backs tests and
// APP_ENV=local runs without a database, and mimics the PostgreSQL repo's
// merge-write semantics: each write touches only the named field.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*types.UserDocument
}

// NewMemoryUserStore creates an empty in-memory store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]*types.UserDocument),
	}
}

// Compile-time assertion that MemoryUserStore satisfies the store contract.
var _ billing.UserStore = (*MemoryUserStore)(nil)

// Seed inserts or replaces a user document wholesale. Test setup helper.
func (s *MemoryUserStore) Seed(doc types.UserDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[doc.ID] = cloneDoc(&doc)
}

// GetUser returns a copy of the user document, or (nil, nil) if absent.
func (s *MemoryUserStore) GetUser(_ context.Context, userID string) (*types.UserDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc), nil
}

// UpsertSubscription merge-writes the subscription record.
func (s *MemoryUserStore) UpsertSubscription(_ context.Context, userID string, rec types.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.ensureLocked(userID)
	cp := rec
	doc.Subscription = &cp
	doc.UpdatedAt = rec.UpdatedAt
	return nil
}

// UpdateReferralCode merge-writes the referral code.
func (s *MemoryUserStore) UpdateReferralCode(_ context.Context, userID string, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.ensureLocked(userID)
	doc.ReferralCode = code
	doc.UpdatedAt = now
	return nil
}

// ListActiveSubscribers returns ids of users holding an ACTIVE subscription
// for the product.
func (s *MemoryUserStore) ListActiveSubscribers(_ context.Context, productID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, doc := range s.users {
		sub := doc.Subscription
		if sub != nil && sub.ProductID == productID && sub.Status == types.SubStatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DemoteSubscriptions cancels every listed user's subscription under a
// single lock acquisition, mirroring the SQL repo's one-statement batch.
func (s *MemoryUserStore) DemoteSubscriptions(_ context.Context, userIDs []string, lastEvent string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		doc, ok := s.users[id]
		if !ok || doc.Subscription == nil {
			continue
		}
		doc.Subscription.Status = types.SubStatusCancelled
		doc.Subscription.LastEvent = lastEvent
		doc.Subscription.UpdatedAt = now
		doc.UpdatedAt = now
	}
	return nil
}

// ensureLocked returns the stored document for the id, creating an empty one
// if needed. Callers must hold the write lock.
func (s *MemoryUserStore) ensureLocked(userID string) *types.UserDocument {
	doc, ok := s.users[userID]
	if !ok {
		doc = &types.UserDocument{ID: userID}
		s.users[userID] = doc
	}
	return doc
}

// cloneDoc deep-copies a document so callers cannot mutate store state.
func cloneDoc(doc *types.UserDocument) *types.UserDocument {
	cp := *doc
	if doc.Subscription != nil {
		sub := *doc.Subscription
		cp.Subscription = &sub
	}
	return &cp
}
