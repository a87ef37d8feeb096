// File: internal/approval/store.go
// Description: Approval persistence contract plus the default in-memory
// implementation. All mutation of a single approval goes through Update,
// which runs the caller's transition under the store lock; that is what makes
// concurrent decisions on one record linearizable.

package approval

import (
	"sync"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// Store abstracts approval persistence. Implementations must make Update
// atomic per record: two concurrent Update calls for the same ID must observe
// each other's committed transitions.
type Store interface {
	// Put inserts or replaces an approval record.
	Put(approval *schemas.Approval)

	// Get returns a snapshot of the approval, or false if the ID is unknown.
	Get(id string) (*schemas.Approval, bool)

	// ListByCustomer returns snapshots of every approval owned by the
	// customer, in insertion order.
	ListByCustomer(customerID string) []*schemas.Approval

	// Update runs fn against the live record under the store's lock.
	// Mutations made by fn are committed even when fn returns an error; this
	// lets a transition check flip a pending approval to expired while still
	// reporting the expiry to the caller. Returns ErrApprovalNotFound for an
	// unknown ID.
	Update(id string, fn func(*schemas.Approval) error) error
}

// MemoryStore is the default Store: a mutex-guarded map. Suitable for a
// single-process coordinator; swap in a relational implementation behind the
// same interface for durability.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*schemas.Approval
	order   []string
}

// NewMemoryStore returns an empty in-memory approval store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*schemas.Approval),
	}
}

func (s *MemoryStore) Put(approval *schemas.Approval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[approval.ID]; !exists {
		s.order = append(s.order, approval.ID)
	}
	s.records[approval.ID] = cloneApproval(approval)
}

func (s *MemoryStore) Get(id string) (*schemas.Approval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return cloneApproval(record), true
}

func (s *MemoryStore) ListByCustomer(customerID string) []*schemas.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*schemas.Approval
	for _, id := range s.order {
		if record := s.records[id]; record.CustomerID == customerID {
			out = append(out, cloneApproval(record))
		}
	}
	return out
}

func (s *MemoryStore) Update(id string, fn func(*schemas.Approval) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return schemas.ErrApprovalNotFound
	}
	return fn(record)
}

// cloneApproval copies a record so callers can never mutate store state
// outside of Update.
func cloneApproval(a *schemas.Approval) *schemas.Approval {
	clone := *a
	if a.DecidedAt != nil {
		decidedAt := *a.DecidedAt
		clone.DecidedAt = &decidedAt
	}
	return &clone
}
