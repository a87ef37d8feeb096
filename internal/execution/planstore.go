// File: internal/execution/planstore.go
// Description: Execution plan persistence contract plus the default in-memory
// implementation. Mirrors the approval store: reads return snapshots, every
// mutation runs under the store lock through Update, so the executing
// goroutine is the plan's single writer and concurrent reads stay clean.

package execution

import (
	"sync"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// PlanStore abstracts execution plan persistence.
type PlanStore interface {
	// Put inserts or replaces a plan record.
	Put(plan *schemas.ExecutionPlan)

	// Get returns a snapshot of the plan, or false if the ID is unknown.
	Get(id string) (*schemas.ExecutionPlan, bool)

	// ListByCustomer returns snapshots of every plan owned by the customer,
	// in insertion order.
	ListByCustomer(customerID string) []*schemas.ExecutionPlan

	// Update runs fn against the live record under the store's lock.
	// Returns ErrPlanNotFound for an unknown ID; fn's mutations are
	// committed even when fn returns an error.
	Update(id string, fn func(*schemas.ExecutionPlan) error) error
}

// MemoryPlanStore is the default PlanStore: a mutex-guarded map.
type MemoryPlanStore struct {
	mu      sync.RWMutex
	records map[string]*schemas.ExecutionPlan
	order   []string
}

// NewMemoryPlanStore returns an empty in-memory plan store.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{
		records: make(map[string]*schemas.ExecutionPlan),
	}
}

func (s *MemoryPlanStore) Put(plan *schemas.ExecutionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[plan.ID]; !exists {
		s.order = append(s.order, plan.ID)
	}
	s.records[plan.ID] = clonePlan(plan)
}

func (s *MemoryPlanStore) Get(id string) (*schemas.ExecutionPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return clonePlan(record), true
}

func (s *MemoryPlanStore) ListByCustomer(customerID string) []*schemas.ExecutionPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*schemas.ExecutionPlan
	for _, id := range s.order {
		if record := s.records[id]; record.CustomerID == customerID {
			out = append(out, clonePlan(record))
		}
	}
	return out
}

func (s *MemoryPlanStore) Update(id string, fn func(*schemas.ExecutionPlan) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return schemas.ErrPlanNotFound
	}
	return fn(record)
}

// clonePlan deep-copies a plan so snapshots never alias live step state.
func clonePlan(p *schemas.ExecutionPlan) *schemas.ExecutionPlan {
	clone := *p
	clone.Steps = make([]*schemas.ExecutionStep, len(p.Steps))
	for i, step := range p.Steps {
		stepClone := *step
		stepClone.Parameters = cloneMap(step.Parameters)
		stepClone.Result = cloneMap(step.Result)
		stepClone.RollbackData = cloneMap(step.RollbackData)
		if step.StartedAt != nil {
			startedAt := *step.StartedAt
			stepClone.StartedAt = &startedAt
		}
		if step.CompletedAt != nil {
			completedAt := *step.CompletedAt
			stepClone.CompletedAt = &completedAt
		}
		clone.Steps[i] = &stepClone
	}
	if p.StartedAt != nil {
		startedAt := *p.StartedAt
		clone.StartedAt = &startedAt
	}
	if p.CompletedAt != nil {
		completedAt := *p.CompletedAt
		clone.CompletedAt = &completedAt
	}
	if p.RolledBackAt != nil {
		rolledBackAt := *p.RolledBackAt
		clone.RolledBackAt = &rolledBackAt
	}
	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
