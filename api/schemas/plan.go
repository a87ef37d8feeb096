package schemas

import (
	"time"
)

// -- Execution Plan Schemas --

// StepStatus tracks one execution step through its lifetime.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepRunning    StepStatus = "running"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepRolledBack StepStatus = "rolled_back"
)

// PlanStatus tracks a whole execution plan. completed, failed, and rolled_back
// are terminal: a terminated plan is never re-run in place, a retry creates a
// new plan.
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanRunning    PlanStatus = "running"
	PlanCompleted  PlanStatus = "completed"
	PlanFailed     PlanStatus = "failed"
	PlanRolledBack PlanStatus = "rolled_back"
)

// Terminal reports whether the plan status permits no further transitions.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanCompleted, PlanFailed, PlanRolledBack:
		return true
	}
	return false
}

// ExecutionStep is one atomic unit of work inside a plan. Steps are generated
// from an action template at plan-creation time and mutated in place as the
// plan runs; they are never reordered.
type ExecutionStep struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	AgentID string `json:"agent_id"`

	// Parameters are the opaque inputs handed to the step executor.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Critical means a failure of this step aborts and rolls back the plan.
	Critical bool `json:"critical"`
	// Reversible means a completed step can be undone with its RollbackData.
	Reversible bool `json:"reversible"`

	Status      StepStatus     `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration  `json:"duration,omitempty"`

	// RollbackData is captured at completion time for reversible steps and
	// handed back to the executor if the plan later unwinds.
	RollbackData map[string]any `json:"rollback_data,omitempty"`
}

// ExecutionPlan is the ordered sequence of steps that realizes one approved
// recommendation. Executed at most once; retained afterward as an audit record.
type ExecutionPlan struct {
	ID               string `json:"id"`
	RecommendationID string `json:"recommendation_id"`
	CustomerID       string `json:"customer_id"`

	Steps []*ExecutionStep `json:"steps"`
	// CurrentStep is the index of the step being (or about to be) executed.
	// Monotonically non-decreasing during a single execution attempt.
	CurrentStep int        `json:"current_step"`
	Status      PlanStatus `json:"status"`

	CreatedAt    time.Time     `json:"created_at"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	RolledBackAt *time.Time    `json:"rolled_back_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}
