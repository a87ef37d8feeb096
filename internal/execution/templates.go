// File: internal/execution/templates.go
// Description: Action-to-steps template registry. Plan generation is a lookup
// keyed by the recommendation's action; unregistered actions fall back to a
// single critical, irreversible step running the action directly, so new
// action types never require touching the orchestrator's control flow.

package execution

import (
	"sync"

	"github.com/google/uuid"

	"github.com/archokshi/optiinfra-sub000/api/schemas"
)

// StepTemplate expands one recommendation into its ordered step list.
type StepTemplate func(rec *schemas.Recommendation) []*schemas.ExecutionStep

// TemplateRegistry maps action names to step templates. Safe for concurrent
// Register/Build.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]StepTemplate
}

// NewTemplateRegistry returns a registry seeded with the built-in action
// templates.
func NewTemplateRegistry() *TemplateRegistry {
	r := &TemplateRegistry{
		templates: make(map[string]StepTemplate),
	}

	r.Register("migrate_to_spot", migrationTemplate)
	r.Register("migrate_to_on_demand", migrationTemplate)
	r.Register("scale_down", scalingTemplate)
	r.Register("scale_up", scalingTemplate)
	r.Register("enable_caching", cachingTemplate)
	r.Register("disable_caching", cachingTemplate)
	r.Register("rightsize_instance", rightsizeTemplate)

	return r
}

// Register binds a template to an action name, replacing any previous binding.
func (r *TemplateRegistry) Register(action string, template StepTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[action] = template
}

// Build expands the recommendation into its step list using the registered
// template for its action, or the single-step fallback for unknown actions.
func (r *TemplateRegistry) Build(rec *schemas.Recommendation) []*schemas.ExecutionStep {
	r.mu.RLock()
	template, ok := r.templates[rec.Action]
	r.mu.RUnlock()

	if !ok {
		// Unknown action: run it directly, one critical irreversible step.
		return []*schemas.ExecutionStep{
			newStep(rec, rec.Action, true, false),
		}
	}
	return template(rec)
}

// newStep builds a pending step carrying the recommendation's identity and
// resources as executor parameters.
func newStep(rec *schemas.Recommendation, action string, critical, reversible bool) *schemas.ExecutionStep {
	return &schemas.ExecutionStep{
		ID:         uuid.NewString(),
		Action:     action,
		AgentID:    rec.AgentID,
		Critical:   critical,
		Reversible: reversible,
		Status:     schemas.StepPending,
		Parameters: map[string]any{
			"recommendation_id": rec.ID,
			"action":            rec.Action,
			"resources":         rec.Resources,
		},
	}
}

// migrationTemplate: snapshot first so the move can be undone, migrate, then
// validate. Validation cannot be undone, only re-run.
func migrationTemplate(rec *schemas.Recommendation) []*schemas.ExecutionStep {
	return []*schemas.ExecutionStep{
		newStep(rec, "snapshot_instance", true, true),
		newStep(rec, rec.Action, true, true),
		newStep(rec, "validate_migration", true, false),
	}
}

// scalingTemplate: validate the current state before touching anything, apply
// the scale change, then check the workload is still healthy.
func scalingTemplate(rec *schemas.Recommendation) []*schemas.ExecutionStep {
	return []*schemas.ExecutionStep{
		newStep(rec, "validate_current_state", true, false),
		newStep(rec, rec.Action, true, true),
		newStep(rec, "validate_health", true, false),
	}
}

// cachingTemplate: the cache flip is reversible; verification is advisory and
// does not abort the plan when it fails.
func cachingTemplate(rec *schemas.Recommendation) []*schemas.ExecutionStep {
	return []*schemas.ExecutionStep{
		newStep(rec, rec.Action, true, true),
		newStep(rec, "verify_cache_behavior", false, false),
	}
}

// rightsizeTemplate: capture the old sizing, apply the new one, validate.
func rightsizeTemplate(rec *schemas.Recommendation) []*schemas.ExecutionStep {
	return []*schemas.ExecutionStep{
		newStep(rec, "snapshot_config", true, true),
		newStep(rec, "apply_rightsize", true, true),
		newStep(rec, "validate_health", true, false),
	}
}
