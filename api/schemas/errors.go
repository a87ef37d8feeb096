package schemas

import (
	"errors"
)

// -- Error Taxonomy --

// Sentinel errors shared across the engine. Callers discriminate with
// errors.Is; the concrete messages carry the per-record detail.
var (
	// ErrInvalidRecommendation marks a recommendation that failed structural
	// validation and was rejected before conflict detection.
	ErrInvalidRecommendation = errors.New("invalid recommendation")

	// ErrApprovalNotFound is returned when a decision references an unknown
	// approval ID.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrApprovalAlreadyDecided is returned when a decision targets an
	// approval that already reached a terminal status. The losing side of a
	// decision race observes this error.
	ErrApprovalAlreadyDecided = errors.New("approval already decided")

	// ErrApprovalExpired is returned when a decision arrives after the
	// approval's expiry window closed.
	ErrApprovalExpired = errors.New("approval expired")

	// ErrPlanNotFound is returned when execution references an unknown plan ID.
	ErrPlanNotFound = errors.New("execution plan not found")

	// ErrPlanNotPending is returned when Execute is called on a plan that is
	// already running or terminal.
	ErrPlanNotPending = errors.New("execution plan is not pending")
)
