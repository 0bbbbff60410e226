/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Violations and conflicts are returned as data, never as errors; the
  error channel is reserved for malformed input and infrastructure
  failures talking to collaborator stores.

ERROR CATEGORIES:
  1. Input errors  - Invalid windows, references to absent resources
  2. Rule errors   - Malformed rule definitions (skipped, never fatal)
  3. Store errors  - A collaborator store could not answer (fail closed)

USAGE:
  Callers can branch with errors.Is/errors.As:

    if errors.Is(err, scheduling.ErrResourceNotFound) {
        // referenced resource id does not exist
    }

SEE ALSO:
  - conflict.go: Wraps store failures and fails closed
  - rules.go: Skips and logs RuleDataError
*/
package scheduling

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrResourceNotFound is returned when a referenced resource id does
	// not exist. The Conflict Engine treats it as a conflict, not a
	// silent pass.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvalidWindow is returned when a window has end <= start.
	// Rejected before any store query.
	ErrInvalidWindow = errors.New("invalid window: end must be after start")

	// ErrRuleData is returned for malformed rule definitions, e.g. a
	// requires/excludes rule without a related resource. The rule is
	// skipped and logged; validation continues.
	ErrRuleData = errors.New("malformed rule definition")

	// ErrStoreUnavailable wraps collaborator query failures. Fail-open
	// would allow double-booking, so callers must treat it as a conflict.
	ErrStoreUnavailable = errors.New("store query failed")

	// ErrCommitConflict is returned by a store commit whose in-transaction
	// capacity re-check failed: a concurrent booking consumed the capacity
	// between validation and commit. Nothing was written.
	ErrCommitConflict = errors.New("capacity changed between validation and commit")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ResourceNotFoundError identifies which resource id was absent.
type ResourceNotFoundError struct {
	ResourceID ResourceID
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.ResourceID)
}

func (e *ResourceNotFoundError) Unwrap() error { return ErrResourceNotFound }

// InvalidWindowError carries the offending window.
type InvalidWindowError struct {
	Window TimeWindow
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window %s: end must be after start", e.Window)
}

func (e *InvalidWindowError) Unwrap() error { return ErrInvalidWindow }

// RuleDataError describes a rule that could not be evaluated.
type RuleDataError struct {
	ConstraintID ConstraintID
	ResourceID   ResourceID
	Type         RuleType
	Detail       string
}

func (e *RuleDataError) Error() string {
	return fmt.Sprintf("constraint %s: %s rule on resource %s: %s",
		e.ConstraintID, e.Type, e.ResourceID, e.Detail)
}

func (e *RuleDataError) Unwrap() error { return ErrRuleData }

// CommitConflictError reports which resource lost its capacity during a
// commit re-check.
type CommitConflictError struct {
	ResourceID ResourceID
	EventID    EventID
	Window     TimeWindow
	Available  int
	Requested  int
}

func (e *CommitConflictError) Error() string {
	return fmt.Sprintf("commit re-check failed for resource %s during %s: %d available, %d requested",
		e.ResourceID, e.Window, e.Available, e.Requested)
}

func (e *CommitConflictError) Unwrap() error { return ErrCommitConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrResourceNotFound)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCommitConflict) ||
		errors.Is(err, ErrStoreUnavailable)
}
