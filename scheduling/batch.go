/*
batch.go - All-or-nothing validation for recurring events

PURPOSE:
  Validates a candidate resource set against a list of occurrence windows
  and yields a single accept/reject decision with full diagnostics. There
  is no partial success: any rejection at any stage means the caller must
  create nothing.

STAGES:
  1. Window sanity   - every window must have end > start (before queries)
  2. Business rules  - evaluated exactly ONCE; rules are time-independent,
                       so per-occurrence re-evaluation would be redundant
                       work, not added safety
  3. Conflicts       - occurrence windows checked IN ORDER; the first
                       conflicting occurrence aborts with its 0-based index

ATOMICITY:
  The validator never persists; "atomicity" here is logical: all
  validations must pass before any write. Closing the remaining gap
  between validation and persistence is the commit path's job (see
  store/sqlite CommitScheduledEvents, which re-checks capacity inside the
  same transaction that inserts allocations).

SEE ALSO:
  - rules.go, conflict.go: The two engines orchestrated here
  - booking/service.go: Validate-then-commit orchestration
*/
package scheduling

import "context"

// =============================================================================
// BATCH VALIDATOR
// =============================================================================

// BatchValidator orchestrates the Constraint Engine (once) and the
// Conflict Engine (once per occurrence).
type BatchValidator struct {
	Rules     *RuleEngine
	Conflicts *ConflictChecker
}

func NewBatchValidator(rules *RuleEngine, conflicts *ConflictChecker) *BatchValidator {
	return &BatchValidator{Rules: rules, Conflicts: conflicts}
}

// ValidateBatch validates resourceIDs against every window. An empty
// candidate set is accepted trivially: no resource-bound rules apply.
//
// A non-nil error reports either invalid input (ErrInvalidWindow) or a
// collaborator failure (ErrStoreUnavailable); a collaborator failure
// during conflict checks is additionally reflected as a rejected result,
// never as an acceptance (fail closed).
func (v *BatchValidator) ValidateBatch(ctx context.Context, resourceIDs []ResourceID, windows []TimeWindow, excludeEventID EventID) (*BatchResult, error) {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}

	if len(resourceIDs) == 0 {
		return &BatchResult{
			Accepted:           true,
			OccurrenceIndex:    -1,
			OccurrencesChecked: len(windows),
		}, nil
	}

	violations, err := v.Rules.ValidateResources(ctx, resourceIDs)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return &BatchResult{
			Accepted:        false,
			Reason:          RejectedByRules,
			Violations:      violations,
			OccurrenceIndex: -1,
		}, nil
	}

	for i, window := range windows {
		agg, err := v.Conflicts.CheckResources(ctx, resourceIDs, window, excludeEventID)
		if err != nil {
			// Fail closed: the aggregate already marks the affected
			// resources as conflicting.
			return rejectedAt(i, agg), err
		}
		if agg.HasConflict {
			return rejectedAt(i, agg), nil
		}
	}

	return &BatchResult{
		Accepted:           true,
		OccurrenceIndex:    -1,
		OccurrencesChecked: len(windows),
	}, nil
}

func rejectedAt(index int, agg *AggregateResult) *BatchResult {
	return &BatchResult{
		Accepted:           false,
		Reason:             RejectedByConflict,
		OccurrenceIndex:    index,
		Conflicts:          agg,
		OccurrencesChecked: index + 1,
	}
}
