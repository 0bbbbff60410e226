package scheduling_test

import (
	"context"
	"errors"
	"testing"

	"github.com/warp/allocation-engine/scheduling"
	"github.com/warp/allocation-engine/scheduling/store"
)

func newBatchValidator(m *store.Memory) *scheduling.BatchValidator {
	return scheduling.NewBatchValidator(
		scheduling.NewRuleEngine(m),
		scheduling.NewConflictChecker(m, m),
	)
}

// =============================================================================
// ACCEPTANCE
// =============================================================================

func TestValidateBatch_AcceptsWhenAllOccurrencesFree(t *testing.T) {
	// GIVEN: Free resources over three weekly occurrences
	// WHEN: Validating the batch
	// THEN: Accepted with every occurrence checked

	m := newFixture()
	v := newBatchValidator(m)

	windows := []scheduling.TimeWindow{window(9, 10)}
	for day := 1; day <= 2; day++ {
		w := window(9, 10)
		w.Start = w.Start.AddDate(0, 0, 7*day)
		w.End = w.End.AddDate(0, 0, 7*day)
		windows = append(windows, w)
	}

	result, err := v.ValidateBatch(context.Background(),
		ids("sala-vip", "projector"), windows, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected acceptance, got %+v", result)
	}
	if result.OccurrenceIndex != -1 {
		t.Errorf("expected occurrence index -1, got %d", result.OccurrenceIndex)
	}
	if result.OccurrencesChecked != 3 {
		t.Errorf("expected 3 occurrences checked, got %d", result.OccurrencesChecked)
	}
}

func TestValidateBatch_EmptyResourceSetAccepted(t *testing.T) {
	m := newFixture()
	v := newBatchValidator(m)

	result, err := v.ValidateBatch(context.Background(), nil,
		[]scheduling.TimeWindow{window(9, 10)}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted {
		t.Errorf("empty candidate set must be accepted, got %+v", result)
	}
}

// =============================================================================
// RULE REJECTION
// =============================================================================

func TestValidateBatch_RuleViolationSkipsConflictChecks(t *testing.T) {
	// GIVEN: projector requires screen, and windows that are all free
	// WHEN: Validating {projector} over two occurrences
	// THEN: Rejected by rules with index -1; conflicts never ran

	m := newFixture()
	m.PutConstraint(scheduling.Constraint{
		ID: "av-setup", Name: "AV setup", IsActive: true,
		Rules: []scheduling.Rule{requires("projector", "screen")},
	})
	v := newBatchValidator(m)

	result, err := v.ValidateBatch(context.Background(), ids("projector"),
		[]scheduling.TimeWindow{window(9, 10), window(11, 12)}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accepted {
		t.Fatal("expected rejection")
	}
	if result.Reason != scheduling.RejectedByRules {
		t.Errorf("expected rules rejection, got %s", result.Reason)
	}
	if result.OccurrenceIndex != -1 {
		t.Errorf("rule rejections carry no occurrence index, got %d", result.OccurrenceIndex)
	}
	if len(result.Violations) != 1 {
		t.Errorf("expected 1 violation, got %d", len(result.Violations))
	}
	if result.Conflicts != nil {
		t.Error("conflict stage must not run after a rule rejection")
	}
}

// =============================================================================
// CONFLICT REJECTION
// =============================================================================

func TestValidateBatch_FirstConflictingOccurrenceAborts(t *testing.T) {
	// GIVEN: Occurrences [free, booked, free]
	// WHEN: Validating the batch
	// THEN: Rejected at 0-based index 1; the third window never checked

	m := newFixture()
	book(m, "ev-1", "Existing meeting", "sala-vip", window(11, 12))
	v := newBatchValidator(m)

	result, err := v.ValidateBatch(context.Background(), ids("sala-vip"),
		[]scheduling.TimeWindow{window(9, 10), window(11, 12), window(14, 15)}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accepted {
		t.Fatal("expected rejection")
	}
	if result.Reason != scheduling.RejectedByConflict {
		t.Errorf("expected conflict rejection, got %s", result.Reason)
	}
	if result.OccurrenceIndex != 1 {
		t.Errorf("expected occurrence index 1, got %d", result.OccurrenceIndex)
	}
	if result.OccurrencesChecked != 2 {
		t.Errorf("expected 2 occurrences checked, got %d", result.OccurrencesChecked)
	}
	if result.Conflicts == nil || !result.Conflicts.HasConflict {
		t.Errorf("expected conflict diagnostics, got %+v", result.Conflicts)
	}
}

func TestValidateBatch_StoreFailureFailsClosed(t *testing.T) {
	// GIVEN: An unknown resource id (fail-closed path)
	// WHEN: Validating the batch
	// THEN: Rejected result AND an error; never an acceptance

	m := newFixture()
	v := newBatchValidator(m)

	result, err := v.ValidateBatch(context.Background(), ids("ghost"),
		[]scheduling.TimeWindow{window(9, 10)}, "")
	if !errors.Is(err, scheduling.ErrResourceNotFound) {
		t.Errorf("expected ErrResourceNotFound, got %v", err)
	}
	if result == nil || result.Accepted {
		t.Fatalf("fail-closed batch must reject, got %+v", result)
	}
	if result.Reason != scheduling.RejectedByConflict || result.OccurrenceIndex != 0 {
		t.Errorf("unexpected rejection: %+v", result)
	}
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func TestValidateBatch_InvalidWindowRejectedUpfront(t *testing.T) {
	// Every window is validated before any store access.
	m := newFixture()
	v := newBatchValidator(m)

	result, err := v.ValidateBatch(context.Background(), ids("sala-vip"),
		[]scheduling.TimeWindow{window(9, 10), window(12, 12)}, "")
	if !errors.Is(err, scheduling.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
	if result != nil {
		t.Errorf("no result for invalid input, got %+v", result)
	}
}
