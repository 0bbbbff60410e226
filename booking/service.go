/*
Package booking orchestrates validate-then-commit for event bookings.

PURPOSE:
  The scheduling engine only decides; this package acts. A booking request
  carries a candidate resource set and one window per occurrence (a
  recurring series submits several). The service runs the batch validator
  and, only on acceptance, commits every occurrence through the store in
  one atomic operation.

CLOSING THE CHECK-THEN-ACT RACE:
  Validation reads the allocation view outside any transaction, so two
  concurrent bookings for the same resource and window could both pass.
  The store's CommitScheduledEvents closes the gap: it re-checks capacity
  inside the same transaction that inserts the allocations and fails with
  ErrCommitConflict when a concurrent commit got there first. The loser
  writes nothing and can retry validation.

SEE ALSO:
  - scheduling/batch.go: The accept/reject decision
  - store/sqlite/sqlite.go: The transactional commit implementation
*/
package booking

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/warp/allocation-engine/scheduling"
)

// =============================================================================
// EVENT STORE - Commit-side contract implemented by the persistence layer
// =============================================================================

// ScheduledEvent is one occurrence ready to persist. Each listed resource
// is committed at one unit for the duration of the window.
type ScheduledEvent struct {
	ID          scheduling.EventID
	Title       string
	Description string
	CreatedBy   string
	Window      scheduling.TimeWindow
	Resources   []scheduling.ResourceID
}

// EventStore persists accepted bookings.
type EventStore interface {
	// CommitScheduledEvents writes all events and their allocations
	// atomically, re-checking capacity inside the same transaction.
	// On any failure nothing is written.
	CommitScheduledEvents(ctx context.Context, events []ScheduledEvent) error

	// CancelEvent transitions an event to cancelled so its allocations
	// stop counting toward capacity.
	CancelEvent(ctx context.Context, id scheduling.EventID) error
}

// =============================================================================
// BOOKING SERVICE
// =============================================================================

// Request is a candidate booking: one resource set, one or more
// occurrence windows. Occurrence windows are supplied by the caller;
// generating them from a recurrence rule happens upstream.
type Request struct {
	Title       string
	Description string
	CreatedBy   string
	ResourceIDs []scheduling.ResourceID
	Occurrences []scheduling.TimeWindow
}

// Confirmation reports what was committed.
type Confirmation struct {
	EventIDs []scheduling.EventID
}

// Service validates and commits bookings. Dependencies are injected; the
// service holds no global state.
type Service struct {
	Validator *scheduling.BatchValidator
	Events    EventStore

	// Logger receives fail-closed validation causes. Nil means
	// log.Default().
	Logger *log.Logger
}

func NewService(validator *scheduling.BatchValidator, events EventStore) *Service {
	return &Service{Validator: validator, Events: events}
}

// Book validates the request and, only on acceptance, commits every
// occurrence. The returned BatchResult is always populated on rejection
// so callers can report every violation or the failing occurrence.
//
// Partial success is impossible: a rejection, or an ErrCommitConflict
// from the store, means zero occurrences were created.
func (s *Service) Book(ctx context.Context, req Request) (*Confirmation, *scheduling.BatchResult, error) {
	if len(req.Occurrences) == 0 {
		return nil, nil, fmt.Errorf("booking needs at least one occurrence window")
	}

	result, err := s.Validator.ValidateBatch(ctx, req.ResourceIDs, req.Occurrences, "")
	if err != nil {
		if result != nil && !result.Accepted {
			// Fail closed: collaborator failure during conflict checks.
			s.logf("booking %q rejected fail-closed: %v", req.Title, err)
			return nil, result, err
		}
		return nil, nil, err
	}
	if !result.Accepted {
		return nil, result, nil
	}

	events := make([]ScheduledEvent, len(req.Occurrences))
	for i, window := range req.Occurrences {
		events[i] = ScheduledEvent{
			ID:          scheduling.EventID(uuid.NewString()),
			Title:       occurrenceTitle(req.Title, i, len(req.Occurrences)),
			Description: req.Description,
			CreatedBy:   req.CreatedBy,
			Window:      window,
			Resources:   req.ResourceIDs,
		}
	}

	if err := s.Events.CommitScheduledEvents(ctx, events); err != nil {
		return nil, result, err
	}

	ids := make([]scheduling.EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return &Confirmation{EventIDs: ids}, result, nil
}

// Cancel transitions an event to cancelled, releasing its capacity.
func (s *Service) Cancel(ctx context.Context, id scheduling.EventID) error {
	return s.Events.CancelEvent(ctx, id)
}

// occurrenceTitle numbers the instances of a recurring series.
func occurrenceTitle(title string, index, total int) string {
	if total <= 1 {
		return title
	}
	return fmt.Sprintf("%s (%d/%d)", title, index+1, total)
}

func (s *Service) logf(format string, args ...any) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("booking: "+format, args...)
}
