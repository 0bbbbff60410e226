/*
conflict.go - Capacity conflict detection over time windows

PURPOSE:
  Decides whether a resource has enough unreserved capacity for a
  requested quantity during a time window. Capacity is accounted per
  overlapping window: usage is the sum of quantities committed by
  scheduled events whose windows intersect the requested one.

FAIL-CLOSED CONTRACT:
  A missing resource, an inactive resource, or a store that cannot answer
  all count as conflicts. Silently passing any of these would allow
  double-booking. Store failures additionally surface on the error channel
  so callers can log the cause.

OVERLAP SEMANTICS:
  Windows are half-open [start, end). Two windows conflict iff
  s2 < e1 AND e2 > s1. Windows that merely touch at an endpoint do not
  overlap; back-to-back bookings are always allowed.

EXAMPLE:
  Resource "Sala VIP" has quantity 1 and one allocation during
  [T, T+1h). A request for [T+30m, T+90m) conflicts (0 available);
  a request for [T+2h, T+3h) does not.

SEE ALSO:
  - slots.go: Availability search built on the multi-resource check
  - batch.go: Per-occurrence conflict checks for recurring events
*/
package scheduling

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// CONFLICT CHECKER
// =============================================================================

// ConflictChecker is the Conflict Engine. All its operations are read-only
// and side-effect-free; they may run concurrently against a consistent
// snapshot of the stores.
type ConflictChecker struct {
	Resources   ResourceLookup
	Allocations AllocationQuery
}

func NewConflictChecker(resources ResourceLookup, allocations AllocationQuery) *ConflictChecker {
	return &ConflictChecker{Resources: resources, Allocations: allocations}
}

// ConflictCheck describes one single-resource availability question.
type ConflictCheck struct {
	ResourceID ResourceID
	Window     TimeWindow

	// ExcludeEventID, when non-empty, removes that event's own
	// allocations from the usage sum (edit-in-place support).
	ExcludeEventID EventID

	// NeededQuantity defaults to 1 when zero.
	NeededQuantity int
}

// CheckResource reports whether committing NeededQuantity units of the
// resource during the window would exceed its capacity.
//
// Returns (nil, nil) when the resource is available. A non-nil
// ConflictDetail always means "do not book". A non-nil error accompanies
// fail-closed details caused by a missing resource or a store failure;
// the detail is still populated so aggregation can proceed.
func (c *ConflictChecker) CheckResource(ctx context.Context, check ConflictCheck) (*ConflictDetail, error) {
	if err := check.Window.Validate(); err != nil {
		return nil, err
	}

	needed := check.NeededQuantity
	if needed <= 0 {
		needed = 1
	}

	res, err := c.Resources.Get(ctx, check.ResourceID)
	if err != nil {
		return failClosed(check.ResourceID, needed, "resource store unavailable"),
			fmt.Errorf("%w: resource %s: %v", ErrStoreUnavailable, check.ResourceID, err)
	}
	if res == nil {
		return failClosed(check.ResourceID, needed, "resource not found"),
			&ResourceNotFoundError{ResourceID: check.ResourceID}
	}
	if !res.IsActive {
		detail := failClosed(check.ResourceID, needed, "resource inactive")
		detail.ResourceName = res.Name
		detail.TotalCapacity = res.Quantity
		return detail, nil
	}

	overlapping, err := c.Allocations.Overlapping(ctx, check.ResourceID, check.Window, check.ExcludeEventID)
	if err != nil {
		detail := failClosed(check.ResourceID, needed, "allocation store unavailable")
		detail.ResourceName = res.Name
		detail.TotalCapacity = res.Quantity
		return detail, fmt.Errorf("%w: allocations for %s: %v", ErrStoreUnavailable, check.ResourceID, err)
	}

	usage := 0
	for _, a := range overlapping {
		usage += a.QuantityUsed
	}

	remaining := res.Quantity - usage
	if needed <= remaining {
		return nil, nil
	}

	return &ConflictDetail{
		ResourceID:             res.ID,
		ResourceName:           res.Name,
		TotalCapacity:          res.Quantity,
		CurrentUsage:           usage,
		RequestedQuantity:      needed,
		AvailableQuantity:      remaining,
		Reason:                 "insufficient capacity",
		ConflictingAllocations: overlapping,
	}, nil
}

// CheckResources checks every resource in the candidate set against one
// window, one unit per resource. It never short-circuits: all resources
// are evaluated so the caller can report every problem at once.
//
// Fail-closed details from missing resources or store failures are folded
// into the aggregate; their underlying errors are joined into the returned
// error for logging.
func (c *ConflictChecker) CheckResources(ctx context.Context, resourceIDs []ResourceID, window TimeWindow, excludeEventID EventID) (*AggregateResult, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	result := &AggregateResult{ResourcesChecked: len(resourceIDs)}
	var errs []error

	for _, id := range resourceIDs {
		detail, err := c.CheckResource(ctx, ConflictCheck{
			ResourceID:     id,
			Window:         window,
			ExcludeEventID: excludeEventID,
		})
		if err != nil {
			errs = append(errs, err)
		}
		if detail != nil {
			result.ConflictingResources = append(result.ConflictingResources, id)
			result.Conflicts = append(result.Conflicts, *detail)
		}
	}

	result.ConflictingCount = len(result.ConflictingResources)
	result.HasConflict = result.ConflictingCount > 0
	return result, errors.Join(errs...)
}

func failClosed(id ResourceID, needed int, reason string) *ConflictDetail {
	return &ConflictDetail{
		ResourceID:        id,
		RequestedQuantity: needed,
		Reason:            reason,
	}
}
