/*
slots.go - Next-available-slot search

PURPOSE:
  When the desired window conflicts, sweep forward day by day and, within
  each day, hour by hour across the working span (08:00-20:00), probing
  candidate windows of the requested duration until one is conflict-free.

DETERMINISM:
  The search is exhaustive, stateless, and deterministic: the result is
  always the earliest available candidate. Probes within a day run
  concurrently (each is an independent read-only query), but selection is
  earliest-hour-wins, so concurrency never changes the answer.

BOUNDS:
  MaxDaysAhead bounds the sweep; cost is O(MaxDaysAhead x 12) conflict
  checks. The context lets a caller cancel a long search or attach a
  deadline.

SEE ALSO:
  - conflict.go: The multi-resource check each probe runs
  - window.go: Working-span constants and candidate construction
*/
package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// SLOT SEARCH
// =============================================================================

const (
	defaultSlotDurationHours = 1
	defaultMaxDaysAhead      = 30
)

// SlotRequest describes an availability search for a set of resources.
type SlotRequest struct {
	ResourceIDs []ResourceID
	Desired     TimeWindow

	// DurationHours is the candidate window length; defaults to 1.
	DurationHours int

	// MaxDaysAhead bounds the sweep; defaults to 30.
	MaxDaysAhead int

	// ExcludeEventID supports rescheduling an existing event.
	ExcludeEventID EventID
}

// FindAvailableTimeSlot returns the desired window when it is already
// conflict-free, otherwise the earliest conflict-free candidate within
// the working span of the next MaxDaysAhead days, otherwise
// Available=false with the number of days checked.
func (c *ConflictChecker) FindAvailableTimeSlot(ctx context.Context, req SlotRequest) (*SlotResult, error) {
	if err := req.Desired.Validate(); err != nil {
		return nil, err
	}

	durationHours := req.DurationHours
	if durationHours <= 0 {
		durationHours = defaultSlotDurationHours
	}
	maxDays := req.MaxDaysAhead
	if maxDays <= 0 {
		maxDays = defaultMaxDaysAhead
	}
	duration := time.Duration(durationHours) * time.Hour

	desired, err := c.CheckResources(ctx, req.ResourceIDs, req.Desired, req.ExcludeEventID)
	if err != nil {
		return nil, err
	}
	if !desired.HasConflict {
		return &SlotResult{
			Available: true,
			Window:    req.Desired,
			Reason:    "desired window available",
			DayOffset: 0,
			Hour:      req.Desired.Start.Hour(),
		}, nil
	}

	baseDay := req.Desired.Start
	for dayOffset := 0; dayOffset < maxDays; dayOffset++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := baseDay.AddDate(0, 0, dayOffset)
		hour, err := c.earliestFreeHour(ctx, req, day, duration)
		if err != nil {
			return nil, err
		}
		if hour >= 0 {
			window := CandidateWindow(day, hour, duration)
			return &SlotResult{
				Available: true,
				Window:    window,
				Reason: fmt.Sprintf("available on %s at %02d:00",
					window.Start.Format("2006-01-02"), hour),
				DayOffset:   dayOffset,
				Hour:        hour,
				DaysChecked: dayOffset + 1,
			}, nil
		}
	}

	return &SlotResult{
		Available:   false,
		Reason:      fmt.Sprintf("no availability in the next %d days", maxDays),
		DaysChecked: maxDays,
	}, nil
}

// earliestFreeHour probes every working-span start hour of one day
// concurrently and returns the lowest conflict-free hour, or -1.
// A probe skips itself when an earlier hour has already succeeded.
func (c *ConflictChecker) earliestFreeHour(ctx context.Context, req SlotRequest, day time.Time, duration time.Duration) (int, error) {
	var (
		mu   sync.Mutex
		best = -1
	)

	g, gctx := errgroup.WithContext(ctx)
	for hour := WorkingDayStartHour; hour < WorkingDayEndHour; hour++ {
		hour := hour
		g.Go(func() error {
			mu.Lock()
			superseded := best >= 0 && best <= hour
			mu.Unlock()
			if superseded {
				return nil
			}

			agg, err := c.CheckResources(gctx, req.ResourceIDs, CandidateWindow(day, hour, duration), req.ExcludeEventID)
			if err != nil {
				return err
			}
			if !agg.HasConflict {
				mu.Lock()
				if best < 0 || hour < best {
					best = hour
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return -1, err
	}
	return best, nil
}
