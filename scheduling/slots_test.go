package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/allocation-engine/scheduling"
	"github.com/warp/allocation-engine/scheduling/store"
)

// bookWholeDays fills the full working span (08:00-20:00) of a resource
// for the given day offsets from testDay.
func bookWholeDays(m *store.Memory, id scheduling.ResourceID, dayOffsets ...int) {
	for _, offset := range dayOffsets {
		day := testDay.AddDate(0, 0, offset)
		eventID := scheduling.EventID(day.Format("busy-2006-01-02"))
		book(m, eventID, "Booked out", id, scheduling.NewWindow(
			day.Add(scheduling.WorkingDayStartHour*time.Hour),
			day.Add(scheduling.WorkingDayEndHour*time.Hour),
		))
	}
}

// =============================================================================
// DESIRED WINDOW
// =============================================================================

func TestFindAvailableTimeSlot_DesiredWindowWins(t *testing.T) {
	// GIVEN: Free resources
	// WHEN: Searching with a free desired window
	// THEN: The desired window itself is returned

	m := newFixture()
	checker := scheduling.NewConflictChecker(m, m)

	desired := window(10, 11)
	result, err := checker.FindAvailableTimeSlot(context.Background(), scheduling.SlotRequest{
		ResourceIDs: ids("sala-vip", "projector"),
		Desired:     desired,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Available {
		t.Fatalf("expected availability, got %+v", result)
	}
	if !result.Window.Start.Equal(desired.Start) || !result.Window.End.Equal(desired.End) {
		t.Errorf("expected the desired window, got %s", result.Window)
	}
	if result.Reason != "desired window available" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
}

// =============================================================================
// SWEEP
// =============================================================================

func TestFindAvailableTimeSlot_SweepsToEarliestFreeHour(t *testing.T) {
	// GIVEN: Sala VIP booked 08:00-10:00 on the desired day
	// WHEN: Searching with desired 08:00-09:00
	// THEN: Day 0, hour 10 is offered (earliest free start hour)

	m := newFixture()
	book(m, "ev-1", "Morning block", "sala-vip", window(8, 10))
	checker := scheduling.NewConflictChecker(m, m)

	result, err := checker.FindAvailableTimeSlot(context.Background(), scheduling.SlotRequest{
		ResourceIDs: ids("sala-vip"),
		Desired:     window(8, 9),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Available {
		t.Fatalf("expected a slot, got %+v", result)
	}
	if result.DayOffset != 0 || result.Hour != 10 {
		t.Errorf("expected day 0 hour 10, got day %d hour %d", result.DayOffset, result.Hour)
	}
	if result.Window.Start.Hour() != 10 || result.Window.Duration() != time.Hour {
		t.Errorf("unexpected window %s", result.Window)
	}
}

func TestFindAvailableTimeSlot_RollsToNextDay(t *testing.T) {
	// GIVEN: The whole working span of day 0 booked
	// WHEN: Searching with desired inside day 0
	// THEN: Day 1, hour 08:00

	m := newFixture()
	bookWholeDays(m, "sala-vip", 0)
	checker := scheduling.NewConflictChecker(m, m)

	result, err := checker.FindAvailableTimeSlot(context.Background(), scheduling.SlotRequest{
		ResourceIDs: ids("sala-vip"),
		Desired:     window(9, 10),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Available {
		t.Fatalf("expected a slot, got %+v", result)
	}
	if result.DayOffset != 1 || result.Hour != scheduling.WorkingDayStartHour {
		t.Errorf("expected day 1 hour 8, got day %d hour %d", result.DayOffset, result.Hour)
	}
	if result.DaysChecked != 2 {
		t.Errorf("expected 2 days checked, got %d", result.DaysChecked)
	}
}

func TestFindAvailableTimeSlot_RespectsCustomDuration(t *testing.T) {
	// GIVEN: Sala VIP booked 09:00-10:00
	// WHEN: Searching 2-hour slots with desired 08:00-10:00
	// THEN: Hour 8 fails (09:00 overlap), hour 10 offered with 2h window

	m := newFixture()
	book(m, "ev-1", "Mid-morning", "sala-vip", window(9, 10))
	checker := scheduling.NewConflictChecker(m, m)

	result, err := checker.FindAvailableTimeSlot(context.Background(), scheduling.SlotRequest{
		ResourceIDs:   ids("sala-vip"),
		Desired:       window(8, 10),
		DurationHours: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Available || result.Hour != 10 {
		t.Fatalf("expected hour 10, got %+v", result)
	}
	if result.Window.Duration() != 2*time.Hour {
		t.Errorf("expected a 2h window, got %s", result.Window)
	}
}

// =============================================================================
// EXHAUSTION AND CANCELLATION
// =============================================================================

func TestFindAvailableTimeSlot_ExhaustsAfterMaxDays(t *testing.T) {
	// GIVEN: Every working span of the next 3 days booked
	// WHEN: Searching with MaxDaysAhead=3
	// THEN: Available=false with DaysChecked=3

	m := newFixture()
	bookWholeDays(m, "sala-vip", 0, 1, 2)
	checker := scheduling.NewConflictChecker(m, m)

	result, err := checker.FindAvailableTimeSlot(context.Background(), scheduling.SlotRequest{
		ResourceIDs:  ids("sala-vip"),
		Desired:      window(9, 10),
		MaxDaysAhead: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Available {
		t.Fatalf("expected exhaustion, got %+v", result)
	}
	if result.DaysChecked != 3 {
		t.Errorf("expected 3 days checked, got %d", result.DaysChecked)
	}
	if result.Reason != "no availability in the next 3 days" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
}

func TestFindAvailableTimeSlot_ContextCancellationStopsSweep(t *testing.T) {
	// GIVEN: A busy day forcing the sweep and a cancelled context
	// WHEN: Searching
	// THEN: The context error surfaces instead of a result

	m := newFixture()
	bookWholeDays(m, "sala-vip", 0)
	checker := scheduling.NewConflictChecker(m, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checker.FindAvailableTimeSlot(ctx, scheduling.SlotRequest{
		ResourceIDs: ids("sala-vip"),
		Desired:     window(9, 10),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFindAvailableTimeSlot_InvalidDesiredWindow(t *testing.T) {
	m := newFixture()
	checker := scheduling.NewConflictChecker(m, m)

	_, err := checker.FindAvailableTimeSlot(context.Background(), scheduling.SlotRequest{
		ResourceIDs: ids("sala-vip"),
		Desired:     window(10, 10),
	})
	if !errors.Is(err, scheduling.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}
