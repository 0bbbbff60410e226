package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allocation-engine/booking"
	"github.com/warp/allocation-engine/scheduling"
	"github.com/warp/allocation-engine/store/sqlite"
)

// =============================================================================
// FIXTURES
// =============================================================================

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func win(startHour, endHour int) scheduling.TimeWindow {
	return scheduling.NewWindow(
		day.Add(time.Duration(startHour)*time.Hour),
		day.Add(time.Duration(endHour)*time.Hour),
	)
}

// newStore opens a file-backed database: with this driver every pooled
// connection to ":memory:" would see its own empty database.
func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedRoom(t *testing.T, st *sqlite.Store, id string, quantity int) {
	t.Helper()
	require.NoError(t, st.SaveResource(context.Background(), scheduling.Resource{
		ID:       scheduling.ResourceID(id),
		Name:     "Room " + id,
		Type:     "room",
		Quantity: quantity,
		IsActive: true,
	}))
}

func commitEvent(t *testing.T, st *sqlite.Store, id string, w scheduling.TimeWindow, resources ...string) {
	t.Helper()
	event := booking.ScheduledEvent{
		ID:     scheduling.EventID(id),
		Title:  "Event " + id,
		Window: w,
	}
	for _, r := range resources {
		event.Resources = append(event.Resources, scheduling.ResourceID(r))
	}
	require.NoError(t, st.CommitScheduledEvents(context.Background(),
		[]booking.ScheduledEvent{event}))
}

// =============================================================================
// RESOURCES
// =============================================================================

func TestResourceRoundtrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	res := scheduling.Resource{
		ID: "room-a", Name: "Room A", Description: "Main meeting room",
		Type: "room", Quantity: 2, IsActive: true,
	}
	require.NoError(t, st.SaveResource(ctx, res))

	got, err := st.Get(ctx, "room-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res, *got)

	// Upsert keeps the same row.
	res.Quantity = 5
	require.NoError(t, st.SaveResource(ctx, res))
	got, err = st.Get(ctx, "room-a")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

func TestGet_MissingResourceIsNilNil(t *testing.T) {
	st := newStore(t)

	got, err := st.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListResources_ActiveFilter(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	seedRoom(t, st, "a", 1)
	require.NoError(t, st.SaveResource(ctx, scheduling.Resource{
		ID: "b", Name: "Room b", Quantity: 1, IsActive: false,
	}))

	all, err := st.ListResources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := st.ListResources(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, scheduling.ResourceID("a"), active[0].ID)
}

// =============================================================================
// OVERLAP QUERIES
// =============================================================================

func TestOverlapping_HalfOpenSemantics(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 1)
	commitEvent(t, st, "ev-1", win(10, 11), "room-a")

	// Strict overlap is found.
	hits, err := st.Overlapping(ctx, "room-a", win(10, 12), "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, scheduling.EventID("ev-1"), hits[0].EventID)
	assert.Equal(t, "Event ev-1", hits[0].EventTitle)
	assert.True(t, hits[0].Window.Start.Equal(win(10, 11).Start))

	// Touching windows are not overlaps.
	hits, err = st.Overlapping(ctx, "room-a", win(11, 12), "")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = st.Overlapping(ctx, "room-a", win(9, 10), "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOverlapping_ExcludesEventAndCancelled(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 2)
	commitEvent(t, st, "ev-1", win(10, 11), "room-a")
	commitEvent(t, st, "ev-2", win(10, 11), "room-a")

	hits, err := st.Overlapping(ctx, "room-a", win(10, 11), "ev-1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, scheduling.EventID("ev-2"), hits[0].EventID)

	require.NoError(t, st.CancelEvent(ctx, "ev-2"))
	hits, err = st.Overlapping(ctx, "room-a", win(10, 11), "ev-1")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestConstraintRoundtripAndActiveRules(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	limit := 8
	active := scheduling.Constraint{
		ID: "av-setup", Name: "AV setup", IsActive: true,
		Rules: []scheduling.Rule{
			{ResourceID: "projector", Type: scheduling.RuleRequires, RelatedResourceID: "screen"},
			{ResourceID: "room-a", Type: scheduling.RuleMaxCapacity, Value: &limit},
		},
	}
	retired := scheduling.Constraint{
		ID: "retired", Name: "Retired", IsActive: false,
		Rules: []scheduling.Rule{
			{ResourceID: "welder", Type: scheduling.RuleExcludes, RelatedResourceID: "paint-booth"},
		},
	}
	require.NoError(t, st.SaveConstraint(ctx, active))
	require.NoError(t, st.SaveConstraint(ctx, retired))

	groups, err := st.ActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1, "inactive constraints stay out of the rule view")
	assert.Equal(t, scheduling.ConstraintID("av-setup"), groups[0].ConstraintID)
	require.Len(t, groups[0].Rules, 2)
	assert.Equal(t, scheduling.ResourceID("screen"), groups[0].Rules[0].RelatedResourceID)
	require.NotNil(t, groups[0].Rules[1].Value)
	assert.Equal(t, 8, *groups[0].Rules[1].Value)

	all, err := st.ListConstraints(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Replacing a constraint replaces its rules wholesale.
	active.Rules = active.Rules[:1]
	require.NoError(t, st.SaveConstraint(ctx, active))
	groups, err = st.ActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Rules, 1)
}

// =============================================================================
// COMMIT PATH
// =============================================================================

func TestCommitScheduledEvents_RechecksCapacity(t *testing.T) {
	// GIVEN: Room with quantity 1, already committed 10:00-11:00
	// WHEN: Committing another event in the same window
	// THEN: ErrCommitConflict and no second event persisted

	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 1)
	commitEvent(t, st, "ev-1", win(10, 11), "room-a")

	err := st.CommitScheduledEvents(ctx, []booking.ScheduledEvent{{
		ID: "ev-2", Title: "Late arrival", Window: win(10, 11),
		Resources: []scheduling.ResourceID{"room-a"},
	}})
	require.ErrorIs(t, err, scheduling.ErrCommitConflict)

	got, err := st.GetEvent(ctx, "ev-2")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled-back events must not persist")
}

func TestCommitScheduledEvents_BatchIsAtomic(t *testing.T) {
	// GIVEN: Room with quantity 1 and a batch whose two occurrences share
	//        the same window
	// WHEN: Committing the batch
	// THEN: The in-transaction re-check sees the first insert, the whole
	//       batch rolls back

	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 1)

	err := st.CommitScheduledEvents(ctx, []booking.ScheduledEvent{
		{ID: "ev-1", Title: "First", Window: win(10, 11),
			Resources: []scheduling.ResourceID{"room-a"}},
		{ID: "ev-2", Title: "Second", Window: win(10, 11),
			Resources: []scheduling.ResourceID{"room-a"}},
	})
	require.ErrorIs(t, err, scheduling.ErrCommitConflict)

	events, err := st.ListEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCommitScheduledEvents_UnknownResourceRollsBack(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	err := st.CommitScheduledEvents(ctx, []booking.ScheduledEvent{{
		ID: "ev-1", Title: "Nowhere", Window: win(10, 11),
		Resources: []scheduling.ResourceID{"ghost"},
	}})
	require.ErrorIs(t, err, scheduling.ErrResourceNotFound)

	events, err := st.ListEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCommitScheduledEvents_TouchingWindowsCommit(t *testing.T) {
	// Back-to-back bookings of a single-unit room both succeed.
	st := newStore(t)
	seedRoom(t, st, "room-a", 1)

	commitEvent(t, st, "ev-1", win(10, 11), "room-a")
	commitEvent(t, st, "ev-2", win(11, 12), "room-a")

	events, err := st.ListEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

// =============================================================================
// CANCELLATION AND READS
// =============================================================================

func TestCancelEvent_FreesCapacity(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 1)
	commitEvent(t, st, "ev-1", win(10, 11), "room-a")

	require.NoError(t, st.CancelEvent(ctx, "ev-1"))

	// The same window can be booked again.
	commitEvent(t, st, "ev-2", win(10, 11), "room-a")

	got, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, scheduling.StatusCancelled, got.Status)
}

func TestCancelEvent_UnknownOrAlreadyCancelled(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 1)

	require.ErrorIs(t, st.CancelEvent(ctx, "ghost"), sqlite.ErrEventNotFound)

	commitEvent(t, st, "ev-1", win(10, 11), "room-a")
	require.NoError(t, st.CancelEvent(ctx, "ev-1"))
	require.ErrorIs(t, st.CancelEvent(ctx, "ev-1"), sqlite.ErrEventNotFound)
}

func TestGetEvent_LoadsResources(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	seedRoom(t, st, "room-a", 1)
	seedRoom(t, st, "room-b", 1)
	commitEvent(t, st, "ev-1", win(10, 11), "room-b", "room-a")

	got, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Event ev-1", got.Title)
	assert.Equal(t, scheduling.StatusScheduled, got.Status)
	assert.True(t, got.Window.Start.Equal(win(10, 11).Start))
	assert.Equal(t, []scheduling.ResourceID{"room-a", "room-b"}, got.Resources)
}

func TestListEvents_OrderedByStart(t *testing.T) {
	st := newStore(t)
	seedRoom(t, st, "room-a", 1)
	commitEvent(t, st, "late", win(14, 15), "room-a")
	commitEvent(t, st, "early", win(9, 10), "room-a")

	events, err := st.ListEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, scheduling.EventID("early"), events[0].ID)
	assert.Equal(t, scheduling.EventID("late"), events[1].ID)
}
