/*
Package sqlite provides the SQLite-backed store for the allocation engine.

PURPOSE:
  Implements the engine's collaborator contracts (ResourceLookup,
  AllocationQuery, RuleQuery) and the booking commit path using SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  scheduling.ResourceLookup:  resource existence, quantity, active flag
  scheduling.AllocationQuery: scheduled allocations overlapping a window
  scheduling.RuleQuery:       rules of active constraints
  booking.EventStore:         atomic commit and cancellation

COMMIT-TIME RE-CHECK:
  Batch validation reads the allocation view outside a transaction, so a
  concurrent booking can pass validation against the same capacity.
  CommitScheduledEvents closes that gap: a single writer (mutex) opens one
  SQL transaction, re-computes overlapping usage for every resource of
  every occurrence, and inserts the allocations only if capacity still
  holds. A failed re-check rolls everything back and reports
  scheduling.ErrCommitConflict.

KEY TABLES:
  resources:        Bookable things with quantity and active flag
  events:           One row per occurrence, with status and window
  event_resources:  Allocations (one unit per resource per event)
  constraints:      Named rule groups with an active flag
  constraint_rules: Directional rules keyed by subject resource

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./allocations.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  checker := scheduling.NewConflictChecker(st, st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool (golang-migrate, goose).

SEE ALSO:
  - scheduling/stores.go: The contracts implemented here
  - scheduling/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/allocation-engine/booking"
	"github.com/warp/allocation-engine/scheduling"
)

// ErrEventNotFound is returned when an event id does not exist or is not
// in a state the operation applies to.
var ErrEventNotFound = errors.New("event not found")

// Store implements the scheduling query contracts and the booking commit
// path using SQLite.
type Store struct {
	db *sql.DB

	// mu serializes writers. SQLite allows one writer at a time anyway;
	// taking the mutex first turns busy errors into queueing.
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Resources (rooms, equipment, people)
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		resource_type TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_type
		ON resources(resource_type);

	-- Events (one row per occurrence)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_status
		ON events(status);
	CREATE INDEX IF NOT EXISTS idx_events_window
		ON events(start_time, end_time);

	-- Allocations: one unit of a resource committed to one event
	CREATE TABLE IF NOT EXISTS event_resources (
		event_id TEXT NOT NULL REFERENCES events(id),
		resource_id TEXT NOT NULL REFERENCES resources(id),
		quantity_used INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (event_id, resource_id)
	);

	-- Hot path: overlap queries join on resource then filter by window
	CREATE INDEX IF NOT EXISTS idx_event_resources_resource
		ON event_resources(resource_id);

	-- Constraints (named rule groups)
	CREATE TABLE IF NOT EXISTS constraints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Directional rules keyed by subject resource
	CREATE TABLE IF NOT EXISTS constraint_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		constraint_id TEXT NOT NULL REFERENCES constraints(id),
		resource_id TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		related_resource_id TEXT,
		value INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_constraint_rules_constraint
		ON constraint_rules(constraint_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESOURCE LOOKUP (scheduling.ResourceLookup)
// =============================================================================

func (s *Store) Get(ctx context.Context, id scheduling.ResourceID) (*scheduling.Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), COALESCE(resource_type, ''), quantity, is_active
		FROM resources WHERE id = ?`, id)

	var res scheduling.Resource
	err := row.Scan(&res.ID, &res.Name, &res.Description, &res.Type, &res.Quantity, &res.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resource %s: %w", id, err)
	}
	return &res, nil
}

// SaveResource inserts or replaces a resource record.
func (s *Store) SaveResource(ctx context.Context, res scheduling.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, name, description, resource_type, quantity, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			resource_type = excluded.resource_type,
			quantity = excluded.quantity,
			is_active = excluded.is_active`,
		res.ID, res.Name, res.Description, res.Type, res.Quantity, res.IsActive,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save resource %s: %w", res.ID, err)
	}
	return nil
}

// ListResources returns resources ordered by name.
func (s *Store) ListResources(ctx context.Context, activeOnly bool) ([]scheduling.Resource, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), COALESCE(resource_type, ''), quantity, is_active
		FROM resources`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var result []scheduling.Resource
	for rows.Next() {
		var res scheduling.Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.Description, &res.Type, &res.Quantity, &res.IsActive); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

// =============================================================================
// ALLOCATION QUERY (scheduling.AllocationQuery)
// =============================================================================

// Overlapping returns scheduled allocations whose window strictly
// intersects the given one under half-open semantics.
func (s *Store) Overlapping(ctx context.Context, id scheduling.ResourceID, window scheduling.TimeWindow, excludeEventID scheduling.EventID) ([]scheduling.Allocation, error) {
	query := `
		SELECT e.id, e.title, e.start_time, e.end_time, er.quantity_used
		FROM event_resources er
		JOIN events e ON er.event_id = e.id
		WHERE er.resource_id = ?
		AND e.status = 'scheduled'
		AND e.start_time < ?
		AND e.end_time > ?`
	args := []any{id, fmtTime(window.End), fmtTime(window.Start)}

	if excludeEventID != "" {
		query += ` AND e.id != ?`
		args = append(args, excludeEventID)
	}
	query += ` ORDER BY e.start_time`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for %s: %w", id, err)
	}
	defer rows.Close()

	var result []scheduling.Allocation
	for rows.Next() {
		var (
			a          scheduling.Allocation
			start, end string
		)
		if err := rows.Scan(&a.EventID, &a.EventTitle, &start, &end, &a.QuantityUsed); err != nil {
			return nil, err
		}
		a.ResourceID = id
		if a.Window.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if a.Window.End, err = parseTime(end); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// =============================================================================
// RULE QUERY (scheduling.RuleQuery)
// =============================================================================

// ActiveRules loads rules of active constraints, grouped by constraint in
// a stable order.
func (s *Store) ActiveRules(ctx context.Context) ([]scheduling.RuleGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cr.constraint_id, cr.resource_id, cr.rule_type,
		       COALESCE(cr.related_resource_id, ''), cr.value
		FROM constraint_rules cr
		JOIN constraints c ON c.id = cr.constraint_id
		WHERE c.is_active
		ORDER BY c.id, cr.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	var groups []scheduling.RuleGroup
	for rows.Next() {
		var (
			rule  scheduling.Rule
			value sql.NullInt64
		)
		if err := rows.Scan(&rule.ConstraintID, &rule.ResourceID, &rule.Type, &rule.RelatedResourceID, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			v := int(value.Int64)
			rule.Value = &v
		}

		if len(groups) == 0 || groups[len(groups)-1].ConstraintID != rule.ConstraintID {
			groups = append(groups, scheduling.RuleGroup{ConstraintID: rule.ConstraintID})
		}
		last := &groups[len(groups)-1]
		last.Rules = append(last.Rules, rule)
	}
	return groups, rows.Err()
}

// SaveConstraint inserts or replaces a constraint and its rules.
func (s *Store) SaveConstraint(ctx context.Context, c scheduling.Constraint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO constraints (id, name, description, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			is_active = excluded.is_active`,
		c.ID, c.Name, c.Description, c.IsActive, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save constraint %s: %w", c.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM constraint_rules WHERE constraint_id = ?`, c.ID); err != nil {
		return err
	}
	for _, rule := range c.Rules {
		var value any
		if rule.Value != nil {
			value = *rule.Value
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO constraint_rules
			(constraint_id, resource_id, rule_type, related_resource_id, value)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, rule.ResourceID, rule.Type, nullString(string(rule.RelatedResourceID)), value)
		if err != nil {
			return fmt.Errorf("failed to save rule for constraint %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ListConstraints returns all constraints with their rules.
func (s *Store) ListConstraints(ctx context.Context) ([]scheduling.Constraint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), is_active
		FROM constraints ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraints: %w", err)
	}
	defer rows.Close()

	var result []scheduling.Constraint
	byID := make(map[scheduling.ConstraintID]int)
	for rows.Next() {
		var c scheduling.Constraint
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive); err != nil {
			return nil, err
		}
		byID[c.ID] = len(result)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ruleRows, err := s.db.QueryContext(ctx, `
		SELECT constraint_id, resource_id, rule_type, COALESCE(related_resource_id, ''), value
		FROM constraint_rules ORDER BY constraint_id, id`)
	if err != nil {
		return nil, err
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var (
			rule  scheduling.Rule
			value sql.NullInt64
		)
		if err := ruleRows.Scan(&rule.ConstraintID, &rule.ResourceID, &rule.Type, &rule.RelatedResourceID, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			v := int(value.Int64)
			rule.Value = &v
		}
		if i, ok := byID[rule.ConstraintID]; ok {
			result[i].Rules = append(result[i].Rules, rule)
		}
	}
	return result, ruleRows.Err()
}

// =============================================================================
// EVENT STORE (booking.EventStore)
// =============================================================================

// CommitScheduledEvents writes every event and its allocations in one
// transaction, re-checking capacity for each resource against the state
// visible inside the transaction. Any re-check failure rolls everything
// back: zero occurrences are created.
func (s *Store) CommitScheduledEvents(ctx context.Context, events []booking.ScheduledEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, event := range events {
		if err := event.Window.Validate(); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, title, description, start_time, end_time, status, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, 'scheduled', ?, ?)`,
			event.ID, event.Title, event.Description,
			fmtTime(event.Window.Start), fmtTime(event.Window.End),
			event.CreatedBy, now)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
		}

		for _, resourceID := range event.Resources {
			if err := recheckAndAllocate(ctx, tx, event, resourceID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// recheckAndAllocate is the commit-time capacity re-check. It sees rows
// inserted earlier in the same transaction, so occurrences of one batch
// count against each other too.
func recheckAndAllocate(ctx context.Context, tx *sql.Tx, event booking.ScheduledEvent, resourceID scheduling.ResourceID) error {
	var (
		quantity int
		isActive bool
	)
	err := tx.QueryRowContext(ctx, `
		SELECT quantity, is_active FROM resources WHERE id = ?`, resourceID).
		Scan(&quantity, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return &scheduling.ResourceNotFoundError{ResourceID: resourceID}
	}
	if err != nil {
		return fmt.Errorf("failed to load resource %s: %w", resourceID, err)
	}
	if !isActive {
		return &scheduling.CommitConflictError{
			ResourceID: resourceID,
			EventID:    event.ID,
			Window:     event.Window,
			Available:  0,
			Requested:  1,
		}
	}

	var usage int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(er.quantity_used), 0)
		FROM event_resources er
		JOIN events e ON er.event_id = e.id
		WHERE er.resource_id = ?
		AND e.status = 'scheduled'
		AND e.start_time < ?
		AND e.end_time > ?`,
		resourceID, fmtTime(event.Window.End), fmtTime(event.Window.Start)).
		Scan(&usage)
	if err != nil {
		return fmt.Errorf("failed to re-check usage for %s: %w", resourceID, err)
	}

	if 1 > quantity-usage {
		return &scheduling.CommitConflictError{
			ResourceID: resourceID,
			EventID:    event.ID,
			Window:     event.Window,
			Available:  quantity - usage,
			Requested:  1,
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_resources (event_id, resource_id, quantity_used)
		VALUES (?, ?, 1)`, event.ID, resourceID)
	if err != nil {
		return fmt.Errorf("failed to insert allocation %s/%s: %w", event.ID, resourceID, err)
	}
	return nil
}

// CancelEvent transitions a scheduled event to cancelled. Its allocation
// rows remain but stop counting toward capacity.
func (s *Store) CancelEvent(ctx context.Context, id scheduling.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE events SET status = 'cancelled'
		WHERE id = ? AND status = 'scheduled'`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel event %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return nil
}

// =============================================================================
// EVENT READS
// =============================================================================

// Event is one persisted occurrence with its committed resources.
type Event struct {
	ID          scheduling.EventID
	Title       string
	Description string
	Window      scheduling.TimeWindow
	Status      scheduling.EventStatus
	CreatedBy   string
	Resources   []scheduling.ResourceID
}

// GetEvent loads one event with its resource ids. Returns (nil, nil) when
// the id does not exist.
func (s *Store) GetEvent(ctx context.Context, id scheduling.EventID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(description, ''), start_time, end_time, status, COALESCE(created_by, '')
		FROM events WHERE id = ?`, id)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id FROM event_resources WHERE event_id = ? ORDER BY resource_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var resourceID scheduling.ResourceID
		if err := rows.Scan(&resourceID); err != nil {
			return nil, err
		}
		event.Resources = append(event.Resources, resourceID)
	}
	return event, rows.Err()
}

// ListEvents returns events ordered by start time.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), start_time, end_time, status, COALESCE(created_by, '')
		FROM events ORDER BY start_time LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		event      Event
		start, end string
	)
	err := row.Scan(&event.ID, &event.Title, &event.Description, &start, &end, &event.Status, &event.CreatedBy)
	if err != nil {
		return nil, err
	}
	if event.Window.Start, err = parseTime(start); err != nil {
		return nil, err
	}
	if event.Window.End, err = parseTime(end); err != nil {
		return nil, err
	}
	return &event, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// fmtTime stores timestamps as UTC RFC3339 so lexical comparison in SQL
// matches chronological comparison.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
