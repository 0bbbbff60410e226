/*
Package scheduling provides the allocation validation engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for deciding
  whether finite, quantity-limited resources (rooms, equipment, people) can
  be committed to time-bounded events. It combines interval-overlap capacity
  accounting, a rule-based co-requirement/exclusion checker, and the
  all-or-nothing batch validation needed for recurring events.

KEY CONCEPTS IN THIS FILE (types.go):
  - Resource: A bookable thing with a total quantity and an active flag
  - Allocation: Units of a resource committed to one scheduled event
  - Rule/Constraint: Relational business rules between resources
  - Violation: A business-rule failure (Constraint Engine output)
  - ConflictDetail: A capacity/overlap failure (Conflict Engine output)

DESIGN PRINCIPLES:
  1. Read-only: The engine never mutates stores; it only queries them
  2. Fail closed: Missing resources and store failures count as conflicts
  3. Data, not panics: Violations and conflicts are plain values; only
     infrastructure failures travel on the error channel
  4. Completeness: Checks never short-circuit a candidate set, so callers
     can report every problem at once

USAGE:
  checker := &scheduling.ConflictChecker{Resources: res, Allocations: alloc}
  detail, err := checker.CheckResource(ctx, scheduling.ConflictCheck{
      ResourceID: "room-1",
      Window:     scheduling.NewWindow(start, end),
  })

SEE ALSO:
  - window.go: TimeWindow and the half-open overlap predicate
  - conflict.go: Capacity conflict detection
  - rules.go: Co-requirement/exclusion rule evaluation
  - batch.go: All-or-nothing validation for recurring events
*/
package scheduling

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ResourceID string
type EventID string
type ConstraintID string

// =============================================================================
// RESOURCE - Finite, quantity-limited bookable thing
// =============================================================================

// Resource is a bookable thing owned by the resource store.
// The engine reads resources; it never mutates them.
type Resource struct {
	ID          ResourceID
	Name        string
	Description string
	Type        string // e.g. "room", "equipment", "person"
	Quantity    int    // total units when fully unreserved, >= 0
	IsActive    bool
}

// =============================================================================
// EVENT STATUS - Only scheduled events hold capacity
// =============================================================================

type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusCancelled EventStatus = "cancelled"
	StatusCompleted EventStatus = "completed"
)

// =============================================================================
// ALLOCATION - Committed reservation of resource units
// =============================================================================

// Allocation records quantity of a resource committed to one scheduled
// event for the duration of its window. Allocations of cancelled or
// completed events do not count toward capacity.
type Allocation struct {
	ResourceID   ResourceID
	EventID      EventID
	EventTitle   string
	Window       TimeWindow
	QuantityUsed int
}

// =============================================================================
// RULES - Directional relational constraints between resources
// =============================================================================

type RuleType string

const (
	RuleRequires    RuleType = "requires"     // subject needs related resource in the same set
	RuleExcludes    RuleType = "excludes"     // subject cannot share a set with related resource
	RuleMaxCapacity RuleType = "max_capacity" // recognized but not evaluated (see rules.go)
	RuleMinQuantity RuleType = "min_quantity" // recognized but not evaluated (see rules.go)
)

// Rule is a single directional constraint attached to one resource.
// A rule fires only when its subject ResourceID is in the candidate set;
// bidirectional behavior requires declaring the reverse rule explicitly.
type Rule struct {
	ConstraintID      ConstraintID
	ResourceID        ResourceID // subject
	Type              RuleType
	RelatedResourceID ResourceID // required for requires/excludes
	Value             *int       // used by capacity-style rules
}

// Constraint is a named group of rules. Only rules belonging to active
// constraints are evaluated. Grouping affects provenance in reported
// violations, not evaluation: each rule stands alone.
type Constraint struct {
	ID          ConstraintID
	Name        string
	Description string
	IsActive    bool
	Rules       []Rule
}

// RuleGroup is the evaluation view of one active constraint.
type RuleGroup struct {
	ConstraintID ConstraintID
	Rules        []Rule
}

// =============================================================================
// VIOLATION - Business-rule failure (Constraint Engine output)
// =============================================================================

type ViolationKind string

const (
	ViolationMissingRequirement ViolationKind = "missing_requirement"
	ViolationMutualExclusion    ViolationKind = "mutual_exclusion"
)

type Violation struct {
	Kind              ViolationKind
	Message           string
	ResourceID        ResourceID
	RelatedResourceID ResourceID
	ConstraintID      ConstraintID // provenance
}

// =============================================================================
// CONFLICT DETAIL - Capacity/overlap failure (Conflict Engine output)
// =============================================================================

type ConflictDetail struct {
	ResourceID        ResourceID
	ResourceName      string
	TotalCapacity     int
	CurrentUsage      int
	RequestedQuantity int
	AvailableQuantity int

	// Reason is a short human-readable cause: "insufficient capacity",
	// "resource not found", "resource inactive", "resource store
	// unavailable", "allocation store unavailable".
	Reason string

	// ConflictingAllocations lists every scheduled allocation overlapping
	// the requested window.
	ConflictingAllocations []Allocation
}

// AggregateResult is the outcome of checking a full candidate set against
// one time window. Every resource is evaluated; nothing short-circuits.
type AggregateResult struct {
	HasConflict          bool
	ConflictingResources []ResourceID
	Conflicts            []ConflictDetail
	ResourcesChecked     int
	ConflictingCount     int
}

// =============================================================================
// BATCH RESULT - All-or-nothing decision for recurring events
// =============================================================================

type RejectionReason string

const (
	RejectedByRules    RejectionReason = "rules"
	RejectedByConflict RejectionReason = "conflict"
)

// BatchResult is the single accept/reject decision for a candidate set
// validated against a list of occurrence windows. A rejection at any stage
// means the caller must create nothing.
type BatchResult struct {
	Accepted bool
	Reason   RejectionReason // empty when accepted

	// Rule rejections
	Violations []Violation

	// Conflict rejections
	OccurrenceIndex int // 0-based index of the failing window, -1 otherwise
	Conflicts       *AggregateResult

	OccurrencesChecked int
}

// =============================================================================
// SLOT RESULT - Output of the availability search
// =============================================================================

type SlotResult struct {
	Available bool
	Window    TimeWindow
	Reason    string

	// Set when a swept candidate was selected (not the desired window).
	DayOffset int
	Hour      int

	// DaysChecked reports how many days the sweep covered before giving up.
	DaysChecked int
}
