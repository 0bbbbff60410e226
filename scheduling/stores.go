/*
stores.go - Narrow collaborator contracts consumed by the engine

PURPOSE:
  The engine is read-only. It consumes three small query interfaces and
  returns plain structured values; persistence and record CRUD live behind
  these contracts and are mutated elsewhere, only after validation accepts.

KEY INTERFACES:
  ResourceLookup:  existence, quantity, active flag
  AllocationQuery: scheduled allocations intersecting a window
  RuleQuery:       rules of active constraints, grouped by constraint

IMPLEMENTATIONS:
  - scheduling/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go:     Production SQLite

SEE ALSO:
  - conflict.go, rules.go: Engine components built on these contracts
*/
package scheduling

import "context"

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// ResourceLookup answers resource existence and capacity questions.
type ResourceLookup interface {
	// Get returns the resource, or (nil, nil) when the id does not exist.
	Get(ctx context.Context, id ResourceID) (*Resource, error)
}

// AllocationQuery exposes the committed-allocation view of the ledger.
type AllocationQuery interface {
	// Overlapping returns allocations of scheduled events whose window
	// intersects the given one under half-open semantics, excluding the
	// given event id when non-empty. Exclusion supports edit-in-place
	// checks: an event must not conflict with itself.
	Overlapping(ctx context.Context, id ResourceID, window TimeWindow, excludeEventID EventID) ([]Allocation, error)
}

// RuleQuery loads the rules of active constraints.
type RuleQuery interface {
	// ActiveRules returns rules grouped by constraint, in a stable order.
	// Rules of inactive constraints are never returned.
	ActiveRules(ctx context.Context) ([]RuleGroup, error)
}
