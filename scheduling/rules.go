/*
rules.go - Rule-based co-requirement/exclusion checking

PURPOSE:
  Decides whether a candidate resource-id set is internally consistent
  with all active rule sets, independent of time. A "requires" rule fires
  when its related resource is absent from the set; an "excludes" rule
  fires when it is present.

DIRECTIONALITY:
  Rules are NOT symmetric by construction. A rule is only evaluated when
  its subject resource is in the candidate set; if projector-requires-room
  should also mean room-requires-projector, that reverse rule must be
  declared explicitly. Callers rely on directional rules, so this engine
  preserves the asymmetry faithfully.

CAPACITY-STYLE RULES:
  max_capacity and min_quantity are recognized in the data model but
  intentionally unevaluated here: they need a per-occurrence head-count
  that this layer does not receive. This is a documented gap, not an
  oversight. Definitions round-trip through storage untouched.

MALFORMED RULES:
  A requires/excludes rule without a related resource cannot be evaluated.
  It is skipped and logged; one bad row must not abort a whole validation.

SEE ALSO:
  - batch.go: Runs this engine exactly once per batch
  - types.go: Rule, Constraint, Violation definitions
*/
package scheduling

import (
	"context"
	"fmt"
	"log"
)

// =============================================================================
// RULE ENGINE
// =============================================================================

// RuleEngine is the Constraint Engine. Time-independent and read-only.
type RuleEngine struct {
	Rules RuleQuery

	// Logger receives warnings about skipped malformed rules.
	// Nil means log.Default().
	Logger *log.Logger
}

func NewRuleEngine(rules RuleQuery) *RuleEngine {
	return &RuleEngine{Rules: rules}
}

// ValidateResources evaluates the candidate set against all rules of all
// active constraints and returns every violation found. An empty result
// means the set is fully consistent. The engine never short-circuits:
// all rules are evaluated so the caller can report all problems together.
func (e *RuleEngine) ValidateResources(ctx context.Context, resourceIDs []ResourceID) ([]Violation, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	groups, err := e.Rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: active rules: %v", ErrStoreUnavailable, err)
	}

	inSet := make(map[ResourceID]bool, len(resourceIDs))
	for _, id := range resourceIDs {
		inSet[id] = true
	}

	var violations []Violation
	for _, group := range groups {
		for _, id := range resourceIDs {
			for _, rule := range group.Rules {
				if rule.ResourceID != id {
					continue
				}
				if v := e.evaluate(rule, inSet); v != nil {
					violations = append(violations, *v)
				}
			}
		}
	}
	return violations, nil
}

// CanUseTogether is a convenience wrapper answering yes/no with the
// violation messages.
func (e *RuleEngine) CanUseTogether(ctx context.Context, resourceIDs []ResourceID) (bool, []string, error) {
	violations, err := e.ValidateResources(ctx, resourceIDs)
	if err != nil {
		return false, nil, err
	}
	if len(violations) == 0 {
		return true, nil, nil
	}
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.Message
	}
	return false, messages, nil
}

// evaluate applies one rule to the candidate set. Returns nil when the
// rule is satisfied, unevaluated, or malformed (malformed rules are
// skipped and logged).
func (e *RuleEngine) evaluate(rule Rule, inSet map[ResourceID]bool) *Violation {
	switch rule.Type {
	case RuleRequires:
		if rule.RelatedResourceID == "" {
			e.skip(rule, "missing related resource")
			return nil
		}
		if !inSet[rule.RelatedResourceID] {
			return &Violation{
				Kind: ViolationMissingRequirement,
				Message: fmt.Sprintf("resource %s requires resource %s",
					rule.ResourceID, rule.RelatedResourceID),
				ResourceID:        rule.ResourceID,
				RelatedResourceID: rule.RelatedResourceID,
				ConstraintID:      rule.ConstraintID,
			}
		}

	case RuleExcludes:
		if rule.RelatedResourceID == "" {
			e.skip(rule, "missing related resource")
			return nil
		}
		if inSet[rule.RelatedResourceID] {
			return &Violation{
				Kind: ViolationMutualExclusion,
				Message: fmt.Sprintf("resource %s excludes resource %s",
					rule.ResourceID, rule.RelatedResourceID),
				ResourceID:        rule.ResourceID,
				RelatedResourceID: rule.RelatedResourceID,
				ConstraintID:      rule.ConstraintID,
			}
		}

	case RuleMaxCapacity, RuleMinQuantity:
		// Unevaluated: needs per-occurrence head-count (see file header).

	default:
		e.skip(rule, "unknown rule type")
	}
	return nil
}

func (e *RuleEngine) skip(rule Rule, detail string) {
	logger := e.Logger
	if logger == nil {
		logger = log.Default()
	}
	ruleErr := &RuleDataError{
		ConstraintID: rule.ConstraintID,
		ResourceID:   rule.ResourceID,
		Type:         rule.Type,
		Detail:       detail,
	}
	logger.Printf("scheduling: skipping rule: %v", ruleErr)
}
