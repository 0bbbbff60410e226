// Package store provides collaborator-store implementations for the
// scheduling engine.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/allocation-engine/scheduling"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements scheduling.ResourceLookup, scheduling.AllocationQuery
// and scheduling.RuleQuery against in-process maps. Mutation helpers stand
// in for the persistence layer the engine normally sits beside.
type Memory struct {
	mu          sync.RWMutex
	resources   map[scheduling.ResourceID]scheduling.Resource
	allocations map[scheduling.ResourceID][]scheduling.Allocation
	events      map[scheduling.EventID]eventRecord
	constraints []scheduling.Constraint
}

type eventRecord struct {
	Title  string
	Status scheduling.EventStatus
}

func NewMemory() *Memory {
	return &Memory{
		resources:   make(map[scheduling.ResourceID]scheduling.Resource),
		allocations: make(map[scheduling.ResourceID][]scheduling.Allocation),
		events:      make(map[scheduling.EventID]eventRecord),
	}
}

// =============================================================================
// QUERY SIDE (scheduling interfaces)
// =============================================================================

func (m *Memory) Get(_ context.Context, id scheduling.ResourceID) (*scheduling.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res, ok := m.resources[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (m *Memory) Overlapping(_ context.Context, id scheduling.ResourceID, window scheduling.TimeWindow, excludeEventID scheduling.EventID) ([]scheduling.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.Allocation
	for _, a := range m.allocations[id] {
		if excludeEventID != "" && a.EventID == excludeEventID {
			continue
		}
		if m.events[a.EventID].Status != scheduling.StatusScheduled {
			continue
		}
		if window.Overlaps(a.Window) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *Memory) ActiveRules(_ context.Context) ([]scheduling.RuleGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var groups []scheduling.RuleGroup
	for _, c := range m.constraints {
		if !c.IsActive {
			continue
		}
		rules := make([]scheduling.Rule, len(c.Rules))
		copy(rules, c.Rules)
		groups = append(groups, scheduling.RuleGroup{ConstraintID: c.ID, Rules: rules})
	}
	return groups, nil
}

// =============================================================================
// MUTATION SIDE (stands in for the persistence layer)
// =============================================================================

func (m *Memory) PutResource(res scheduling.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[res.ID] = res
}

// PutEvent registers an event so its allocations become visible.
func (m *Memory) PutEvent(id scheduling.EventID, title string, status scheduling.EventStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id] = eventRecord{Title: title, Status: status}
}

// SetEventStatus transitions an event; cancelling removes its allocations
// from the capacity view without deleting rows.
func (m *Memory) SetEventStatus(id scheduling.EventID, status scheduling.EventStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.events[id]
	rec.Status = status
	m.events[id] = rec
}

// PutAllocation records committed units, kept sorted by window start.
func (m *Memory) PutAllocation(a scheduling.Allocation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.events[a.EventID]; ok && a.EventTitle == "" {
		a.EventTitle = rec.Title
	}

	list := m.allocations[a.ResourceID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Window.Start.After(a.Window.Start)
	})
	list = append(list, scheduling.Allocation{})
	copy(list[i+1:], list[i:])
	list[i] = a
	m.allocations[a.ResourceID] = list
}

func (m *Memory) PutConstraint(c scheduling.Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rule := range c.Rules {
		if rule.ConstraintID == "" {
			c.Rules[i].ConstraintID = c.ID
		}
	}
	for i := range m.constraints {
		if m.constraints[i].ID == c.ID {
			m.constraints[i] = c
			return
		}
	}
	m.constraints = append(m.constraints, c)
}
