// Package budget distributes a bounded daily pool of minutes across visions.
//
// Every operation clamps its input instead of rejecting it, so the invariant
// sum(allocations) <= total holds after any sequence of calls.
package budget

import (
	"sort"

	"dailyvision/internal/domain"
)

// Step is the granularity allocations are rounded down to when rescaled or split.
const Step = 5

// DefaultMaxTotal caps the daily pool at one day of minutes.
const DefaultMaxTotal = 24 * 60

type Allocator struct {
	state    domain.TimeBudgetState
	maxTotal int
}

// New wraps a copy of state. A non-positive maxTotal falls back to DefaultMaxTotal.
func New(state domain.TimeBudgetState, maxTotal int) *Allocator {
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	a := &Allocator{state: clone(state), maxTotal: maxTotal}
	// normalizes stored states that predate a lower cap or were edited by hand
	a.SetTotal(a.state.TotalAvailableMinutes)
	return a
}

// State returns a copy of the current state suitable for persistence.
func (a *Allocator) State() domain.TimeBudgetState {
	return clone(a.state)
}

func (a *Allocator) Total() int { return a.state.TotalAvailableMinutes }

func (a *Allocator) Allocated() int {
	sum := 0
	for _, m := range a.state.Allocations {
		sum += m
	}
	return sum
}

// SetTotal replaces the daily pool. When the current allocations no longer
// fit, each is scaled by newTotal/oldSum and floored to a multiple of Step.
func (a *Allocator) SetTotal(minutes int) {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > a.maxTotal {
		minutes = a.maxTotal
	}
	a.state.TotalAvailableMinutes = minutes
	oldSum := a.Allocated()
	if oldSum <= minutes {
		return
	}
	for id, m := range a.state.Allocations {
		scaled := m * minutes / oldSum
		a.state.Allocations[id] = scaled / Step * Step
	}
}

// SetAllocation stores minutes for one vision, clamped to what the other
// visions leave free.
func (a *Allocator) SetAllocation(visionID string, minutes int) {
	if visionID == "" {
		return
	}
	others := a.Allocated() - a.state.Allocations[visionID]
	ceiling := a.state.TotalAvailableMinutes - others
	if ceiling < 0 {
		ceiling = 0
	}
	if minutes > ceiling {
		minutes = ceiling
	}
	if minutes < 0 {
		minutes = 0
	}
	a.ensureMap()
	a.state.Allocations[visionID] = minutes
}

// AssignEqually replaces all allocations with an equal split over visionIDs.
// The part of the total that does not divide into Step-sized shares goes to
// the first id.
func (a *Allocator) AssignEqually(visionIDs []string) {
	ids := dedupe(visionIDs)
	if len(ids) == 0 {
		return
	}
	total := a.state.TotalAvailableMinutes
	perVision := total / len(ids) / Step * Step
	remainder := total - perVision*len(ids)
	a.state.Allocations = make(map[string]int, len(ids))
	for _, id := range ids {
		a.state.Allocations[id] = perVision
	}
	a.state.Allocations[ids[0]] += remainder
}

// AssignSuggested applies each vision's suggested minutes in priority order.
// Lower-priority visions are clamped to whatever the earlier ones left.
func (a *Allocator) AssignSuggested(visions []domain.Vision) {
	ordered := append([]domain.Vision(nil), visions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })
	a.state.Allocations = make(map[string]int, len(ordered))
	for _, v := range ordered {
		a.SetAllocation(v.ID, v.SuggestedAllocationMinutes)
	}
}

func (a *Allocator) Remove(visionID string) {
	delete(a.state.Allocations, visionID)
}

func (a *Allocator) Remaining() int {
	return a.state.TotalAvailableMinutes - a.Allocated()
}

func (a *Allocator) IsFullyAllocated() bool {
	return a.Remaining() == 0 && a.Allocated() == a.state.TotalAvailableMinutes
}

// ResetIfNewDay clears allocations when today differs from the stored date.
// It reports whether a reset happened.
func (a *Allocator) ResetIfNewDay(today string) bool {
	if a.state.LastUpdatedDate == today {
		return false
	}
	a.state.Allocations = map[string]int{}
	a.state.LastUpdatedDate = today
	return true
}

// Snapshot returns an immutable view ordered by vision id.
func (a *Allocator) Snapshot() domain.AllocationSnapshot {
	snap := domain.AllocationSnapshot{
		Date:                  a.state.LastUpdatedDate,
		TotalAvailableMinutes: a.state.TotalAvailableMinutes,
		Allocations:           make([]domain.Allocation, 0, len(a.state.Allocations)),
	}
	for id, m := range a.state.Allocations {
		snap.Allocations = append(snap.Allocations, domain.Allocation{VisionID: id, Minutes: m})
	}
	sort.Slice(snap.Allocations, func(i, j int) bool {
		return snap.Allocations[i].VisionID < snap.Allocations[j].VisionID
	})
	return snap
}

func (a *Allocator) ensureMap() {
	if a.state.Allocations == nil {
		a.state.Allocations = map[string]int{}
	}
}

func clone(s domain.TimeBudgetState) domain.TimeBudgetState {
	out := s
	out.Allocations = make(map[string]int, len(s.Allocations))
	for k, v := range s.Allocations {
		out.Allocations[k] = v
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
