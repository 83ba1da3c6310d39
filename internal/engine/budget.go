package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dailyvision/internal/budget"
	"dailyvision/internal/domain"
	"dailyvision/internal/events"
	"dailyvision/internal/repo"
)

// AllocateRequest edits today's budget. Steps run in field order: total,
// then an equal or suggested split, then per-vision edits.
type AllocateRequest struct {
	Total       *int
	Equal       bool
	Suggested   bool
	Allocations map[string]int
}

// loadAllocator returns the user's allocator for today. The bool reports
// whether the stored state changed (first use or day rollover).
func (e Engine) loadAllocator(ctx context.Context, s repo.Store, userID, today string) (*budget.Allocator, bool, error) {
	st, err := s.GetBudget(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		a := budget.New(domain.TimeBudgetState{TotalAvailableMinutes: e.defaultTotal(), LastUpdatedDate: today}, e.maxTotal())
		return a, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	a := budget.New(st, e.maxTotal())
	return a, a.ResetIfNewDay(today), nil
}

// Budget returns today's allocation snapshot, clearing allocations left over
// from an earlier day.
func (e Engine) Budget(ctx context.Context, userID string) (domain.AllocationSnapshot, error) {
	today := e.Today()
	var snap domain.AllocationSnapshot
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		a, changed, err := e.loadAllocator(ctx, s, userID, today)
		if err != nil {
			return err
		}
		if changed {
			if err := s.PutBudget(ctx, userID, a.State()); err != nil {
				return err
			}
		}
		snap = a.Snapshot()
		return nil
	})
	return snap, err
}

func (e Engine) Allocate(ctx context.Context, userID string, req AllocateRequest) (domain.AllocationSnapshot, error) {
	if req.Equal && req.Suggested {
		return domain.AllocationSnapshot{}, fmt.Errorf("%w: equal and suggested splits are exclusive", ErrInvalid)
	}
	today := e.Today()
	var snap domain.AllocationSnapshot
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		visions, err := s.ListVisions(ctx, userID)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(visions))
		ids := make([]string, 0, len(visions))
		for _, v := range visions {
			known[v.ID] = true
			ids = append(ids, v.ID)
		}
		edits := make([]string, 0, len(req.Allocations))
		for id := range req.Allocations {
			if !known[id] {
				return fmt.Errorf("%w: unknown vision id %s", ErrInvalid, id)
			}
			edits = append(edits, id)
		}
		sort.Strings(edits)

		a, _, err := e.loadAllocator(ctx, s, userID, today)
		if err != nil {
			return err
		}
		if req.Total != nil {
			a.SetTotal(*req.Total)
		}
		switch {
		case req.Equal:
			a.AssignEqually(ids)
		case req.Suggested:
			a.AssignSuggested(visions)
		}
		for _, id := range edits {
			a.SetAllocation(id, req.Allocations[id])
		}
		if err := s.PutBudget(ctx, userID, a.State()); err != nil {
			return err
		}
		snap = a.Snapshot()
		return e.events().Append(ctx, s, events.BudgetUpdated, userID, "budget", userID, events.EventPayload{
			"total":       snap.TotalAvailableMinutes,
			"allocations": snap.Map(),
			"date":        snap.Date,
		})
	})
	return snap, err
}
