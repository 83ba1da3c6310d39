package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"dailyvision/internal/budget"
	"dailyvision/internal/domain"
	"dailyvision/internal/events"
	"dailyvision/internal/repo"
)

type VisionInput struct {
	Category                   domain.Category
	Description                string
	SuggestedAllocationMinutes int
}

// AddVision appends a vision with the lowest priority.
func (e Engine) AddVision(ctx context.Context, userID string, in VisionInput) (domain.Vision, error) {
	if !in.Category.Valid() {
		return domain.Vision{}, fmt.Errorf("%w: category %q", ErrInvalid, in.Category)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return domain.Vision{}, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if in.SuggestedAllocationMinutes < 0 {
		in.SuggestedAllocationMinutes = 0
	}
	v := domain.Vision{
		ID:                         ulid.MustNew(ulid.Timestamp(e.now()), rand.Reader).String(),
		Category:                   in.Category,
		Description:                desc,
		SuggestedAllocationMinutes: in.SuggestedAllocationMinutes,
	}
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		existing, err := s.ListVisions(ctx, userID)
		if err != nil {
			return err
		}
		v.Priority = 1
		for _, cur := range existing {
			if cur.Priority >= v.Priority {
				v.Priority = cur.Priority + 1
			}
		}
		if err := s.PutVision(ctx, userID, v); err != nil {
			return fmt.Errorf("insert vision: %w", err)
		}
		return e.events().Append(ctx, s, events.VisionAdded, userID, "vision", v.ID, events.EventPayload{
			"category": v.Category, "priority": v.Priority,
		})
	})
	if err != nil {
		return domain.Vision{}, err
	}
	return v, nil
}

func (e Engine) ListVisions(ctx context.Context, userID string) ([]domain.Vision, error) {
	return e.Store.ListVisions(ctx, userID)
}

// RemoveVision deletes a vision and its allocation. Remaining priorities keep
// their values.
func (e Engine) RemoveVision(ctx context.Context, userID, id string) error {
	return e.Store.WithTx(ctx, func(s repo.Store) error {
		if err := s.DeleteVision(ctx, userID, id); err != nil {
			return err
		}
		st, err := s.GetBudget(ctx, userID)
		switch {
		case err == nil:
			a := budget.New(st, e.maxTotal())
			a.Remove(id)
			if err := s.PutBudget(ctx, userID, a.State()); err != nil {
				return err
			}
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
		return e.events().Append(ctx, s, events.VisionRemoved, userID, "vision", id, nil)
	})
}

// ReorderVisions renumbers priorities 1..n in the given order. ids must name
// every vision of the user exactly once.
func (e Engine) ReorderVisions(ctx context.Context, userID string, ids []string) ([]domain.Vision, error) {
	var out []domain.Vision
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		existing, err := s.ListVisions(ctx, userID)
		if err != nil {
			return err
		}
		if len(ids) != len(existing) {
			return fmt.Errorf("%w: reorder needs all %d vision ids, got %d", ErrInvalid, len(existing), len(ids))
		}
		byID := make(map[string]domain.Vision, len(existing))
		for _, v := range existing {
			byID[v.ID] = v
		}
		out = make([]domain.Vision, 0, len(ids))
		for i, id := range ids {
			v, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: unknown or repeated vision id %s", ErrInvalid, id)
			}
			delete(byID, id)
			v.Priority = i + 1
			if err := s.PutVision(ctx, userID, v); err != nil {
				return err
			}
			out = append(out, v)
		}
		return e.events().Append(ctx, s, events.VisionsReordered, userID, "vision", "", events.EventPayload{"order": ids})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
