package engine

import (
	"context"
	"fmt"
	"time"

	"dailyvision/internal/domain"
	"dailyvision/internal/events"
	"dailyvision/internal/generate"
	"dailyvision/internal/repo"
	"dailyvision/internal/timer"
	"dailyvision/internal/victory"
)

type ActionsResult struct {
	Date      string               `json:"date"`
	Actions   []domain.DailyAction `json:"actions"`
	Generated bool                 `json:"generated"`
	Source    generate.Source      `json:"source,omitempty"`
	Cached    bool                 `json:"cached"`
	Reason    string               `json:"reason,omitempty"`
}

// GenerateActions asks the generator for actions covering visions with a
// positive allocation in snap.
func (e Engine) GenerateActions(ctx context.Context, visions []domain.Vision, snap domain.AllocationSnapshot, identity string) generate.Result {
	allocations := snap.Map()
	eligible := make([]domain.Vision, 0, len(visions))
	for _, v := range visions {
		if allocations[v.ID] > 0 {
			eligible = append(eligible, v)
		}
	}
	if len(eligible) == 0 {
		return generate.Result{Actions: []domain.DailyAction{}, Source: generate.SourceFallback, Reason: "no allocated visions"}
	}
	return e.Generator.Generate(ctx, eligible, identity, allocations)
}

func freshFor(actions []domain.DailyAction, today string) bool {
	if len(actions) == 0 {
		return false
	}
	for _, a := range actions {
		if a.Date != today {
			return false
		}
	}
	return true
}

// DailyActions returns today's actions, generating a new list when the stored
// one belongs to another day or regenerate is set.
func (e Engine) DailyActions(ctx context.Context, userID string, regenerate bool) (ActionsResult, error) {
	today := e.Today()
	var (
		visions []domain.Vision
		snap    domain.AllocationSnapshot
		current []domain.DailyAction
	)
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		var err error
		if current, err = s.ListDailyActions(ctx, userID); err != nil {
			return err
		}
		if !regenerate && freshFor(current, today) {
			return nil
		}
		if visions, err = s.ListVisions(ctx, userID); err != nil {
			return err
		}
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
	if err != nil {
		return ActionsResult{}, err
	}
	if !regenerate && freshFor(current, today) {
		return ActionsResult{Date: today, Actions: current}, nil
	}

	// the backend call happens outside any transaction
	res := e.GenerateActions(ctx, visions, snap, userID)
	actions := make([]domain.DailyAction, len(res.Actions))
	for i, a := range res.Actions {
		a.Date = today
		a.Status = domain.ActionPending
		a.ActualTimeMinutes = nil
		actions[i] = a
	}

	out := ActionsResult{Date: today, Actions: actions, Generated: true, Source: res.Source, Cached: res.Cached, Reason: res.Reason}
	err = e.Store.WithTx(ctx, func(s repo.Store) error {
		if !regenerate {
			existing, err := s.ListDailyActions(ctx, userID)
			if err != nil {
				return err
			}
			if freshFor(existing, today) {
				e.logger().Printf("actions: %s got actions for %s from a concurrent request, discarding this generation", userID, today)
				out = ActionsResult{Date: today, Actions: existing}
				return nil
			}
		}
		if err := s.ReplaceDailyActions(ctx, userID, actions); err != nil {
			return err
		}
		if err := s.ReplaceTimingSessions(ctx, userID, nil); err != nil {
			return err
		}
		return e.events().Append(ctx, s, events.ActionsGenerated, userID, "daily_actions", today, events.EventPayload{
			"count":  len(actions),
			"source": res.Source,
			"cached": res.Cached,
			"reason": res.Reason,
		})
	})
	if err != nil {
		return ActionsResult{}, err
	}
	return out, nil
}

func findAction(actions []domain.DailyAction, id string) (int, error) {
	for i, a := range actions {
		if a.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("action %s: %w", id, repo.ErrNotFound)
}

// todaysAction loads an action that belongs to today and is still open.
func (e Engine) todaysAction(ctx context.Context, s repo.Store, userID, actionID, today string) ([]domain.DailyAction, int, error) {
	actions, err := s.ListDailyActions(ctx, userID)
	if err != nil {
		return nil, -1, err
	}
	idx, err := findAction(actions, actionID)
	if err != nil {
		return nil, -1, err
	}
	if actions[idx].Date != today {
		return nil, -1, fmt.Errorf("%w: action %s belongs to %s", ErrConflict, actionID, actions[idx].Date)
	}
	if actions[idx].Done() {
		return nil, -1, fmt.Errorf("%w: action %s is already %s", ErrConflict, actionID, actions[idx].Status)
	}
	return actions, idx, nil
}

func ceilMinutes(seconds int) int {
	return (seconds + 59) / 60
}

func (e Engine) StartTimer(ctx context.Context, userID, actionID string) (domain.TimingSession, error) {
	today := e.Today()
	now := e.now().UTC()
	var started domain.TimingSession
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		actions, idx, err := e.todaysAction(ctx, s, userID, actionID, today)
		if err != nil {
			return err
		}
		sessions, err := s.ListTimingSessions(ctx, userID)
		if err != nil {
			return err
		}
		sessions, started = timer.Start(sessions, actionID, now)
		if err := s.ReplaceTimingSessions(ctx, userID, sessions); err != nil {
			return err
		}
		a := actions[idx]
		a.Status = domain.ActionInProgress
		if err := s.UpdateDailyAction(ctx, userID, a); err != nil {
			return err
		}
		return e.events().Append(ctx, s, events.ActionStarted, userID, "action", actionID, nil)
	})
	return started, err
}

func (e Engine) StopTimer(ctx context.Context, userID, actionID string) (domain.TimingSession, error) {
	today := e.Today()
	now := e.now().UTC()
	var stopped domain.TimingSession
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		actions, idx, err := e.todaysAction(ctx, s, userID, actionID, today)
		if err != nil {
			return err
		}
		sessions, err := s.ListTimingSessions(ctx, userID)
		if err != nil {
			return err
		}
		var ok bool
		sessions, stopped, ok = timer.Stop(sessions, actionID, now)
		if !ok {
			return fmt.Errorf("%w: no timer running for action %s", ErrConflict, actionID)
		}
		if err := s.ReplaceTimingSessions(ctx, userID, sessions); err != nil {
			return err
		}
		a := actions[idx]
		mins := ceilMinutes(timer.TotalSeconds(sessions, actionID, now))
		a.ActualTimeMinutes = &mins
		if err := s.UpdateDailyAction(ctx, userID, a); err != nil {
			return err
		}
		return e.events().Append(ctx, s, events.ActionStopped, userID, "action", actionID, events.EventPayload{
			"duration_seconds": *stopped.DurationSeconds,
		})
	})
	return stopped, err
}

// TimerPhase reports the timer phase of one action.
func (e Engine) TimerPhase(ctx context.Context, userID, actionID string) (timer.Phase, error) {
	sessions, err := e.Store.ListTimingSessions(ctx, userID)
	if err != nil {
		return "", err
	}
	return timer.PhaseOf(sessions, actionID), nil
}

type CompleteResult struct {
	Action  domain.DailyAction    `json:"action"`
	Victory *domain.VictoryRecord `json:"victory,omitempty"`
}

// CompleteAction marks an action completed. actualMinutes overrides the
// timed duration when set. Finishing the last open action of the day
// records the day's victory.
func (e Engine) CompleteAction(ctx context.Context, userID, actionID string, actualMinutes *int) (CompleteResult, error) {
	return e.finishAction(ctx, userID, actionID, domain.ActionCompleted, actualMinutes)
}

// SkipAction marks an action skipped. A day where every action was skipped
// earns no victory.
func (e Engine) SkipAction(ctx context.Context, userID, actionID string) (CompleteResult, error) {
	return e.finishAction(ctx, userID, actionID, domain.ActionSkipped, nil)
}

func (e Engine) finishAction(ctx context.Context, userID, actionID string, status domain.ActionStatus, actualMinutes *int) (CompleteResult, error) {
	if actualMinutes != nil && *actualMinutes < 0 {
		return CompleteResult{}, fmt.Errorf("%w: actual minutes must not be negative", ErrInvalid)
	}
	today := e.Today()
	now := e.now().UTC()
	var out CompleteResult
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		actions, idx, err := e.todaysAction(ctx, s, userID, actionID, today)
		if err != nil {
			return err
		}
		sessions, err := s.ListTimingSessions(ctx, userID)
		if err != nil {
			return err
		}
		if timer.PhaseOf(sessions, actionID) == timer.Running {
			sessions, _, _ = timer.Stop(sessions, actionID, now)
			if err := s.ReplaceTimingSessions(ctx, userID, sessions); err != nil {
				return err
			}
		}

		a := actions[idx]
		a.Status = status
		switch {
		case actualMinutes != nil:
			m := *actualMinutes
			a.ActualTimeMinutes = &m
		case timer.PhaseOf(sessions, actionID) != timer.Idle:
			m := ceilMinutes(timer.TotalSeconds(sessions, actionID, now))
			a.ActualTimeMinutes = &m
		}
		if err := s.UpdateDailyAction(ctx, userID, a); err != nil {
			return err
		}
		actions[idx] = a
		out.Action = a

		evt := events.ActionCompleted
		if status == domain.ActionSkipped {
			evt = events.ActionSkipped
		}
		if err := e.events().Append(ctx, s, evt, userID, "action", actionID, events.EventPayload{
			"actual_minutes": a.ActualTimeMinutes,
		}); err != nil {
			return err
		}

		completed, open := 0, 0
		for _, cur := range actions {
			switch {
			case cur.Status == domain.ActionCompleted:
				completed++
			case !cur.Done():
				open++
			}
		}
		if open > 0 || completed == 0 {
			return nil
		}
		rec, err := e.recordVictory(ctx, s, userID, today, completed, len(actions), daySeconds(actions, sessions, now))
		if err != nil {
			return err
		}
		out.Victory = rec
		return nil
	})
	return out, err
}

// daySeconds sums the time spent on today's actions. Actions that were never
// timed count their reported minutes.
func daySeconds(actions []domain.DailyAction, sessions []domain.TimingSession, now time.Time) int {
	total := 0
	for _, a := range actions {
		if a.Status != domain.ActionCompleted {
			continue
		}
		secs := timer.TotalSeconds(sessions, a.ID, now)
		if secs == 0 && a.ActualTimeMinutes != nil {
			secs = *a.ActualTimeMinutes * 60
		}
		total += secs
	}
	return total
}

func (e Engine) recordVictory(ctx context.Context, s repo.Store, userID, today string, completed, total, seconds int) (*domain.VictoryRecord, error) {
	state, err := s.GetLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	l := victory.New(state)
	rec, ok := l.Record(completed, total, seconds, today)
	if !ok {
		return nil, nil
	}
	if err := s.PutLedger(ctx, userID, l.State()); err != nil {
		return nil, err
	}
	if err := e.events().Append(ctx, s, events.VictoryRecorded, userID, "victory", today, events.EventPayload{
		"day_number": rec.DayNumber,
		"streak":     l.State().CurrentStreak,
		"completed":  rec.ActionsCompleted,
		"total":      rec.TotalActions,
		"seconds":    rec.TimeSpentSeconds,
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}
