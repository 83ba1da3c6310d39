package engine

import (
	"context"
	"fmt"

	"dailyvision/internal/domain"
	"dailyvision/internal/events"
	"dailyvision/internal/repo"
	"dailyvision/internal/victory"
)

// RecordCompletion records today's victory directly. It returns nil when
// today already has a record or the input cannot form one.
func (e Engine) RecordCompletion(ctx context.Context, userID string, completed, total, seconds int) (*domain.VictoryRecord, error) {
	today := e.Today()
	var rec *domain.VictoryRecord
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		var err error
		rec, err = e.recordVictory(ctx, s, userID, today, completed, total, seconds)
		return err
	})
	return rec, err
}

// Ledger loads the user's ledger with streak decay applied for today.
func (e Engine) Ledger(ctx context.Context, userID string) (domain.VictoryLedger, error) {
	today := e.Today()
	var out domain.VictoryLedger
	err := e.Store.WithTx(ctx, func(s repo.Store) error {
		state, err := s.GetLedger(ctx, userID)
		if err != nil {
			return err
		}
		l := victory.New(state)
		prev := state.CurrentStreak
		if l.CheckStreakDecay(today) {
			if err := s.PutLedger(ctx, userID, l.State()); err != nil {
				return err
			}
			if err := e.events().Append(ctx, s, events.StreakReset, userID, "victory", today, events.EventPayload{
				"previous_streak":     prev,
				"last_completed_date": state.LastCompletedDate,
			}); err != nil {
				return err
			}
		}
		out = l.State()
		return nil
	})
	return out, err
}

func (e Engine) Stats(ctx context.Context, userID string) (domain.VictoryStats, error) {
	state, err := e.Ledger(ctx, userID)
	if err != nil {
		return domain.VictoryStats{}, err
	}
	return victory.New(state).Stats(), nil
}

// Recent returns the last n victory records, most recent first.
func (e Engine) Recent(ctx context.Context, userID string, n int) ([]domain.VictoryRecord, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: n must not be negative", ErrInvalid)
	}
	state, err := e.Store.GetLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	return victory.New(state).Recent(n), nil
}
