// Package victory keeps the once-per-day completion history and the streak
// derived from it.
package victory

import (
	"dailyvision/internal/domain"
)

type Ledger struct {
	state domain.VictoryLedger
}

func New(state domain.VictoryLedger) *Ledger {
	out := state
	out.History = append([]domain.VictoryRecord(nil), state.History...)
	return &Ledger{state: out}
}

// State returns a copy for persistence.
func (l *Ledger) State() domain.VictoryLedger {
	out := l.state
	out.History = append([]domain.VictoryRecord(nil), l.state.History...)
	if out.History == nil {
		out.History = []domain.VictoryRecord{}
	}
	return out
}

// Has reports whether date already carries a record.
func (l *Ledger) Has(date string) bool {
	if l.state.LastCompletedDate == date {
		return true
	}
	for _, r := range l.state.History {
		if r.Date == date {
			return true
		}
	}
	return false
}

// CheckStreakDecay zeroes the streak when more than one calendar day has
// passed since the last completion. History and TotalDays are untouched.
// It reports whether the streak was reset.
func (l *Ledger) CheckStreakDecay(today string) bool {
	last := l.state.LastCompletedDate
	if last == "" || last == today || l.state.CurrentStreak == 0 {
		return false
	}
	gap, err := domain.DaysBetween(last, today)
	if err != nil {
		return false
	}
	// a negative gap means the clock moved backwards; the streak cannot be trusted
	if gap > 1 || gap < 0 {
		l.state.CurrentStreak = 0
		return true
	}
	return false
}

// Record appends today's victory. It is a no-op, returning false, when today
// already has a record, when totalActions is not positive, or when today is
// earlier than the last recorded date.
func (l *Ledger) Record(actionsCompleted, totalActions, timeSpentSeconds int, today string) (domain.VictoryRecord, bool) {
	if totalActions <= 0 || l.Has(today) {
		return domain.VictoryRecord{}, false
	}
	if _, err := domain.ParseDate(today); err != nil {
		return domain.VictoryRecord{}, false
	}
	if l.state.LastCompletedDate != "" && today < l.state.LastCompletedDate {
		return domain.VictoryRecord{}, false
	}
	if actionsCompleted < 0 {
		actionsCompleted = 0
	}
	if actionsCompleted > totalActions {
		actionsCompleted = totalActions
	}
	if timeSpentSeconds < 0 {
		timeSpentSeconds = 0
	}

	l.CheckStreakDecay(today)
	streak := 1
	if l.state.LastCompletedDate == domain.PreviousDate(today) {
		streak = l.state.CurrentStreak + 1
	}

	rec := domain.VictoryRecord{
		Date:             today,
		DayNumber:        l.state.TotalDays + 1,
		ActionsCompleted: actionsCompleted,
		TotalActions:     totalActions,
		TimeSpentSeconds: timeSpentSeconds,
	}
	l.state.History = append(l.state.History, rec)
	l.state.LastCompletedDate = today
	l.state.TotalDays++
	l.state.CurrentStreak = streak
	return rec, true
}

// Recent returns the last n records, most recent first.
func (l *Ledger) Recent(n int) []domain.VictoryRecord {
	h := l.state.History
	if n <= 0 || len(h) == 0 {
		return []domain.VictoryRecord{}
	}
	if n > len(h) {
		n = len(h)
	}
	out := make([]domain.VictoryRecord, 0, n)
	for i := len(h) - 1; i >= len(h)-n; i-- {
		out = append(out, h[i])
	}
	return out
}

// Stats derives the summary numbers from history. CompletionRate is the
// fraction of all generated actions that were completed on victory days.
func (l *Ledger) Stats() domain.VictoryStats {
	st := domain.VictoryStats{
		CurrentStreak: l.state.CurrentStreak,
		TotalDays:     len(l.state.History),
		BestStreak:    bestStreak(l.state.History),
	}
	var seconds, completed, total int
	for _, r := range l.state.History {
		seconds += r.TimeSpentSeconds
		completed += r.ActionsCompleted
		total += r.TotalActions
	}
	st.TotalTimeSpentMinutes = seconds / 60
	if len(l.state.History) > 0 {
		st.AverageActionsPerDay = float64(completed) / float64(len(l.state.History))
	}
	if total > 0 {
		st.CompletionRate = float64(completed) / float64(total)
	}
	return st
}

// StreakFromHistory recomputes the current streak as of today from history
// alone. It must agree with the maintained streak once CheckStreakDecay(today)
// has run.
func (l *Ledger) StreakFromHistory(today string) int {
	h := l.state.History
	if len(h) == 0 {
		return 0
	}
	last := h[len(h)-1].Date
	gap, err := domain.DaysBetween(last, today)
	if err != nil || gap > 1 || gap < 0 {
		return 0
	}
	streak := 1
	for i := len(h) - 1; i > 0; i-- {
		if domain.PreviousDate(h[i].Date) != h[i-1].Date {
			break
		}
		streak++
	}
	return streak
}

func bestStreak(history []domain.VictoryRecord) int {
	best, run := 0, 0
	for i, r := range history {
		if i > 0 && domain.PreviousDate(r.Date) == history[i-1].Date {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}
