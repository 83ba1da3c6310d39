package repo

import (
	"context"
	"sort"
	"sync"

	"dailyvision/internal/domain"
)

// Memory is an in-process Store. It keeps nothing across restarts.
type Memory struct {
	mu   *sync.RWMutex
	data *memData
	inTx bool
}

type memData struct {
	visions  map[string]map[string]domain.Vision
	budgets  map[string]domain.TimeBudgetState
	actions  map[string][]domain.DailyAction
	sessions map[string][]domain.TimingSession
	ledgers  map[string]domain.VictoryLedger
	events   []domain.Event
}

func NewMemory() *Memory {
	return &Memory{mu: &sync.RWMutex{}, data: newMemData()}
}

func newMemData() *memData {
	return &memData{
		visions:  map[string]map[string]domain.Vision{},
		budgets:  map[string]domain.TimeBudgetState{},
		actions:  map[string][]domain.DailyAction{},
		sessions: map[string][]domain.TimingSession{},
		ledgers:  map[string]domain.VictoryLedger{},
	}
}

func (d *memData) clone() *memData {
	out := newMemData()
	for u, vs := range d.visions {
		m := make(map[string]domain.Vision, len(vs))
		for id, v := range vs {
			m[id] = v
		}
		out.visions[u] = m
	}
	for u, b := range d.budgets {
		out.budgets[u] = cloneBudget(b)
	}
	for u, as := range d.actions {
		out.actions[u] = append([]domain.DailyAction(nil), as...)
	}
	for u, ss := range d.sessions {
		out.sessions[u] = append([]domain.TimingSession(nil), ss...)
	}
	for u, l := range d.ledgers {
		l.History = append([]domain.VictoryRecord(nil), l.History...)
		out.ledgers[u] = l
	}
	out.events = append([]domain.Event(nil), d.events...)
	return out
}

func cloneBudget(b domain.TimeBudgetState) domain.TimeBudgetState {
	m := make(map[string]int, len(b.Allocations))
	for k, v := range b.Allocations {
		m[k] = v
	}
	b.Allocations = m
	return b
}

func (m *Memory) rlock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) Init(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

func (m *Memory) WithTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.data.clone()
	if err := fn(&Memory{mu: m.mu, data: m.data, inTx: true}); err != nil {
		*m.data = *snap
		return err
	}
	return nil
}

func (m *Memory) ListVisions(ctx context.Context, userID string) ([]domain.Vision, error) {
	defer m.rlock()()
	res := make([]domain.Vision, 0, len(m.data.visions[userID]))
	for _, v := range m.data.visions[userID] {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Priority != res[j].Priority {
			return res[i].Priority < res[j].Priority
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *Memory) GetVision(ctx context.Context, userID, id string) (domain.Vision, error) {
	defer m.rlock()()
	v, ok := m.data.visions[userID][id]
	if !ok {
		return domain.Vision{}, ErrNotFound
	}
	return v, nil
}

func (m *Memory) PutVision(ctx context.Context, userID string, v domain.Vision) error {
	defer m.lock()()
	if m.data.visions[userID] == nil {
		m.data.visions[userID] = map[string]domain.Vision{}
	}
	m.data.visions[userID][v.ID] = v
	return nil
}

func (m *Memory) DeleteVision(ctx context.Context, userID, id string) error {
	defer m.lock()()
	if _, ok := m.data.visions[userID][id]; !ok {
		return ErrNotFound
	}
	delete(m.data.visions[userID], id)
	return nil
}

func (m *Memory) GetBudget(ctx context.Context, userID string) (domain.TimeBudgetState, error) {
	defer m.rlock()()
	b, ok := m.data.budgets[userID]
	if !ok {
		return domain.TimeBudgetState{}, ErrNotFound
	}
	return cloneBudget(b), nil
}

func (m *Memory) PutBudget(ctx context.Context, userID string, st domain.TimeBudgetState) error {
	defer m.lock()()
	m.data.budgets[userID] = cloneBudget(st)
	return nil
}

func (m *Memory) ListDailyActions(ctx context.Context, userID string) ([]domain.DailyAction, error) {
	defer m.rlock()()
	return append([]domain.DailyAction{}, m.data.actions[userID]...), nil
}

func (m *Memory) ReplaceDailyActions(ctx context.Context, userID string, actions []domain.DailyAction) error {
	defer m.lock()()
	m.data.actions[userID] = append([]domain.DailyAction(nil), actions...)
	return nil
}

func (m *Memory) UpdateDailyAction(ctx context.Context, userID string, a domain.DailyAction) error {
	defer m.lock()()
	for i, cur := range m.data.actions[userID] {
		if cur.ID == a.ID {
			m.data.actions[userID][i] = a
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ListTimingSessions(ctx context.Context, userID string) ([]domain.TimingSession, error) {
	defer m.rlock()()
	return append([]domain.TimingSession{}, m.data.sessions[userID]...), nil
}

func (m *Memory) ReplaceTimingSessions(ctx context.Context, userID string, sessions []domain.TimingSession) error {
	defer m.lock()()
	m.data.sessions[userID] = append([]domain.TimingSession(nil), sessions...)
	return nil
}

func (m *Memory) GetLedger(ctx context.Context, userID string) (domain.VictoryLedger, error) {
	defer m.rlock()()
	l := m.data.ledgers[userID]
	l.History = append([]domain.VictoryRecord{}, l.History...)
	return l, nil
}

func (m *Memory) PutLedger(ctx context.Context, userID string, l domain.VictoryLedger) error {
	defer m.lock()()
	cur := m.data.ledgers[userID]
	seen := make(map[string]struct{}, len(cur.History))
	for _, rec := range cur.History {
		seen[rec.Date] = struct{}{}
	}
	history := append([]domain.VictoryRecord(nil), cur.History...)
	for _, rec := range l.History {
		if _, ok := seen[rec.Date]; !ok {
			history = append(history, rec)
		}
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date < history[j].Date })
	l.History = history
	m.data.ledgers[userID] = l
	return nil
}

func (m *Memory) AppendEvent(ctx context.Context, e domain.Event) (int64, error) {
	defer m.lock()()
	e.ID = int64(len(m.data.events) + 1)
	m.data.events = append(m.data.events, e)
	return e.ID, nil
}

func (m *Memory) LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	defer m.rlock()()
	res := []domain.Event{}
	for i := len(m.data.events) - 1; i >= 0 && len(res) < f.limit(); i-- {
		e := m.data.events[i]
		switch {
		case f.UserID != "" && e.UserID != f.UserID,
			f.Type != "" && e.Type != f.Type,
			f.EntityKind != "" && e.EntityKind != f.EntityKind,
			f.EntityID != "" && e.EntityID != f.EntityID,
			f.Cursor > 0 && e.ID >= f.Cursor:
			continue
		}
		res = append(res, e)
	}
	return res, nil
}

func (m *Memory) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	defer m.rlock()()
	if limit <= 0 {
		limit = 100
	}
	res := []domain.Event{}
	for _, e := range m.data.events {
		if e.ID > cursor && len(res) < limit {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *Memory) LatestEventID(ctx context.Context) (int64, error) {
	defer m.rlock()()
	return int64(len(m.data.events)), nil
}
