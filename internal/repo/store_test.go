package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dailyvision/internal/db"
	"dailyvision/internal/domain"
	"dailyvision/internal/repo"
)

func stores(t *testing.T) map[string]repo.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlite := repo.NewSQLite(conn)
	if err := sqlite.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]repo.Store{"sqlite": sqlite, "memory": repo.NewMemory()}
}

func TestVisionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		if err := s.PutVision(ctx, "u1", domain.Vision{ID: "b", Category: domain.CategoryCareer, Description: "ship", Priority: 2}); err != nil {
			t.Fatalf("%s: put: %v", name, err)
		}
		_ = s.PutVision(ctx, "u1", domain.Vision{ID: "a", Category: domain.CategoryHealth, Description: "run", Priority: 1, SuggestedAllocationMinutes: 20})
		_ = s.PutVision(ctx, "u2", domain.Vision{ID: "c", Category: domain.CategoryHealth, Description: "swim", Priority: 1})
		vs, err := s.ListVisions(ctx, "u1")
		if err != nil || len(vs) != 2 || vs[0].ID != "a" || vs[0].SuggestedAllocationMinutes != 20 {
			t.Fatalf("%s: unexpected visions %+v err=%v", name, vs, err)
		}
		if err := s.DeleteVision(ctx, "u1", "zzz"); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
		if _, err := s.GetVision(ctx, "u2", "a"); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s: visions must be scoped per user", name)
		}
	}
}

func TestBudgetAndActions(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		if _, err := s.GetBudget(ctx, "u1"); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
		st := domain.TimeBudgetState{TotalAvailableMinutes: 60, Allocations: map[string]int{"a": 30}, LastUpdatedDate: "2024-05-01"}
		if err := s.PutBudget(ctx, "u1", st); err != nil {
			t.Fatalf("%s: put budget: %v", name, err)
		}
		got, err := s.GetBudget(ctx, "u1")
		if err != nil || got.Allocations["a"] != 30 || got.LastUpdatedDate != "2024-05-01" {
			t.Fatalf("%s: budget %+v err=%v", name, got, err)
		}

		actions := []domain.DailyAction{
			{ID: "x2", VisionID: "a", Description: "second", EstimatedTimeMinutes: 10, Status: domain.ActionPending, Date: "2024-05-01", AIGenerated: true, AIReasoning: "r"},
			{ID: "x1", Description: "first", EstimatedTimeMinutes: 5, Status: domain.ActionPending, Date: "2024-05-01"},
		}
		if err := s.ReplaceDailyActions(ctx, "u1", actions); err != nil {
			t.Fatalf("%s: replace: %v", name, err)
		}
		mins := 7
		actions[1].Status = domain.ActionCompleted
		actions[1].ActualTimeMinutes = &mins
		if err := s.UpdateDailyAction(ctx, "u1", actions[1]); err != nil {
			t.Fatalf("%s: update: %v", name, err)
		}
		list, _ := s.ListDailyActions(ctx, "u1")
		if len(list) != 2 || list[0].ID != "x2" || !list[0].AIGenerated || list[1].ActualTimeMinutes == nil || *list[1].ActualTimeMinutes != 7 {
			t.Fatalf("%s: actions %+v", name, list)
		}
		if err := s.UpdateDailyAction(ctx, "u1", domain.DailyAction{ID: "nope"}); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
	}
}

func TestSessionsKeepOrderAndTimes(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	end := t0.Add(90 * time.Second)
	d := 90
	for name, s := range stores(t) {
		in := []domain.TimingSession{
			{ActionID: "a", StartedAt: t0, EndedAt: &end, DurationSeconds: &d},
			{ActionID: "a", StartedAt: end, IsActive: true},
		}
		if err := s.ReplaceTimingSessions(ctx, "u1", in); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		out, err := s.ListTimingSessions(ctx, "u1")
		if err != nil || len(out) != 2 {
			t.Fatalf("%s: sessions %+v err=%v", name, out, err)
		}
		if !out[0].StartedAt.Equal(t0) || out[0].EndedAt == nil || *out[0].DurationSeconds != 90 || !out[1].IsActive {
			t.Fatalf("%s: unexpected sessions %+v", name, out)
		}
	}
}

func TestLedgerHistoryIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		l, err := s.GetLedger(ctx, "u1")
		if err != nil || l.TotalDays != 0 || l.History == nil {
			t.Fatalf("%s: empty ledger %+v err=%v", name, l, err)
		}
		l = domain.VictoryLedger{CurrentStreak: 1, TotalDays: 1, LastCompletedDate: "2024-05-01",
			History: []domain.VictoryRecord{{Date: "2024-05-01", DayNumber: 1, ActionsCompleted: 2, TotalActions: 2, TimeSpentSeconds: 60}}}
		if err := s.PutLedger(ctx, "u1", l); err != nil {
			t.Fatalf("%s: put ledger: %v", name, err)
		}
		l.History[0].TimeSpentSeconds = 999
		l.CurrentStreak = 0
		if err := s.PutLedger(ctx, "u1", l); err != nil {
			t.Fatalf("%s: put ledger: %v", name, err)
		}
		got, _ := s.GetLedger(ctx, "u1")
		if got.CurrentStreak != 0 || len(got.History) != 1 || got.History[0].TimeSpentSeconds != 60 {
			t.Fatalf("%s: ledger %+v", name, got)
		}
	}
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range stores(t) {
		err := s.WithTx(ctx, func(tx repo.Store) error {
			if err := tx.PutVision(ctx, "u1", domain.Vision{ID: "a", Category: domain.CategoryHealth, Description: "x", Priority: 1}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("%s: expected boom, got %v", name, err)
		}
		if vs, _ := s.ListVisions(ctx, "u1"); len(vs) != 0 {
			t.Fatalf("%s: rollback failed: %+v", name, vs)
		}
	}
}

func TestEventsQueries(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		for i, typ := range []string{"budget.updated", "actions.generated", "budget.updated"} {
			user := "u1"
			if i == 1 {
				user = "u2"
			}
			if _, err := s.AppendEvent(ctx, domain.Event{TS: "2024-05-01T00:00:00Z", Type: typ, UserID: user, EntityKind: "budget", Payload: "{}"}); err != nil {
				t.Fatalf("%s: append: %v", name, err)
			}
		}
		latest, _ := s.LatestEvents(ctx, repo.EventFilter{UserID: "u1"})
		if len(latest) != 2 || latest[0].ID != 3 || latest[1].ID != 1 {
			t.Fatalf("%s: latest %+v", name, latest)
		}
		older, _ := s.LatestEvents(ctx, repo.EventFilter{Cursor: 3, Limit: 1})
		if len(older) != 1 || older[0].ID != 2 {
			t.Fatalf("%s: cursor page %+v", name, older)
		}
		after, _ := s.EventsAfter(ctx, 10, 1)
		if len(after) != 2 || after[0].ID != 2 {
			t.Fatalf("%s: after %+v", name, after)
		}
		if id, _ := s.LatestEventID(ctx); id != 3 {
			t.Fatalf("%s: latest id %d", name, id)
		}
	}
}
