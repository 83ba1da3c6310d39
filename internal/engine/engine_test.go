package engine_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"dailyvision/internal/backend"
	"dailyvision/internal/config"
	"dailyvision/internal/db"
	"dailyvision/internal/domain"
	"dailyvision/internal/engine"
	"dailyvision/internal/events"
	"dailyvision/internal/generate"
	"dailyvision/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    *time.Time
}

func (env testEnv) advance(d time.Duration) {
	*env.now = env.now.Add(d)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := repo.NewSQLite(conn)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return newEnvWithStore(t, store)
}

func newEnvWithStore(t *testing.T, store repo.Store) testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Timezone = "UTC"
	logger := log.New(io.Discard, "", 0)
	eng := engine.New(store, cfg, logger)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return now }
	eng.Generator = &generate.Generator{
		Limiter:    generate.NewMemoryRateLimiter(10, time.Minute),
		Cache:      generate.NewMemoryCache(16, 5*time.Minute),
		MaxActions: 2,
		Logger:     logger,
	}
	return testEnv{Engine: eng, Ctx: context.Background(), now: &now}
}

func addVisions(t *testing.T, env testEnv, user string) []domain.Vision {
	t.Helper()
	inputs := []engine.VisionInput{
		{Category: domain.CategoryHealth, Description: "Run a marathon", SuggestedAllocationMinutes: 40},
		{Category: domain.CategoryCareer, Description: "Ship the side project", SuggestedAllocationMinutes: 15},
		{Category: domain.CategoryRelationships, Description: "Call family", SuggestedAllocationMinutes: 5},
	}
	var out []domain.Vision
	for _, in := range inputs {
		v, err := env.Engine.AddVision(env.Ctx, user, in)
		if err != nil {
			t.Fatalf("add vision: %v", err)
		}
		out = append(out, v)
	}
	return out
}

func TestVisionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	if vs[0].Priority != 1 || vs[2].Priority != 3 || vs[0].ID == vs[1].ID {
		t.Fatalf("unexpected visions %+v", vs)
	}
	if _, err := env.Engine.AddVision(env.Ctx, "u1", engine.VisionInput{Category: "hobbies", Description: "x"}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected invalid category, got %v", err)
	}

	reordered, err := env.Engine.ReorderVisions(env.Ctx, "u1", []string{vs[2].ID, vs[0].ID, vs[1].ID})
	if err != nil || reordered[0].ID != vs[2].ID || reordered[0].Priority != 1 {
		t.Fatalf("reorder: %+v %v", reordered, err)
	}
	if _, err := env.Engine.ReorderVisions(env.Ctx, "u1", []string{vs[0].ID, vs[0].ID, vs[1].ID}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected invalid reorder, got %v", err)
	}

	total := 90
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Equal: true}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := env.Engine.RemoveVision(env.Ctx, "u1", vs[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	snap, _ := env.Engine.Budget(env.Ctx, "u1")
	if _, ok := snap.Minutes(vs[0].ID); ok {
		t.Fatalf("removed vision must lose its allocation: %+v", snap)
	}
	if err := env.Engine.RemoveVision(env.Ctx, "u1", vs[0].ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ := env.Engine.ListVisions(env.Ctx, "u1")
	if len(list) != 2 || list[0].Priority != 1 || list[1].Priority != 3 {
		t.Fatalf("priorities must not be renumbered on removal: %+v", list)
	}
}

func TestAllocateEqualSplitAndEdits(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	total := 100
	snap, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Equal: true})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	got := snap.Map()
	if got[vs[0].ID] != 40 || got[vs[1].ID] != 30 || got[vs[2].ID] != 30 {
		t.Fatalf("expected 40/30/30, got %v", got)
	}
	snap, err = env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Allocations: map[string]int{vs[1].ID: 90}})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if m, _ := snap.Minutes(vs[1].ID); m != 30 {
		t.Fatalf("edit must clamp to remaining 30, got %d", m)
	}
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Allocations: map[string]int{"ghost": 5}}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected unknown vision error, got %v", err)
	}
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Equal: true, Suggested: true}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected exclusive split error, got %v", err)
	}
	evts, _ := env.Engine.ListEvents(env.Ctx, repo.EventFilter{UserID: "u1", Type: events.BudgetUpdated})
	if len(evts) != 2 {
		t.Fatalf("expected 2 budget events, got %d", len(evts))
	}
}

func TestBudgetResetsOnNewDay(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	total := 60
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Suggested: true}); err != nil {
		t.Fatal(err)
	}
	snap, _ := env.Engine.Budget(env.Ctx, "u1")
	if m, _ := snap.Minutes(vs[0].ID); m != 40 {
		t.Fatalf("suggested split: %+v", snap)
	}
	env.advance(24 * time.Hour)
	snap, _ = env.Engine.Budget(env.Ctx, "u1")
	if len(snap.Allocations) != 0 || snap.TotalAvailableMinutes != 60 || snap.Date != "2024-03-02" {
		t.Fatalf("expected reset with total kept, got %+v", snap)
	}
}

func TestDailyActionsGenerateOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	total := 60
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Allocations: map[string]int{vs[1].ID: 20}}); err != nil {
		t.Fatal(err)
	}
	first, err := env.Engine.DailyActions(env.Ctx, "u1", false)
	if err != nil {
		t.Fatalf("daily actions: %v", err)
	}
	if !first.Generated || len(first.Actions) != 1 || first.Actions[0].VisionID != vs[1].ID {
		t.Fatalf("only allocated visions get actions: %+v", first)
	}
	a := first.Actions[0]
	if a.Date != "2024-03-01" || a.Status != domain.ActionPending || a.EstimatedTimeMinutes > 14 || a.EstimatedTimeMinutes < 5 {
		t.Fatalf("unexpected action %+v", a)
	}
	again, _ := env.Engine.DailyActions(env.Ctx, "u1", false)
	if again.Generated || len(again.Actions) != 1 || again.Actions[0].ID != a.ID {
		t.Fatalf("same day must return stored actions: %+v", again)
	}

	env.advance(24 * time.Hour)
	next, _ := env.Engine.DailyActions(env.Ctx, "u1", false)
	if !next.Generated || len(next.Actions) != 0 || next.Reason == "" {
		t.Fatalf("allocations reset overnight so nothing is generated: %+v", next)
	}
}

func TestDailyActionsUseBackend(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	env.Engine.Generator.Backend = backend.Func(func(ctx context.Context, _, _ string) (string, error) {
		return `[{"visionId":"` + vs[0].ID + `","description":"Run 5k","estimatedTimeMinutes":45,"reasoning":"base"}]`, nil
	})
	total := 60
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Equal: true}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.DailyActions(env.Ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != generate.SourceAI || len(res.Actions) != 1 || !res.Actions[0].AIGenerated {
		t.Fatalf("unexpected result %+v", res)
	}
	// allocation 20 → 70% is 14
	if res.Actions[0].EstimatedTimeMinutes != 14 {
		t.Fatalf("expected clamp to 14, got %d", res.Actions[0].EstimatedTimeMinutes)
	}
}

func TestRegenerateAfterShrinkingBudgetReclamps(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	var calls int32
	env.Engine.Generator.Backend = backend.Func(func(ctx context.Context, _, _ string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return `[{"visionId":"` + vs[0].ID + `","description":"Run 5k","estimatedTimeMinutes":45,"reasoning":"base"}]`, nil
	})
	total := 180
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Equal: true}); err != nil {
		t.Fatal(err)
	}
	wide, err := env.Engine.DailyActions(env.Ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	if wide.Actions[0].EstimatedTimeMinutes != 42 {
		t.Fatalf("expected 42 under a 60 minute allocation, got %d", wide.Actions[0].EstimatedTimeMinutes)
	}

	total = 30
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Equal: true}); err != nil {
		t.Fatal(err)
	}
	env.advance(time.Minute)
	narrow, err := env.Engine.DailyActions(env.Ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	if narrow.Cached || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("changed budget must not reuse the earlier generation: calls=%d %+v", calls, narrow)
	}
	// allocation 10 → 70% is 7
	if got := narrow.Actions[0].EstimatedTimeMinutes; got != 7 {
		t.Fatalf("expected clamp to 7, got %d", got)
	}
}

func TestCompletingLastActionRecordsVictory(t *testing.T) {
	env := newTestEnv(t)
	addVisions(t, env, "u1")
	total := 90
	if _, err := env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Equal: true}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.DailyActions(env.Ctx, "u1", false)
	if err != nil || len(res.Actions) != 2 {
		t.Fatalf("expected 2 actions: %+v %v", res, err)
	}
	a1, a2 := res.Actions[0], res.Actions[1]

	if _, err := env.Engine.StartTimer(env.Ctx, "u1", a1.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	env.advance(5 * time.Minute)
	done, err := env.Engine.CompleteAction(env.Ctx, "u1", a1.ID, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Victory != nil || done.Action.ActualTimeMinutes == nil || *done.Action.ActualTimeMinutes != 5 {
		t.Fatalf("unexpected first completion %+v", done)
	}
	if _, err := env.Engine.CompleteAction(env.Ctx, "u1", a1.ID, nil); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict on double completion, got %v", err)
	}

	ten := 10
	done, err = env.Engine.CompleteAction(env.Ctx, "u1", a2.ID, &ten)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Victory == nil {
		t.Fatalf("expected victory after last action")
	}
	v := *done.Victory
	if v.ActionsCompleted != 2 || v.TotalActions != 2 || v.TimeSpentSeconds != 900 || v.DayNumber != 1 {
		t.Fatalf("unexpected victory %+v", v)
	}
	l, _ := env.Engine.Ledger(env.Ctx, "u1")
	if l.CurrentStreak != 1 || l.TotalDays != 1 {
		t.Fatalf("unexpected ledger %+v", l)
	}
}

func TestTimerStartStop(t *testing.T) {
	env := newTestEnv(t)
	vs := addVisions(t, env, "u1")
	total := 30
	_, _ = env.Engine.Allocate(env.Ctx, "u1", engine.AllocateRequest{Total: &total, Allocations: map[string]int{vs[0].ID: 30}})
	res, _ := env.Engine.DailyActions(env.Ctx, "u1", false)
	id := res.Actions[0].ID

	if _, err := env.Engine.StopTimer(env.Ctx, "u1", id); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("stopping idle timer must conflict, got %v", err)
	}
	if _, err := env.Engine.StartTimer(env.Ctx, "u1", id); err != nil {
		t.Fatal(err)
	}
	env.advance(90 * time.Second)
	s, err := env.Engine.StopTimer(env.Ctx, "u1", id)
	if err != nil || s.DurationSeconds == nil || *s.DurationSeconds != 90 {
		t.Fatalf("stop: %+v %v", s, err)
	}
	phase, _ := env.Engine.TimerPhase(env.Ctx, "u1", id)
	if phase != "stopped" {
		t.Fatalf("phase = %s", phase)
	}
	if _, err := env.Engine.StartTimer(env.Ctx, "u1", "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordCompletionOncePerDayAndDecay(t *testing.T) {
	env := newEnvWithStore(t, repo.NewMemory())
	rec, err := env.Engine.RecordCompletion(env.Ctx, "u1", 2, 2, 600)
	if err != nil || rec == nil {
		t.Fatalf("record: %+v %v", rec, err)
	}
	rec, err = env.Engine.RecordCompletion(env.Ctx, "u1", 3, 3, 900)
	if err != nil || rec != nil {
		t.Fatalf("second record must be a no-op: %+v %v", rec, err)
	}
	env.advance(24 * time.Hour)
	_, _ = env.Engine.RecordCompletion(env.Ctx, "u1", 1, 1, 60)
	stats, _ := env.Engine.Stats(env.Ctx, "u1")
	if stats.CurrentStreak != 2 || stats.TotalDays != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	env.advance(48 * time.Hour)
	l, err := env.Engine.Ledger(env.Ctx, "u1")
	if err != nil || l.CurrentStreak != 0 || l.TotalDays != 2 {
		t.Fatalf("expected decayed streak: %+v %v", l, err)
	}
	evts, _ := env.Engine.ListEvents(env.Ctx, repo.EventFilter{UserID: "u1", Type: events.StreakReset})
	if len(evts) != 1 {
		t.Fatalf("expected one streak.reset event, got %d", len(evts))
	}
	recent, _ := env.Engine.Recent(env.Ctx, "u1", 5)
	if len(recent) != 2 || recent[0].Date != "2024-03-02" {
		t.Fatalf("unexpected recent %+v", recent)
	}
}
