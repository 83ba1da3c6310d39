package dailyvisionsdk_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dailyvision/internal/config"
	"dailyvision/internal/engine"
	"dailyvision/internal/repo"
	"dailyvision/internal/server"
	dailyvisionsdk "dailyvision/sdk/go"
)

func newClient(t *testing.T) *dailyvisionsdk.Client {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	e := engine.New(repo.NewMemory(), config.Default(), quiet)
	handler, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{JWTSecret: "sdk-secret", Logger: quiet}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	token, err := server.IssueToken("sdk-secret", "sdk-user", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return dailyvisionsdk.New(srv.URL, token)
}

func TestClientDay(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	v, err := c.AddVision(ctx, "relationships", "Call family weekly", 20)
	if err != nil {
		t.Fatalf("add vision: %v", err)
	}
	if v.Priority != 1 {
		t.Fatalf("expected priority 1, got %+v", v)
	}
	b, err := c.UpdateBudget(ctx, dailyvisionsdk.BudgetUpdate{Suggested: true})
	if err != nil {
		t.Fatalf("update budget: %v", err)
	}
	if len(b.Allocations) != 1 || b.Allocations[0].Minutes != 20 {
		t.Fatalf("expected suggested allocation of 20, got %+v", b)
	}

	list, err := c.Actions(ctx, false)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(list.Actions) != 1 || list.Source != "fallback" {
		t.Fatalf("expected one fallback action, got %+v", list)
	}
	minutes := 15
	done, err := c.CompleteAction(ctx, list.Actions[0].ID, &minutes)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Victory == nil || done.Victory.TimeSpentSeconds != 900 {
		t.Fatalf("expected victory with 900 seconds, got %+v", done)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDays != 1 || stats.TotalTimeSpentMinutes != 15 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	events, err := c.Events(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 || events[0].Type != "victory.recorded" {
		t.Fatalf("expected victory.recorded as latest event, got %+v", events)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.StartTimer(ctx, "nope")
	if !dailyvisionsdk.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404, got %v", err)
	}

	c.BearerToken = "garbage"
	_, err = c.ListVisions(ctx)
	apiErr, ok := err.(*dailyvisionsdk.APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
}
