package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dailyvision/internal/config"
	"dailyvision/internal/db"
	"dailyvision/internal/domain"
	"dailyvision/internal/engine"
	"dailyvision/internal/repo"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := repo.NewSQLite(conn)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	quiet := log.New(io.Discard, "", 0)
	e := engine.New(store, config.Default(), quiet)
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{
		JWTSecret:             testSecret,
		AllowLegacyUserHeader: true,
		Logger:                quiet,
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-Id": id}
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/visions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(body))
	}
	envelope := decode[struct {
		Error apiErrorBody `json:"error"`
	}](t, body)
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}

	token, err := IssueToken(testSecret, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	me := decode[MeResponse](t, body)
	if me.UserID != "alice" || me.Source != "jwt" {
		t.Fatalf("unexpected principal %+v", me)
	}

	forged, _ := IssueToken("other-secret", "alice", time.Hour, time.Now())
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + forged,
		"X-User-Id":     "alice",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected forged token to be rejected, got %d", res.StatusCode)
	}
}

func TestDailyFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	user := asUser("alice")

	var ids []string
	for _, in := range []map[string]any{
		{"category": "health", "description": "Run a marathon"},
		{"category": "career", "description": "Ship the side project"},
	} {
		res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/visions", in, user)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("add vision status %d: %s", res.StatusCode, string(body))
		}
		ids = append(ids, decode[domain.Vision](t, body).ID)
	}

	res, body := doJSON(t, client, http.MethodPut, srv.URL+"/v0/budget", map[string]any{
		"totalAvailableMinutes": 60,
		"equal":                 true,
	}, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("budget status %d: %s", res.StatusCode, string(body))
	}
	snap := decode[domain.AllocationSnapshot](t, body)
	if m, _ := snap.Minutes(ids[0]); m != 30 {
		t.Fatalf("expected equal split of 30, got %+v", snap)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/actions", nil, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("actions status %d: %s", res.StatusCode, string(body))
	}
	list := decode[engine.ActionsResult](t, body)
	if !list.Generated || len(list.Actions) != 2 {
		t.Fatalf("expected two generated actions, got %+v", list)
	}

	again := decode[engine.ActionsResult](t, mustGet(t, srv, "/v0/actions", user))
	if again.Generated || again.Actions[0].ID != list.Actions[0].ID {
		t.Fatalf("expected stored actions on second read, got %+v", again)
	}

	first, second := list.Actions[0].ID, list.Actions[1].ID
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/"+first+"/start", nil, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status %d: %s", res.StatusCode, string(body))
	}
	if tr := decode[TimerResponse](t, body); tr.Phase != "running" {
		t.Fatalf("expected running, got %+v", tr)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/"+first+"/stop", nil, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stop status %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/"+first+"/stop", nil, user)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict stopping idle timer, got %d", res.StatusCode)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/"+first+"/complete", map[string]any{"actualTimeMinutes": 12}, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(body))
	}
	done := decode[engine.CompleteResult](t, body)
	if done.Victory != nil || done.Action.Status != domain.ActionCompleted {
		t.Fatalf("unexpected first completion %+v", done)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/"+second+"/complete", map[string]any{}, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(body))
	}
	done = decode[engine.CompleteResult](t, body)
	if done.Victory == nil || done.Victory.DayNumber != 1 || done.Victory.ActionsCompleted != 2 {
		t.Fatalf("expected victory for day 1, got %+v", done)
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/"+second+"/skip", nil, user)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict skipping finished action, got %d", res.StatusCode)
	}

	stats := decode[domain.VictoryStats](t, mustGet(t, srv, "/v0/victories/stats", user))
	if stats.TotalDays != 1 || stats.CurrentStreak != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/victories", map[string]any{
		"actionsCompleted": 1,
		"totalActions":     1,
		"timeSpentSeconds": 60,
	}, user)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("record status %d: %s", res.StatusCode, string(body))
	}
	if rec := decode[RecordVictoryResponse](t, body); rec.Recorded {
		t.Fatalf("expected second record of the day to be ignored, got %+v", rec)
	}

	other := decode[VisionList](t, mustGet(t, srv, "/v0/visions", asUser("bob")))
	if len(other.Items) != 0 {
		t.Fatalf("expected users to be isolated, got %+v", other.Items)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	user := asUser("alice")

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/visions", map[string]any{
		"category":    "finance",
		"description": "Get rich",
	}, user)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d %s", res.StatusCode, string(body))
	}

	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/visions/missing", nil, user)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 removing unknown vision, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/actions/missing/start", nil, user)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodPut, srv.URL+"/v0/visions/order", map[string]any{"ids": []string{"x"}}, user)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial reorder, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?cursor=abc", nil, user)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d", res.StatusCode)
	}
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	user := asUser("alice")

	for _, desc := range []string{"one", "two", "three"} {
		res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/visions", map[string]any{
			"category":    "health",
			"description": desc,
		}, user)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("add vision: %d %s", res.StatusCode, string(body))
		}
	}

	page := decode[paginatedEvents](t, mustGet(t, srv, "/v0/events?limit=2&type=vision.added", user))
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected full first page with cursor, got %+v", page)
	}
	if page.Items[0].ID <= page.Items[1].ID {
		t.Fatalf("expected newest first, got %+v", page.Items)
	}
	rest := decode[paginatedEvents](t, mustGet(t, srv, "/v0/events?limit=2&type=vision.added&cursor="+page.NextCursor, user))
	if len(rest.Items) != 1 || rest.NextCursor != "" {
		t.Fatalf("expected last page of one, got %+v", rest)
	}

	none := decode[paginatedEvents](t, mustGet(t, srv, "/v0/events", asUser("bob")))
	if len(none.Items) != 0 {
		t.Fatalf("expected no events for another user, got %+v", none.Items)
	}
}

func TestWebhookDispatch(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookEvent
		headers  []http.Header
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, evt)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	ctx := context.Background()
	store := repo.NewMemory()
	if _, err := store.AppendEvent(ctx, domain.Event{Type: "vision.added", UserID: "alice", EntityKind: "vision", Payload: "{}"}); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	d := newWebhookDispatcher(store, []config.Webhook{{
		URL:    hook.URL,
		Events: []string{"victory.recorded"},
		Secret: "s3cret",
	}}, log.New(io.Discard, "", 0))

	// the first poll only positions the cursor
	d.dispatchAll(ctx)
	for _, typ := range []string{"action.completed", "victory.recorded"} {
		if _, err := store.AppendEvent(ctx, domain.Event{Type: typ, UserID: "alice", EntityKind: "victory", EntityID: "2024-03-01", Payload: `{"day_number":1}`}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	d.dispatchAll(ctx)
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one delivery, got %+v", received)
	}
	if received[0].Type != "victory.recorded" || string(received[0].Payload) != `{"day_number":1}` {
		t.Fatalf("unexpected delivery %+v", received[0])
	}
	if headers[0].Get("X-DailyVision-Secret") != "s3cret" || headers[0].Get("X-DailyVision-User") != "alice" {
		t.Fatalf("unexpected headers %v", headers[0])
	}
}

func mustGet(t *testing.T, srv *testServer, path string, headers map[string]string) []byte {
	t.Helper()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+path, nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status %d: %s", path, res.StatusCode, string(body))
	}
	return body
}
