package dailyvisionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal DailyVision HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// UserID is sent as X-User-Id when no bearer token is set. Servers only
	// honor it when started with --allow-user-header.
	UserID     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Timeout:     30 * time.Second,
	}
}

type Vision struct {
	ID                         string `json:"id"`
	Category                   string `json:"category"`
	Description                string `json:"description"`
	Priority                   int    `json:"priority"`
	SuggestedAllocationMinutes int    `json:"suggestedAllocationMinutes"`
}

type Allocation struct {
	VisionID string `json:"visionId"`
	Minutes  int    `json:"minutes"`
}

type Budget struct {
	Date                  string       `json:"date"`
	TotalAvailableMinutes int          `json:"totalAvailableMinutes"`
	Allocations           []Allocation `json:"allocations"`
}

// BudgetUpdate mirrors PUT /budget. Equal and Suggested are exclusive.
type BudgetUpdate struct {
	TotalAvailableMinutes *int           `json:"totalAvailableMinutes,omitempty"`
	Equal                 bool           `json:"equal,omitempty"`
	Suggested             bool           `json:"suggested,omitempty"`
	Allocations           map[string]int `json:"allocations,omitempty"`
}

type Action struct {
	ID                   string `json:"id"`
	VisionID             string `json:"visionId"`
	Description          string `json:"description"`
	EstimatedTimeMinutes int    `json:"estimatedTimeMinutes"`
	ActualTimeMinutes    *int   `json:"actualTimeMinutes"`
	Status               string `json:"status"`
	Date                 string `json:"date"`
	AIGenerated          bool   `json:"aiGenerated"`
	AIReasoning          string `json:"aiReasoning"`
}

type Actions struct {
	Date      string   `json:"date"`
	Actions   []Action `json:"actions"`
	Generated bool     `json:"generated"`
	Source    string   `json:"source"`
	Cached    bool     `json:"cached"`
	Reason    string   `json:"reason"`
}

type TimingSession struct {
	ActionID        string     `json:"actionId"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationSeconds *int       `json:"durationSeconds"`
	IsActive        bool       `json:"isActive"`
}

type Timer struct {
	Session TimingSession `json:"session"`
	Phase   string        `json:"phase"`
}

type Victory struct {
	Date             string `json:"date"`
	DayNumber        int    `json:"dayNumber"`
	ActionsCompleted int    `json:"actionsCompleted"`
	TotalActions     int    `json:"totalActions"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// Completion is returned when an action is completed or skipped. Victory is
// set when that finished the day.
type Completion struct {
	Action  Action   `json:"action"`
	Victory *Victory `json:"victory"`
}

type Ledger struct {
	CurrentStreak     int       `json:"currentStreak"`
	TotalDays         int       `json:"totalDays"`
	LastCompletedDate string    `json:"lastCompletedDate"`
	History           []Victory `json:"history"`
}

type Stats struct {
	CurrentStreak         int     `json:"currentStreak"`
	TotalDays             int     `json:"totalDays"`
	TotalTimeSpentMinutes int     `json:"totalTimeSpentMinutes"`
	AverageActionsPerDay  float64 `json:"averageActionsPerDay"`
	BestStreak            int     `json:"bestStreak"`
	CompletionRate        float64 `json:"completionRate"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func (c *Client) ListVisions(ctx context.Context) ([]Vision, error) {
	var resp struct {
		Items []Vision `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "visions", nil, &resp)
	return resp.Items, err
}

// AddVision appends a vision at the lowest priority.
func (c *Client) AddVision(ctx context.Context, category, description string, suggestedMinutes int) (Vision, error) {
	body := map[string]any{
		"category":    category,
		"description": description,
	}
	if suggestedMinutes > 0 {
		body["suggestedAllocationMinutes"] = suggestedMinutes
	}
	var resp Vision
	err := c.do(ctx, http.MethodPost, "visions", body, &resp)
	return resp, err
}

func (c *Client) RemoveVision(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "visions/"+url.PathEscape(id), nil, nil)
}

// ReorderVisions sets priorities in the given order; ids must list every vision.
func (c *Client) ReorderVisions(ctx context.Context, ids []string) ([]Vision, error) {
	var resp struct {
		Items []Vision `json:"items"`
	}
	err := c.do(ctx, http.MethodPut, "visions/order", map[string]any{"ids": ids}, &resp)
	return resp.Items, err
}

func (c *Client) Budget(ctx context.Context) (Budget, error) {
	var resp Budget
	err := c.do(ctx, http.MethodGet, "budget", nil, &resp)
	return resp, err
}

func (c *Client) UpdateBudget(ctx context.Context, update BudgetUpdate) (Budget, error) {
	var resp Budget
	err := c.do(ctx, http.MethodPut, "budget", update, &resp)
	return resp, err
}

// Actions returns today's actions, generating them when the stored list is
// stale or regenerate is set.
func (c *Client) Actions(ctx context.Context, regenerate bool) (Actions, error) {
	endpoint := "actions"
	if regenerate {
		endpoint += "?regenerate=true"
	}
	var resp Actions
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) GenerateActions(ctx context.Context) (Actions, error) {
	var resp Actions
	err := c.do(ctx, http.MethodPost, "actions/generate", nil, &resp)
	return resp, err
}

func (c *Client) StartTimer(ctx context.Context, actionID string) (Timer, error) {
	var resp Timer
	err := c.do(ctx, http.MethodPost, "actions/"+url.PathEscape(actionID)+"/start", nil, &resp)
	return resp, err
}

func (c *Client) StopTimer(ctx context.Context, actionID string) (Timer, error) {
	var resp Timer
	err := c.do(ctx, http.MethodPost, "actions/"+url.PathEscape(actionID)+"/stop", nil, &resp)
	return resp, err
}

// CompleteAction marks an action completed. A nil actualMinutes keeps the
// timed duration.
func (c *Client) CompleteAction(ctx context.Context, actionID string, actualMinutes *int) (Completion, error) {
	body := map[string]any{}
	if actualMinutes != nil {
		body["actualTimeMinutes"] = *actualMinutes
	}
	var resp Completion
	err := c.do(ctx, http.MethodPost, "actions/"+url.PathEscape(actionID)+"/complete", body, &resp)
	return resp, err
}

func (c *Client) SkipAction(ctx context.Context, actionID string) (Completion, error) {
	var resp Completion
	err := c.do(ctx, http.MethodPost, "actions/"+url.PathEscape(actionID)+"/skip", nil, &resp)
	return resp, err
}

// RecordVictory records today's victory. It returns nil when the day already
// had one.
func (c *Client) RecordVictory(ctx context.Context, completed, total, seconds int) (*Victory, error) {
	body := map[string]any{
		"actionsCompleted": completed,
		"totalActions":     total,
		"timeSpentSeconds": seconds,
	}
	var resp struct {
		Recorded bool     `json:"recorded"`
		Record   *Victory `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "victories", body, &resp); err != nil {
		return nil, err
	}
	return resp.Record, nil
}

func (c *Client) RecentVictories(ctx context.Context, limit int) ([]Victory, error) {
	var resp struct {
		Items []Victory `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("victories?limit=%d", limit), nil, &resp)
	return resp.Items, err
}

func (c *Client) Ledger(ctx context.Context) (Ledger, error) {
	var resp Ledger
	err := c.do(ctx, http.MethodGet, "victories/ledger", nil, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "victories/stats", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UserID != "":
		req.Header.Set("X-User-Id", c.UserID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
