package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"dailyvision/internal/domain"
	"dailyvision/internal/engine"
	"dailyvision/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"vision 01HX... not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T `json:"body"`
}

func ok[T any](v T) *output[T] {
	return &output[T]{Body: v}
}

// New returns an HTTP handler exposing the DailyVision API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine.Store == nil {
		return nil, errors.New("engine store required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("DailyVision API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group)
	registerVisions(group, cfg.Engine)
	registerBudget(group, cfg.Engine)
	registerActions(group, cfg.Engine)
	registerVictories(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, engine.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, engine.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "canceled", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch}
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>DailyVision API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return ok(map[string]string{"status": "ok"}), nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[MeResponse], error) {
		p, found := principalFromContext(ctx)
		if !found || p.UserID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return ok(MeResponse{UserID: p.UserID, Source: p.Source}), nil
	})
}

func registerVisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-visions",
		Method:      http.MethodGet,
		Path:        "/visions",
		Summary:     "List visions in priority order",
	}, func(ctx context.Context, _ *struct{}) (*output[VisionList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListVisions(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(VisionList{Items: items}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-vision",
		Method:        http.MethodPost,
		Path:          "/visions",
		Summary:       "Add a vision",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateVisionRequest
	}) (*output[domain.Vision], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.AddVision(ctx, userID, engine.VisionInput{
			Category:                   input.Body.Category,
			Description:                input.Body.Description,
			SuggestedAllocationMinutes: input.Body.SuggestedAllocationMinutes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(v), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-vision",
		Method:        http.MethodDelete,
		Path:          "/visions/{id}",
		Summary:       "Remove a vision and its allocation",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveVision(ctx, userID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-visions",
		Method:      http.MethodPut,
		Path:        "/visions/order",
		Summary:     "Reorder visions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ReorderVisionsRequest
	}) (*output[VisionList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ReorderVisions(ctx, userID, input.Body.IDs)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(VisionList{Items: items}), nil
	})
}

func registerBudget(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-budget",
		Method:      http.MethodGet,
		Path:        "/budget",
		Summary:     "Today's time budget",
	}, func(ctx context.Context, _ *struct{}) (*output[domain.AllocationSnapshot], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.Budget(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-budget",
		Method:      http.MethodPut,
		Path:        "/budget",
		Summary:     "Set the total and allocations",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body UpdateBudgetRequest
	}) (*output[domain.AllocationSnapshot], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.Allocate(ctx, userID, engine.AllocateRequest{
			Total:       input.Body.TotalAvailableMinutes,
			Equal:       input.Body.Equal,
			Suggested:   input.Body.Suggested,
			Allocations: input.Body.Allocations,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(snap), nil
	})
}

func registerActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/actions",
		Summary:     "Today's actions, generated on first request of the day",
	}, func(ctx context.Context, input *struct {
		Regenerate bool `query:"regenerate"`
	}) (*output[engine.ActionsResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.DailyActions(ctx, userID, input.Regenerate)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-actions",
		Method:      http.MethodPost,
		Path:        "/actions/generate",
		Summary:     "Replace today's actions with a new list",
	}, func(ctx context.Context, _ *struct{}) (*output[engine.ActionsResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.DailyActions(ctx, userID, true)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})

	timerOp := func(id, verb, summary string, fn func(context.Context, string, string) (domain.TimingSession, error)) {
		huma.Register(api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        "/actions/{id}/" + verb,
			Summary:     summary,
			Errors:      []int{http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *struct {
			ID string `path:"id"`
		}) (*output[TimerResponse], error) {
			userID, authErr := userIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			session, err := fn(ctx, userID, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			phase, err := e.TimerPhase(ctx, userID, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(TimerResponse{Session: session, Phase: string(phase)}), nil
		})
	}
	timerOp("start-action", "start", "Start the action timer", e.StartTimer)
	timerOp("stop-action", "stop", "Stop the action timer", e.StopTimer)

	huma.Register(api, huma.Operation{
		OperationID: "complete-action",
		Method:      http.MethodPost,
		Path:        "/actions/{id}/complete",
		Summary:     "Mark an action completed",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body *CompleteActionRequest `required:"false"`
	}) (*output[engine.CompleteResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var minutes *int
		if input.Body != nil {
			minutes = input.Body.ActualTimeMinutes
		}
		res, err := e.CompleteAction(ctx, userID, input.ID, minutes)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "skip-action",
		Method:      http.MethodPost,
		Path:        "/actions/{id}/skip",
		Summary:     "Skip an action for today",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[engine.CompleteResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.SkipAction(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(res), nil
	})
}

func registerVictories(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "recent-victories",
		Method:      http.MethodGet,
		Path:        "/victories",
		Summary:     "Most recent victory records",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"7"`
	}) (*output[VictoryList], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Recent(ctx, userID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return ok(VictoryList{Items: items}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-victory",
		Method:        http.MethodPost,
		Path:          "/victories",
		Summary:       "Record today's victory",
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *struct {
		Body RecordVictoryRequest
	}) (*output[RecordVictoryResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.RecordCompletion(ctx, userID, input.Body.ActionsCompleted, input.Body.TotalActions, input.Body.TimeSpentSeconds)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(RecordVictoryResponse{Recorded: rec != nil, Record: rec}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "victory-ledger",
		Method:      http.MethodGet,
		Path:        "/victories/ledger",
		Summary:     "Victory ledger with streak decay applied",
	}, func(ctx context.Context, _ *struct{}) (*output[domain.VictoryLedger], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.Ledger(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		if l.History == nil {
			l.History = []domain.VictoryRecord{}
		}
		return ok(l), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "victory-stats",
		Method:      http.MethodGet,
		Path:        "/victories/stats",
		Summary:     "Aggregate victory statistics",
	}, func(ctx context.Context, _ *struct{}) (*output[domain.VictoryStats], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.Stats(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(stats), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"vision,budget,daily_actions,action,victory"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[paginatedEvents], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, repo.EventFilter{
			UserID:     userID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return ok(resp), nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
