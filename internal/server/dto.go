package server

import (
	"encoding/json"

	"dailyvision/internal/domain"
)

// Request payloads

type CreateVisionRequest struct {
	Category                   domain.Category `json:"category" enum:"health,career,relationships,personal-growth"`
	Description                string          `json:"description" minLength:"1"`
	SuggestedAllocationMinutes int             `json:"suggestedAllocationMinutes,omitempty" minimum:"0"`
}

type ReorderVisionsRequest struct {
	IDs []string `json:"ids"`
}

type UpdateBudgetRequest struct {
	TotalAvailableMinutes *int           `json:"totalAvailableMinutes,omitempty"`
	Equal                 bool           `json:"equal,omitempty"`
	Suggested             bool           `json:"suggested,omitempty"`
	Allocations           map[string]int `json:"allocations,omitempty"`
}

type CompleteActionRequest struct {
	ActualTimeMinutes *int `json:"actualTimeMinutes,omitempty"`
}

type RecordVictoryRequest struct {
	ActionsCompleted int `json:"actionsCompleted"`
	TotalActions     int `json:"totalActions"`
	TimeSpentSeconds int `json:"timeSpentSeconds"`
}

// Response payloads

type VisionList struct {
	Items []domain.Vision `json:"items"`
}

type VictoryList struct {
	Items []domain.VictoryRecord `json:"items"`
}

type RecordVictoryResponse struct {
	Recorded bool                  `json:"recorded"`
	Record   *domain.VictoryRecord `json:"record,omitempty"`
}

type TimerResponse struct {
	Session domain.TimingSession `json:"session"`
	Phase   string               `json:"phase" enum:"idle,running,stopped"`
}

type MeResponse struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	UserID     string          `json:"user_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	payload := json.RawMessage("{}")
	if e.Payload != "" && json.Valid([]byte(e.Payload)) {
		payload = json.RawMessage(e.Payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		UserID:     e.UserID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    payload,
	}
}
