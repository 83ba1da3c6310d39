package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dailyvision/internal/domain"
)

const (
	VisionAdded      = "vision.added"
	VisionRemoved    = "vision.removed"
	VisionsReordered = "visions.reordered"
	BudgetUpdated    = "budget.updated"
	ActionsGenerated = "actions.generated"
	ActionStarted    = "action.started"
	ActionStopped    = "action.stopped"
	ActionCompleted  = "action.completed"
	ActionSkipped    = "action.skipped"
	VictoryRecorded  = "victory.recorded"
	StreakReset      = "streak.reset"
)

// Sink persists one event and returns its id.
type Sink interface {
	AppendEvent(ctx context.Context, e domain.Event) (int64, error)
}

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, sink Sink, evtType, userID, entityKind, entityID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = sink.AppendEvent(ctx, domain.Event{
		TS:         w.Now().UTC().Format(time.RFC3339),
		Type:       evtType,
		UserID:     userID,
		EntityKind: entityKind,
		EntityID:   entityID,
		Payload:    string(data),
	})
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}
