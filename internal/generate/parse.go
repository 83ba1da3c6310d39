package generate

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"dailyvision/internal/domain"
)

var (
	ErrNoActions    = errors.New("reply contained no usable actions")
	ErrReplyTooLong = errors.New("reply too long")
)

const (
	maxReplyBytes   = 256 << 10
	maxJSONAttempts = 32
)

type replyItem struct {
	VisionID             string `json:"visionId"`
	Description          string `json:"description"`
	EstimatedTimeMinutes int    `json:"estimatedTimeMinutes"`
	Reasoning            string `json:"reasoning"`
}

// extractJSON returns the first well-formed JSON array or object found in
// text. Prose and markdown fences around it are ignored.
// At most maxJSONAttempts candidate positions are tried.
func extractJSON(text string) (json.RawMessage, bool) {
	attempts := 0
	for i := 0; i < len(text) && attempts < maxJSONAttempts; i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		attempts++
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}

// parseReply accepts either a bare array of items or an object with an
// "actions" array. Items for unknown visions or without a description are
// dropped.
func parseReply(text string, visions []domain.Vision) ([]domain.DailyAction, error) {
	if len(text) > maxReplyBytes {
		return nil, ErrReplyTooLong
	}
	raw, ok := extractJSON(text)
	if !ok {
		return nil, errors.New("reply contained no JSON")
	}
	var items []replyItem
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Actions []replyItem `json:"actions"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		items = wrapped.Actions
	}

	known := make(map[string]struct{}, len(visions))
	for _, v := range visions {
		known[v.ID] = struct{}{}
	}
	var out []domain.DailyAction
	for _, it := range items {
		if _, ok := known[it.VisionID]; !ok {
			continue
		}
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			continue
		}
		out = append(out, domain.DailyAction{
			VisionID:             it.VisionID,
			Description:          desc,
			EstimatedTimeMinutes: it.EstimatedTimeMinutes,
			Status:               domain.ActionPending,
			AIGenerated:          true,
			AIReasoning:          strings.TrimSpace(it.Reasoning),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoActions
	}
	return out, nil
}
