package generate

import (
	"fmt"
	"strings"

	"dailyvision/internal/domain"
)

const systemPrompt = `You are a habit coach. You turn a person's long-term visions into small, concrete actions for today.
Respond with JSON only, no prose and no markdown fences, in this exact shape:
{"actions":[{"visionId":"<id from the list>","description":"<one sentence>","estimatedTimeMinutes":<integer>,"reasoning":"<why this helps>"}]}`

func buildUserPrompt(visions []domain.Vision, allocations map[string]int, maxActions, minMinutes, maxMinutes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest at most %d actions for today, each taking %d to %d minutes.\n", maxActions, minMinutes, maxMinutes)
	b.WriteString("Favour visions with a higher priority (1 is highest) and never exceed the minutes allocated to a vision.\n\nVisions:\n")
	for _, v := range byPriority(visions) {
		fmt.Fprintf(&b, "- id=%s category=%s priority=%d", v.ID, v.Category, v.Priority)
		if m, ok := allocations[v.ID]; ok {
			fmt.Fprintf(&b, " allocatedMinutes=%d", m)
		}
		fmt.Fprintf(&b, "\n  %s\n", strings.TrimSpace(v.Description))
	}
	return b.String()
}
