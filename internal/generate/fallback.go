package generate

import (
	"fmt"
	"hash/fnv"
	"sort"

	"dailyvision/internal/domain"
)

type template struct {
	text    string
	minutes int
}

var fallbackTemplates = map[domain.Category][]template{
	domain.CategoryHealth: {
		{"Take a brisk walk toward: %s", 20},
		{"Do a short stretching session for: %s", 10},
		{"Prepare one healthy meal that supports: %s", 25},
	},
	domain.CategoryCareer: {
		{"Spend a focused block on: %s", 25},
		{"Write down the next concrete step for: %s", 10},
		{"Learn one new thing that moves forward: %s", 20},
	},
	domain.CategoryRelationships: {
		{"Reach out to someone connected to: %s", 10},
		{"Plan a shared moment for: %s", 15},
		{"Write a short note of appreciation for: %s", 10},
	},
	domain.CategoryPersonalGrowth: {
		{"Read for a while about: %s", 20},
		{"Journal about your progress on: %s", 10},
		{"Practice a small habit that builds: %s", 15},
	},
}

var genericTemplate = template{"Take one small step toward: %s", 15}

// Fallback synthesizes actions without a backend. The same visions always
// produce the same descriptions and durations.
func Fallback(visions []domain.Vision, maxActions int) []domain.DailyAction {
	ordered := byPriority(visions)
	if maxActions > 0 && len(ordered) > maxActions {
		ordered = ordered[:maxActions]
	}
	out := make([]domain.DailyAction, 0, len(ordered))
	for _, v := range ordered {
		tpl := pickTemplate(v)
		out = append(out, domain.DailyAction{
			VisionID:             v.ID,
			Description:          fmt.Sprintf(tpl.text, v.Description),
			EstimatedTimeMinutes: tpl.minutes,
			Status:               domain.ActionPending,
			AIGenerated:          false,
			AIReasoning:          fmt.Sprintf("Suggested offline for your %s vision (priority %d).", v.Category, v.Priority),
		})
	}
	return out
}

func pickTemplate(v domain.Vision) template {
	list := fallbackTemplates[v.Category]
	if len(list) == 0 {
		return genericTemplate
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(v.ID))
	return list[int(h.Sum32()%uint32(len(list)))]
}

func byPriority(visions []domain.Vision) []domain.Vision {
	out := append([]domain.Vision(nil), visions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
