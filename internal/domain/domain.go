package domain

import "time"

type Category string

const (
	CategoryHealth         Category = "health"
	CategoryCareer         Category = "career"
	CategoryRelationships  Category = "relationships"
	CategoryPersonalGrowth Category = "personal-growth"
)

var Categories = []Category{CategoryHealth, CategoryCareer, CategoryRelationships, CategoryPersonalGrowth}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type Vision struct {
	ID                         string   `json:"id"`
	Category                   Category `json:"category" enum:"health,career,relationships,personal-growth"`
	Description                string   `json:"description"`
	Priority                   int      `json:"priority"`
	SuggestedAllocationMinutes int      `json:"suggestedAllocationMinutes"`
}

// TimeBudgetState is the live daily budget of one user. Allocations are
// cleared whenever LastUpdatedDate falls behind the current calendar date.
type TimeBudgetState struct {
	TotalAvailableMinutes int            `json:"totalAvailableMinutes"`
	Allocations           map[string]int `json:"allocations"`
	LastUpdatedDate       string         `json:"lastUpdatedDate"`
}

type Allocation struct {
	VisionID string `json:"visionId"`
	Minutes  int    `json:"minutes"`
}

type AllocationSnapshot struct {
	Date                  string       `json:"date"`
	TotalAvailableMinutes int          `json:"totalAvailableMinutes"`
	Allocations           []Allocation `json:"allocations"`
}

// Minutes returns the allocation for a vision and whether one exists.
func (s AllocationSnapshot) Minutes(visionID string) (int, bool) {
	for _, a := range s.Allocations {
		if a.VisionID == visionID {
			return a.Minutes, true
		}
	}
	return 0, false
}

func (s AllocationSnapshot) Map() map[string]int {
	out := make(map[string]int, len(s.Allocations))
	for _, a := range s.Allocations {
		out[a.VisionID] = a.Minutes
	}
	return out
}

type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionSkipped    ActionStatus = "skipped"
)

type DailyAction struct {
	ID                   string       `json:"id"`
	VisionID             string       `json:"visionId,omitempty"`
	Description          string       `json:"description"`
	EstimatedTimeMinutes int          `json:"estimatedTimeMinutes"`
	ActualTimeMinutes    *int         `json:"actualTimeMinutes,omitempty"`
	Status               ActionStatus `json:"status" enum:"pending,in_progress,completed,skipped"`
	Date                 string       `json:"date"`
	AIGenerated          bool         `json:"aiGenerated"`
	AIReasoning          string       `json:"aiReasoning,omitempty"`
}

// Done reports whether the action no longer needs work today.
func (a DailyAction) Done() bool {
	return a.Status == ActionCompleted || a.Status == ActionSkipped
}

type TimingSession struct {
	ActionID        string     `json:"actionId"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
	IsActive        bool       `json:"isActive"`
}

type VictoryRecord struct {
	Date             string `json:"date"`
	DayNumber        int    `json:"dayNumber"`
	ActionsCompleted int    `json:"actionsCompleted"`
	TotalActions     int    `json:"totalActions"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

type VictoryLedger struct {
	CurrentStreak     int             `json:"currentStreak"`
	TotalDays         int             `json:"totalDays"`
	LastCompletedDate string          `json:"lastCompletedDate,omitempty"`
	History           []VictoryRecord `json:"history"`
}

type VictoryStats struct {
	CurrentStreak         int     `json:"currentStreak"`
	TotalDays             int     `json:"totalDays"`
	TotalTimeSpentMinutes int     `json:"totalTimeSpentMinutes"`
	AverageActionsPerDay  float64 `json:"averageActionsPerDay"`
	BestStreak            int     `json:"bestStreak"`
	CompletionRate        float64 `json:"completionRate"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
