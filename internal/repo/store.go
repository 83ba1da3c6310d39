package repo

import (
	"context"
	"errors"

	"dailyvision/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Store persists the per-user habit aggregates. Implementations preserve the
// JSON-visible fields of every aggregate; how they lay data out is their own
// business.
type Store interface {
	Init(ctx context.Context) error
	Close() error

	// WithTx runs fn against a transactional view of the store. Changes made
	// through it are discarded when fn returns an error.
	WithTx(ctx context.Context, fn func(Store) error) error

	ListVisions(ctx context.Context, userID string) ([]domain.Vision, error)
	GetVision(ctx context.Context, userID, id string) (domain.Vision, error)
	PutVision(ctx context.Context, userID string, v domain.Vision) error
	DeleteVision(ctx context.Context, userID, id string) error

	GetBudget(ctx context.Context, userID string) (domain.TimeBudgetState, error)
	PutBudget(ctx context.Context, userID string, st domain.TimeBudgetState) error

	// ListDailyActions returns the stored action list in generation order.
	ListDailyActions(ctx context.Context, userID string) ([]domain.DailyAction, error)
	// ReplaceDailyActions drops every stored action of the user.
	ReplaceDailyActions(ctx context.Context, userID string, actions []domain.DailyAction) error
	UpdateDailyAction(ctx context.Context, userID string, a domain.DailyAction) error

	ListTimingSessions(ctx context.Context, userID string) ([]domain.TimingSession, error)
	ReplaceTimingSessions(ctx context.Context, userID string, sessions []domain.TimingSession) error

	// GetLedger returns an empty ledger for users with no history.
	GetLedger(ctx context.Context, userID string) (domain.VictoryLedger, error)
	// PutLedger stores the counters and appends unseen history records;
	// stored records are never rewritten.
	PutLedger(ctx context.Context, userID string, l domain.VictoryLedger) error

	AppendEvent(ctx context.Context, e domain.Event) (int64, error)
	LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error)
	// EventsAfter returns events with IDs greater than the cursor in ascending order.
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// EventFilter selects events newest first. Cursor, when positive, returns
// only events older than that id.
type EventFilter struct {
	UserID     string
	Type       string
	EntityKind string
	EntityID   string
	Cursor     int64
	Limit      int
}

func (f EventFilter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}
