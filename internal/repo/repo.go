package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dailyvision/internal/domain"
	"dailyvision/internal/migrate"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo is the SQLite Store.
type Repo struct {
	DB *sql.DB
	q  querier
}

func NewSQLite(db *sql.DB) Repo {
	return Repo{DB: db}
}

func (r Repo) conn() querier {
	if r.q != nil {
		return r.q
	}
	return r.DB
}

func (r Repo) Init(ctx context.Context) error {
	if _, err := migrate.Migrate(ctx, r.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r Repo) Close() error {
	return r.DB.Close()
}

func (r Repo) WithTx(ctx context.Context, fn func(Store) error) error {
	if r.q != nil {
		return fn(r)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(Repo{DB: r.DB, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) ListVisions(ctx context.Context, userID string) ([]domain.Vision, error) {
	rows, err := r.conn().QueryContext(ctx, `SELECT id,category,description,priority,suggested_minutes FROM visions WHERE user_id=? ORDER BY priority ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Vision{}
	for rows.Next() {
		var v domain.Vision
		if err := rows.Scan(&v.ID, &v.Category, &v.Description, &v.Priority, &v.SuggestedAllocationMinutes); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) GetVision(ctx context.Context, userID, id string) (domain.Vision, error) {
	var v domain.Vision
	err := r.conn().QueryRowContext(ctx, `SELECT id,category,description,priority,suggested_minutes FROM visions WHERE user_id=? AND id=?`, userID, id).
		Scan(&v.ID, &v.Category, &v.Description, &v.Priority, &v.SuggestedAllocationMinutes)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	return v, err
}

func (r Repo) PutVision(ctx context.Context, userID string, v domain.Vision) error {
	_, err := r.conn().ExecContext(ctx, `INSERT INTO visions(id,user_id,category,description,priority,suggested_minutes) VALUES (?,?,?,?,?,?)
ON CONFLICT(user_id,id) DO UPDATE SET category=excluded.category, description=excluded.description, priority=excluded.priority, suggested_minutes=excluded.suggested_minutes`,
		v.ID, userID, string(v.Category), v.Description, v.Priority, v.SuggestedAllocationMinutes)
	return err
}

func (r Repo) DeleteVision(ctx context.Context, userID, id string) error {
	res, err := r.conn().ExecContext(ctx, `DELETE FROM visions WHERE user_id=? AND id=?`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetBudget(ctx context.Context, userID string) (domain.TimeBudgetState, error) {
	var st domain.TimeBudgetState
	var allocations string
	err := r.conn().QueryRowContext(ctx, `SELECT total_minutes,allocations_json,last_updated_date FROM time_budgets WHERE user_id=?`, userID).
		Scan(&st.TotalAvailableMinutes, &allocations, &st.LastUpdatedDate)
	if err == sql.ErrNoRows {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	st.Allocations = map[string]int{}
	if err := json.Unmarshal([]byte(allocations), &st.Allocations); err != nil {
		return st, fmt.Errorf("decode allocations: %w", err)
	}
	return st, nil
}

func (r Repo) PutBudget(ctx context.Context, userID string, st domain.TimeBudgetState) error {
	if st.Allocations == nil {
		st.Allocations = map[string]int{}
	}
	data, err := json.Marshal(st.Allocations)
	if err != nil {
		return err
	}
	_, err = r.conn().ExecContext(ctx, `INSERT INTO time_budgets(user_id,total_minutes,allocations_json,last_updated_date) VALUES (?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET total_minutes=excluded.total_minutes, allocations_json=excluded.allocations_json, last_updated_date=excluded.last_updated_date`,
		userID, st.TotalAvailableMinutes, string(data), st.LastUpdatedDate)
	return err
}

func (r Repo) ListDailyActions(ctx context.Context, userID string) ([]domain.DailyAction, error) {
	rows, err := r.conn().QueryContext(ctx, `SELECT id,COALESCE(vision_id,''),description,estimated_minutes,actual_minutes,status,date,ai_generated,COALESCE(ai_reasoning,'')
FROM daily_actions WHERE user_id=? ORDER BY position ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.DailyAction{}
	for rows.Next() {
		var a domain.DailyAction
		var actual sql.NullInt64
		if err := rows.Scan(&a.ID, &a.VisionID, &a.Description, &a.EstimatedTimeMinutes, &actual, &a.Status, &a.Date, &a.AIGenerated, &a.AIReasoning); err != nil {
			return nil, err
		}
		if actual.Valid {
			v := int(actual.Int64)
			a.ActualTimeMinutes = &v
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) ReplaceDailyActions(ctx context.Context, userID string, actions []domain.DailyAction) error {
	return r.WithTx(ctx, func(s Store) error {
		tx := s.(Repo).conn()
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_actions WHERE user_id=?`, userID); err != nil {
			return err
		}
		for i, a := range actions {
			if _, err := tx.ExecContext(ctx, `INSERT INTO daily_actions(id,user_id,vision_id,description,estimated_minutes,actual_minutes,status,date,ai_generated,ai_reasoning,position) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				a.ID, userID, nullable(a.VisionID), a.Description, a.EstimatedTimeMinutes, nullableIntPtr(a.ActualTimeMinutes), string(a.Status), a.Date, a.AIGenerated, nullable(a.AIReasoning), i); err != nil {
				return fmt.Errorf("insert action %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (r Repo) UpdateDailyAction(ctx context.Context, userID string, a domain.DailyAction) error {
	res, err := r.conn().ExecContext(ctx, `UPDATE daily_actions SET description=?,estimated_minutes=?,actual_minutes=?,status=? WHERE user_id=? AND id=?`,
		a.Description, a.EstimatedTimeMinutes, nullableIntPtr(a.ActualTimeMinutes), string(a.Status), userID, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTimingSessions(ctx context.Context, userID string) ([]domain.TimingSession, error) {
	rows, err := r.conn().QueryContext(ctx, `SELECT action_id,started_at,ended_at,duration_seconds,is_active FROM timing_sessions WHERE user_id=? ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TimingSession{}
	for rows.Next() {
		var s domain.TimingSession
		var started string
		var ended sql.NullString
		var dur sql.NullInt64
		if err := rows.Scan(&s.ActionID, &started, &ended, &dur, &s.IsActive); err != nil {
			return nil, err
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if ended.Valid {
			t, err := time.Parse(time.RFC3339Nano, ended.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at: %w", err)
			}
			s.EndedAt = &t
		}
		if dur.Valid {
			d := int(dur.Int64)
			s.DurationSeconds = &d
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) ReplaceTimingSessions(ctx context.Context, userID string, sessions []domain.TimingSession) error {
	return r.WithTx(ctx, func(s Store) error {
		tx := s.(Repo).conn()
		if _, err := tx.ExecContext(ctx, `DELETE FROM timing_sessions WHERE user_id=?`, userID); err != nil {
			return err
		}
		for i, ts := range sessions {
			var ended any
			if ts.EndedAt != nil {
				ended = ts.EndedAt.UTC().Format(time.RFC3339Nano)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO timing_sessions(user_id,seq,action_id,started_at,ended_at,duration_seconds,is_active) VALUES (?,?,?,?,?,?,?)`,
				userID, i, ts.ActionID, ts.StartedAt.UTC().Format(time.RFC3339Nano), ended, nullableIntPtr(ts.DurationSeconds), ts.IsActive); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r Repo) GetLedger(ctx context.Context, userID string) (domain.VictoryLedger, error) {
	l := domain.VictoryLedger{History: []domain.VictoryRecord{}}
	var last sql.NullString
	err := r.conn().QueryRowContext(ctx, `SELECT current_streak,total_days,last_completed_date FROM victory_ledgers WHERE user_id=?`, userID).
		Scan(&l.CurrentStreak, &l.TotalDays, &last)
	if err == sql.ErrNoRows {
		return l, nil
	}
	if err != nil {
		return l, err
	}
	l.LastCompletedDate = last.String
	rows, err := r.conn().QueryContext(ctx, `SELECT date,day_number,actions_completed,total_actions,time_spent_seconds FROM victory_records WHERE user_id=? ORDER BY date ASC`, userID)
	if err != nil {
		return l, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec domain.VictoryRecord
		if err := rows.Scan(&rec.Date, &rec.DayNumber, &rec.ActionsCompleted, &rec.TotalActions, &rec.TimeSpentSeconds); err != nil {
			return l, err
		}
		l.History = append(l.History, rec)
	}
	return l, rows.Err()
}

func (r Repo) PutLedger(ctx context.Context, userID string, l domain.VictoryLedger) error {
	return r.WithTx(ctx, func(s Store) error {
		tx := s.(Repo).conn()
		if _, err := tx.ExecContext(ctx, `INSERT INTO victory_ledgers(user_id,current_streak,total_days,last_completed_date) VALUES (?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET current_streak=excluded.current_streak, total_days=excluded.total_days, last_completed_date=excluded.last_completed_date`,
			userID, l.CurrentStreak, l.TotalDays, nullable(l.LastCompletedDate)); err != nil {
			return err
		}
		for _, rec := range l.History {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO victory_records(user_id,date,day_number,actions_completed,total_actions,time_spent_seconds) VALUES (?,?,?,?,?,?)`,
				userID, rec.Date, rec.DayNumber, rec.ActionsCompleted, rec.TotalActions, rec.TimeSpentSeconds); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r Repo) AppendEvent(ctx context.Context, e domain.Event) (int64, error) {
	res, err := r.conn().ExecContext(ctx, `INSERT INTO events(ts,type,user_id,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?)`,
		e.TS, e.Type, e.UserID, e.EntityKind, nullable(e.EntityID), e.Payload)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,user_id,entity_kind,COALESCE(entity_id,''),payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, f.limit())
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,user_id,entity_kind,COALESCE(entity_id,''),payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.conn().QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.UserID, &e.EntityKind, &e.EntityID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
