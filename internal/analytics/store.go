package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for analytics events.
type Store struct {
	db *sql.DB
}

// NewStore creates a new analytics store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends one event.
func (s *Store) Record(ctx context.Context, ev *Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	ev.CreatedAt = time.Now()

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	var formID any
	if ev.FormID != uuid.Nil {
		formID = ev.FormID
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, form_id, audience_id, email, event_type, payload, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, formID, ev.AudienceID, ev.Email, ev.EventType, payload, ev.IP, ev.CreatedAt)
	return err
}

// Prune drops events older than the cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analytics_events WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Totals counts events per type within the query scope.
func (s *Store) Totals(ctx context.Context, q Query) (map[string]int, error) {
	where, args := buildWhere(q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM analytics_events`+where+`
		GROUP BY event_type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		totals[eventType] = count
	}
	return totals, rows.Err()
}

// Events returns events within the query scope, newest first.
func (s *Store) Events(ctx context.Context, q Query, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := buildWhere(q)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, form_id, audience_id, email, event_type, payload, ip, created_at
		FROM analytics_events%s
		ORDER BY created_at DESC LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev := &Event{}
		var formID sql.NullString
		var payload []byte
		if err := rows.Scan(&ev.ID, &formID, &ev.AudienceID, &ev.Email,
			&ev.EventType, &payload, &ev.IP, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if formID.Valid {
			id, err := uuid.Parse(formID.String)
			if err != nil {
				return nil, fmt.Errorf("decoding form id: %w", err)
			}
			ev.FormID = id
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decoding payload: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// buildWhere renders the optional query filters as a WHERE clause.
func buildWhere(q Query) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.FormID != uuid.Nil {
		add("form_id = $%d", q.FormID)
	}
	if q.AudienceID != "" {
		add("audience_id = $%d", q.AudienceID)
	}
	if !q.Since.IsZero() {
		add("created_at >= $%d", q.Since)
	}
	if !q.Until.IsZero() {
		add("created_at < $%d", q.Until)
	}

	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}
