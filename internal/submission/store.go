package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for submissions.
type Store struct {
	db *sql.DB
}

// NewStore creates a new submission store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists a new submission.
func (s *Store) Insert(ctx context.Context, sub *Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = StatusNew
	}
	sub.CreatedAt = time.Now()

	values, err := json.Marshal(sub.Values)
	if err != nil {
		return fmt.Errorf("encoding values: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, form_id, "values", status, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.FormID, values, sub.Status, sub.IP, sub.UserAgent, sub.CreatedAt)
	return err
}

// Get retrieves one submission.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	sub := &Submission{}
	var values []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, form_id, "values", status, ip, user_agent, created_at
		FROM submissions WHERE id = $1`, id).
		Scan(&sub.ID, &sub.FormID, &values, &sub.Status, &sub.IP, &sub.UserAgent, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(values, &sub.Values); err != nil {
		return nil, fmt.Errorf("decoding values: %w", err)
	}
	return sub, nil
}

// List returns submissions for a form, newest first, optionally filtered
// by status.
func (s *Store) List(ctx context.Context, formID uuid.UUID, status Status, limit, offset int) ([]*Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, form_id, "values", status, ip, user_agent, created_at
		FROM submissions WHERE form_id = $1`
	args := []any{formID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub := &Submission{}
		var values []byte
		if err := rows.Scan(&sub.ID, &sub.FormID, &values, &sub.Status, &sub.IP, &sub.UserAgent, &sub.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(values, &sub.Values); err != nil {
			return nil, fmt.Errorf("decoding values: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SetStatus tags a submission.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one submission.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDelete removes a batch of submissions and returns how many went.
func (s *Store) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM submissions WHERE id = ANY($1)`, pqUUIDArray(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// pqUUIDArray renders ids as a Postgres uuid[] literal. lib/pq has no
// native uuid slice support.
func pqUUIDArray(ids []uuid.UUID) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id.String()
	}
	return out + "}"
}
