// Package subscriber maintains a local mirror of external audience
// membership, kept current by inbound provider webhooks.
package subscriber

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/formbridge/internal/form"
)

// ErrNotFound is returned when a mirror row does not exist.
var ErrNotFound = errors.New("not found")

// Status is the external membership state reported by the provider.
type Status string

const (
	StatusSubscribed   Status = "subscribed"
	StatusUnsubscribed Status = "unsubscribed"
	StatusCleaned      Status = "cleaned"
	StatusPending      Status = "pending"
)

// Subscriber is one mirrored audience member, keyed by (email, audience).
type Subscriber struct {
	Email      string            `json:"email"`
	AudienceID string            `json:"audience_id"`
	Provider   form.Provider     `json:"provider"`
	Status     Status            `json:"status"`
	MergeData  map[string]string `json:"merge_data,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Store provides database operations for the subscriber mirror.
type Store struct {
	db *sql.DB
}

// NewStore creates a new subscriber store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert writes a mirror row, replacing status and merge data for an
// existing (email, audience) pair.
func (s *Store) Upsert(ctx context.Context, sub *Subscriber) error {
	sub.Email = normalizeEmail(sub.Email)
	if sub.Email == "" {
		return fmt.Errorf("email is required")
	}
	if sub.Status == "" {
		sub.Status = StatusSubscribed
	}
	sub.UpdatedAt = time.Now()

	merge, err := json.Marshal(sub.MergeData)
	if err != nil {
		return fmt.Errorf("encoding merge data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriber_mirror (email, audience_id, provider, status, merge_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email, audience_id)
		DO UPDATE SET provider = $3, status = $4, merge_data = $5, updated_at = $6`,
		sub.Email, sub.AudienceID, sub.Provider, sub.Status, merge, sub.UpdatedAt)
	return err
}

// Get retrieves one mirror row.
func (s *Store) Get(ctx context.Context, email, audienceID string) (*Subscriber, error) {
	sub := &Subscriber{}
	var merge []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT email, audience_id, provider, status, merge_data, updated_at
		FROM subscriber_mirror WHERE email = $1 AND audience_id = $2`,
		normalizeEmail(email), audienceID).
		Scan(&sub.Email, &sub.AudienceID, &sub.Provider, &sub.Status, &merge, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(merge) > 0 {
		if err := json.Unmarshal(merge, &sub.MergeData); err != nil {
			return nil, fmt.Errorf("decoding merge data: %w", err)
		}
	}
	return sub, nil
}

// UpdateStatus sets membership state for an existing row. An unseen
// (email, audience) pair is inserted so unsubscribes arriving before the
// subscribe event are not lost.
func (s *Store) UpdateStatus(ctx context.Context, email, audienceID string, provider form.Provider, status Status) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriber_mirror (email, audience_id, provider, status, merge_data, updated_at)
		VALUES ($1, $2, $3, $4, 'null', $5)
		ON CONFLICT (email, audience_id)
		DO UPDATE SET status = $4, updated_at = $5`,
		email, audienceID, provider, status, time.Now())
	return err
}

// Rekey moves a mirror row to a new email address (upemail events).
func (s *Store) Rekey(ctx context.Context, oldEmail, newEmail, audienceID string) error {
	oldEmail = normalizeEmail(oldEmail)
	newEmail = normalizeEmail(newEmail)
	if oldEmail == "" || newEmail == "" {
		return fmt.Errorf("both addresses are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The new address may already have its own row from an earlier event;
	// clear it so the rename does not collide on the primary key.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM subscriber_mirror WHERE email = $1 AND audience_id = $2`,
		newEmail, audienceID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE subscriber_mirror SET email = $2, updated_at = $3
		WHERE email = $1 AND audience_id = $4`,
		oldEmail, newEmail, time.Now(), audienceID)
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
	return tx.Commit()
}

// ListByAudience returns mirrored members of one audience, newest first.
func (s *Store) ListByAudience(ctx context.Context, audienceID string, limit int) ([]*Subscriber, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, audience_id, provider, status, merge_data, updated_at
		FROM subscriber_mirror WHERE audience_id = $1
		ORDER BY updated_at DESC LIMIT $2`, audienceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscriber
	for rows.Next() {
		sub := &Subscriber{}
		var merge []byte
		if err := rows.Scan(&sub.Email, &sub.AudienceID, &sub.Provider, &sub.Status, &merge, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		if len(merge) > 0 {
			if err := json.Unmarshal(merge, &sub.MergeData); err != nil {
				return nil, fmt.Errorf("decoding merge data: %w", err)
			}
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
