package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/formbridge/internal/form"
)

// ErrNotFound is returned when a mapping or settings row does not exist.
var ErrNotFound = errors.New("not found")

// Store persists field mappings and global integration settings.
type Store struct {
	db *sql.DB
}

// NewStore creates a new integration store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveMapping upserts the mapping for a (form, provider) pair.
func (s *Store) SaveMapping(ctx context.Context, m *FieldMapping) error {
	m.UpdatedAt = time.Now()
	mapping, err := json.Marshal(m.Mapping)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO field_mappings (form_id, provider, target, mapping, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (form_id, provider)
		DO UPDATE SET target = EXCLUDED.target, mapping = EXCLUDED.mapping, updated_at = EXCLUDED.updated_at`,
		m.FormID, m.Provider, m.Target, mapping, m.UpdatedAt)
	return err
}

// GetMapping loads the mapping for a (form, provider) pair.
func (s *Store) GetMapping(ctx context.Context, formID uuid.UUID, provider form.Provider) (*FieldMapping, error) {
	m := &FieldMapping{FormID: formID, Provider: provider}
	var mapping []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT target, mapping, updated_at FROM field_mappings
		WHERE form_id = $1 AND provider = $2`, formID, provider).
		Scan(&m.Target, &mapping, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mapping, &m.Mapping); err != nil {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}
	return m, nil
}

// SaveSettings upserts global credentials for a provider.
func (s *Store) SaveSettings(ctx context.Context, st *Settings) error {
	st.UpdatedAt = time.Now()
	creds, err := json.Marshal(st.Credentials)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO integration_settings (provider, credentials, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider)
		DO UPDATE SET credentials = EXCLUDED.credentials, updated_at = EXCLUDED.updated_at`,
		st.Provider, creds, st.UpdatedAt)
	return err
}

// GetSettings loads global credentials for a provider.
func (s *Store) GetSettings(ctx context.Context, provider form.Provider) (*Settings, error) {
	st := &Settings{Provider: provider}
	var creds []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT credentials, updated_at FROM integration_settings WHERE provider = $1`, provider).
		Scan(&creds, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(creds, &st.Credentials); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return st, nil
}
