package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a form or field does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for form definitions.
type Store struct {
	db *sql.DB
}

// NewStore creates a new form store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new form and its fields.
func (s *Store) Create(ctx context.Context, f *Form) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt

	settings, err := json.Marshal(f.Settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO forms (id, name, settings, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.Name, settings, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertFields(ctx, tx, f.ID, f.Fields); err != nil {
		return err
	}
	return tx.Commit()
}

func insertFields(ctx context.Context, tx *sql.Tx, formID uuid.UUID, fields []Field) error {
	for i, fld := range fields {
		if err := fld.Validate(); err != nil {
			return err
		}
		descriptor, err := json.Marshal(fld)
		if err != nil {
			return fmt.Errorf("encoding field descriptor: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO form_fields (id, form_id, position, descriptor) VALUES ($1, $2, $3, $4)`,
			fld.ID, formID, i, descriptor)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a form with its fields in display order.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Form, error) {
	f := &Form{}
	var settings []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, settings, created_at, updated_at FROM forms WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &settings, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &f.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT descriptor FROM form_fields WHERE form_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var descriptor []byte
		if err := rows.Scan(&descriptor); err != nil {
			return nil, err
		}
		var fld Field
		if err := json.Unmarshal(descriptor, &fld); err != nil {
			return nil, fmt.Errorf("decoding field descriptor: %w", err)
		}
		f.Fields = append(f.Fields, fld)
	}
	return f, rows.Err()
}

// List returns all forms without their fields, newest first.
func (s *Store) List(ctx context.Context) ([]*Form, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, settings, created_at, updated_at FROM forms ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*Form
	for rows.Next() {
		f := &Form{}
		var settings []byte
		if err := rows.Scan(&f.ID, &f.Name, &settings, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(settings, &f.Settings); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// Update persists name and settings changes. Fields are managed through
// SaveField/DeleteField/Reorder.
func (s *Store) Update(ctx context.Context, f *Form) error {
	settings, err := json.Marshal(f.Settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE forms SET name = $2, settings = $3, updated_at = NOW() WHERE id = $1`,
		f.ID, f.Name, settings)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes the form together with its fields, submissions, and
// field mappings. All-or-nothing: any step failing rolls back the rest.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE form_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM field_mappings WHERE form_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM form_fields WHERE form_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// Duplicate copies a form under a new id with fresh field ids.
func (s *Store) Duplicate(ctx context.Context, id uuid.UUID) (*Form, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := &Form{
		ID:       uuid.New(),
		Name:     src.Name + " (copy)",
		Settings: src.Settings,
	}
	for _, fld := range src.Fields {
		fld.ID = uuid.New()
		dup.Fields = append(dup.Fields, fld)
	}
	if err := s.Create(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// SaveField inserts or replaces one field descriptor. New fields go to
// the end of the form.
func (s *Store) SaveField(ctx context.Context, formID uuid.UUID, fld Field) error {
	if err := fld.Validate(); err != nil {
		return err
	}
	descriptor, err := json.Marshal(fld)
	if err != nil {
		return fmt.Errorf("encoding field descriptor: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_fields (id, form_id, position, descriptor)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM form_fields WHERE form_id = $2), $3)
		ON CONFLICT (id) DO UPDATE SET descriptor = EXCLUDED.descriptor`,
		fld.ID, formID, descriptor)
	return err
}

// DeleteField removes one field. Existing submissions keep their value
// for the deleted field; mappings quietly stop matching it.
func (s *Store) DeleteField(ctx context.Context, formID, fieldID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM form_fields WHERE id = $1 AND form_id = $2`, fieldID, formID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Reorder rewrites field positions to match the given id order. Ids not
// listed keep their relative order after the listed ones.
func (s *Store) Reorder(ctx context.Context, formID uuid.UUID, order []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, fieldID := range order {
		res, err := tx.ExecContext(ctx,
			`UPDATE form_fields SET position = $3 WHERE id = $1 AND form_id = $2`,
			fieldID, formID, i)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return fmt.Errorf("field %s: %w", fieldID, err)
		}
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
