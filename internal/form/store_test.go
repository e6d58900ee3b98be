package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestStoreGet(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	formID := uuid.New()
	fieldID := uuid.New()
	settings, _ := json.Marshal(DefaultSettings())
	descriptor, _ := json.Marshal(Field{ID: fieldID, Type: TypeEmail, Label: "Email", Required: true})

	mock.ExpectQuery("SELECT id, name, settings, created_at, updated_at FROM forms").
		WithArgs(formID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "settings", "created_at", "updated_at"}).
			AddRow(formID, "Contact", settings, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT descriptor FROM form_fields").
		WithArgs(formID).
		WillReturnRows(sqlmock.NewRows([]string{"descriptor"}).AddRow(descriptor))

	f, err := store.Get(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, "Contact", f.Name)
	require.Len(t, f.Fields, 1)
	assert.Equal(t, TypeEmail, f.Fields[0].Type)
	assert.True(t, f.Fields[0].Required)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	id := uuid.New()
	mock.ExpectQuery("SELECT id, name, settings, created_at, updated_at FROM forms").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteCascades(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM submissions WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM field_mappings WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM form_fields WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM forms WHERE id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteRollsBackOnFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM submissions WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM field_mappings WHERE form_id").
		WithArgs(id).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.Delete(context.Background(), id)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no commit may happen after a failed step")
}

func TestStoreDeleteMissingForm(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM submissions WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM field_mappings WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM form_fields WHERE form_id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM forms WHERE id").
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCreate(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	f, err := New("Signup")
	require.NoError(t, err)
	email, _ := NewField(TypeEmail, "Email")
	email.Required = true
	f.Fields = append(f.Fields, email)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO forms").
		WithArgs(f.ID, "Signup", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO form_fields").
		WithArgs(email.ID, f.ID, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Create(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReorder(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	formID := uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE form_fields SET position").
		WithArgs(b, formID, 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE form_fields SET position").
		WithArgs(a, formID, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Reorder(context.Background(), formID, []uuid.UUID{b, a}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
