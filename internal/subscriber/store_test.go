package subscriber

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/formbridge/internal/form"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestUpsertNormalizesEmail(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectExec("INSERT INTO subscriber_mirror").
		WithArgs("jane@example.com", "a1b2c3", form.ProviderMailchimp, StatusSubscribed,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), &Subscriber{
		Email:      "  Jane@Example.COM ",
		AudienceID: "a1b2c3",
		Provider:   form.ProviderMailchimp,
		MergeData:  map[string]string{"FNAME": "Jane"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRequiresEmail(t *testing.T) {
	db, _ := setupTestDB(t)
	store := NewStore(db)

	err := store.Upsert(context.Background(), &Subscriber{AudienceID: "a1b2c3"})
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery("SELECT email, audience_id, provider, status, merge_data, updated_at").
		WithArgs("jane@example.com", "a1b2c3").
		WillReturnRows(sqlmock.NewRows(
			[]string{"email", "audience_id", "provider", "status", "merge_data", "updated_at"}).
			AddRow("jane@example.com", "a1b2c3", "mailchimp", "subscribed",
				[]byte(`{"FNAME":"Jane"}`), time.Now()))

	sub, err := store.Get(context.Background(), "Jane@example.com", "a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, StatusSubscribed, sub.Status)
	assert.Equal(t, "Jane", sub.MergeData["FNAME"])
}

func TestGetNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectQuery("SELECT email, audience_id, provider, status, merge_data, updated_at").
		WithArgs("gone@example.com", "a1b2c3").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "gone@example.com", "a1b2c3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusInsertsUnseenPair(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectExec("INSERT INTO subscriber_mirror").
		WithArgs("jane@example.com", "a1b2c3", form.ProviderMailchimp,
			StatusUnsubscribed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateStatus(context.Background(), "jane@example.com", "a1b2c3",
		form.ProviderMailchimp, StatusUnsubscribed)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRekeyMovesRow(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM subscriber_mirror").
		WithArgs("new@example.com", "a1b2c3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE subscriber_mirror SET email").
		WithArgs("old@example.com", "new@example.com", sqlmock.AnyArg(), "a1b2c3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Rekey(context.Background(), "old@example.com", "new@example.com", "a1b2c3")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRekeyUnknownRow(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM subscriber_mirror").
		WithArgs("new@example.com", "a1b2c3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE subscriber_mirror SET email").
		WithArgs("missing@example.com", "new@example.com", sqlmock.AnyArg(), "a1b2c3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Rekey(context.Background(), "missing@example.com", "new@example.com", "a1b2c3")
	assert.ErrorIs(t, err, ErrNotFound)
}
