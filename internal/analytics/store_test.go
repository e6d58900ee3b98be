package analytics

import (
	"context"
	"database/sql"
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

func TestRecord(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)
	formID := uuid.New()

	mock.ExpectExec("INSERT INTO analytics_events").
		WithArgs(sqlmock.AnyArg(), formID, "a1b2c3", "jane@example.com",
			EventSubmission, sqlmock.AnyArg(), "203.0.113.9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ev := &Event{
		FormID:     formID,
		AudienceID: "a1b2c3",
		Email:      "jane@example.com",
		EventType:  EventSubmission,
		IP:         "203.0.113.9",
	}
	require.NoError(t, store.Record(context.Background(), ev))
	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordNoFormID(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)

	mock.ExpectExec("INSERT INTO analytics_events").
		WithArgs(sqlmock.AnyArg(), nil, "a1b2c3", "jane@example.com",
			EventSubscribe, sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Record(context.Background(), &Event{
		AudienceID: "a1b2c3",
		Email:      "jane@example.com",
		EventType:  EventSubscribe,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRequiresType(t *testing.T) {
	db, _ := setupTestDB(t)
	store := NewStore(db)
	assert.Error(t, store.Record(context.Background(), &Event{}))
}

func TestPrune(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)
	cutoff := time.Now().Add(-90 * 24 * time.Hour)

	mock.ExpectExec("DELETE FROM analytics_events WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := store.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestTotals(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewStore(db)
	formID := uuid.New()

	mock.ExpectQuery("SELECT event_type, COUNT").
		WithArgs(formID).
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "count"}).
			AddRow(EventSubmission, 10).
			AddRow(EventDispatchSent, 7).
			AddRow(EventDispatchFailed, 3))

	totals, err := store.Totals(context.Background(), Query{FormID: formID})
	require.NoError(t, err)
	assert.Equal(t, 10, totals[EventSubmission])
	assert.Equal(t, 7, totals[EventDispatchSent])
}

func TestBuildWhere(t *testing.T) {
	formID := uuid.New()
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := buildWhere(Query{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildWhere(Query{FormID: formID, AudienceID: "a1", Since: since})
	assert.Equal(t, " WHERE form_id = $1 AND audience_id = $2 AND created_at >= $3", where)
	assert.Equal(t, []any{formID, "a1", since}, args)
}
