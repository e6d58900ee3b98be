package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := New(client, nil, "prune", time.Minute)
	b := New(client, nil, "prune", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be free after release")
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := New(client, nil, "prune", time.Minute)
	b := New(client, nil, "prune", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// b never acquired; its release must not free a's lock
	require.NoError(t, b.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Advisory locks are session scoped, so Release must run on the
// connection that acquired. These tests pin the call sequence to one
// mocked connection.
func TestAdvisoryLockAcquireRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectQuery("SELECT pg_advisory_unlock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

	lock := New(nil, db, "prune", time.Minute)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLockDeniedHolds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	lock := New(nil, db, "prune", time.Minute)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// never acquired, so release must not issue an unlock
	require.NoError(t, lock.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDifferentKeysIndependent(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := New(client, nil, "prune", time.Minute)
	b := New(client, nil, "export", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
