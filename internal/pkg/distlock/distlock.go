// Package distlock elects one process for periodic maintenance work
// (analytics pruning) when several server replicas share a database.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a best-effort cross-process mutex. A false Acquire means
// another replica holds the job; skip the cycle and try again later.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// New picks the backend: Redis when available, otherwise Postgres
// advisory locks on the shared database.
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if redisClient != nil {
		return newRedisLock(redisClient, key, ttl)
	}
	return newAdvisoryLock(db, key)
}

// advisoryLock uses pg_try_advisory_lock, which is session scoped: the
// lock drops with the connection, so a crashed holder cannot wedge it.
// The session scope also means Acquire and Release must run on the
// same connection, so the lock pins one out of the pool while held.
type advisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

func newAdvisoryLock(db *sql.DB, key string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &advisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *advisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *advisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	var released bool
	err := l.conn.QueryRowContext(ctx,
		"SELECT pg_advisory_unlock($1)", l.lockID).Scan(&released)
	if cerr := l.conn.Close(); err == nil {
		err = cerr
	}
	l.conn = nil
	return err
}

// redisLock uses SET NX with a TTL and a random owner token so a
// release never deletes a lock another process re-acquired after expiry.
type redisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func newRedisLock(client *redis.Client, key string, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{
		client: client,
		key:    "lock:" + key,
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *redisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	return err
}
