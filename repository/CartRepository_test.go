package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every cart backend must share.
func exerciseStore(t *testing.T, kv KeyValueStore) {
	t.Helper()
	ctx := context.Background()
	key := SessionCartKey("abc")

	_, exists, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, kv.Set(ctx, key, `[{"id":"1"}]`))
	v, exists, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, kv.Set(ctx, key, "[]"))
	v, _, err = kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	_, exists, err = kv.Get(ctx, SessionCartKey("other"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionCartKey(t *testing.T) {
	assert.Equal(t, "ballunia_cart_v1:abc", SessionCartKey("abc"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := NewRedisStore(context.Background(), rdb, 24*time.Hour)
	require.NoError(t, err)
	exerciseStore(t, store)

	assert.Equal(t, 24*time.Hour, mr.TTL(SessionCartKey("abc")))
	mr.FastForward(25 * time.Hour)
	_, exists, err := store.Get(context.Background(), SessionCartKey("abc"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, rdb, time.Hour)
	assert.Error(t, err)
}

func TestSQLStoreSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	exerciseStore(t, store)

	again, err := NewSQLStore(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	v, exists, err := again.Get(context.Background(), SessionCartKey("abc"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "[]", v)
}

func TestSQLStoreRejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = NewSQLStore(context.Background(), db, Dialect("mysql"))
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	lite := &SQLStore{dialect: DialectSQLite}
	q := "INSERT INTO t (a, b) VALUES ($1, $12)"
	assert.Equal(t, q, pg.rebind(q))
	assert.Equal(t, "INSERT INTO t (a, b) VALUES (?, ?)", lite.rebind(q))
}
